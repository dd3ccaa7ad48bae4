// Package email provides email sending capabilities via SMTP.
package email

import (
	"bytes"
	"fmt"
	"html/template"
	"mime"
	"net/smtp"
	"strings"

	"graphreview/api/internal/mention"
)

// Config holds SMTP configuration
type Config struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	FromName string
	// AppBaseURL prefixes review links in outgoing mail.
	AppBaseURL string
}

// SendFunc matches smtp.SendMail.
type SendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Service provides email sending
type Service struct {
	config Config
	server string
	auth   smtp.Auth
	send   SendFunc
}

// NewService creates a new email service
func NewService(config Config) *Service {
	var auth smtp.Auth
	if config.Username != "" {
		auth = smtp.PlainAuth("", config.Username, config.Password, config.Host)
	}

	return &Service{
		config: config,
		server: config.Host + ":" + config.Port,
		auth:   auth,
		send:   smtp.SendMail,
	}
}

// WithSender swaps the transport, mostly for tests.
func (s *Service) WithSender(send SendFunc) *Service {
	s.send = send
	return s
}

// IsConfigured returns true if email is configured
func (s *Service) IsConfigured() bool {
	return s.config.Host != "" && s.config.Port != "" && s.config.From != ""
}

// SendHTMLEmail sends an HTML email with a plain text fallback part
func (s *Service) SendHTMLEmail(to []string, subject, textBody, htmlBody string) error {
	if !s.IsConfigured() {
		return fmt.Errorf("email not configured")
	}

	from := headerValue(s.config.From)
	if s.config.FromName != "" {
		from = fmt.Sprintf("%s <%s>", mime.QEncoding.Encode("utf-8", headerValue(s.config.FromName)), from)
	}
	recipients := make([]string, len(to))
	for i, addr := range to {
		recipients[i] = headerValue(addr)
	}

	boundary := "boundary-graphreview"

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(recipients, ", "))
	fmt.Fprintf(&msg, "From: %s\r\n", from)
	fmt.Fprintf(&msg, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", headerValue(subject)))
	fmt.Fprintf(&msg, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&msg, "Content-Type: multipart/alternative; boundary=\"%s\"\r\n", boundary)
	fmt.Fprintf(&msg, "\r\n")

	fmt.Fprintf(&msg, "--%s\r\n", boundary)
	fmt.Fprintf(&msg, "Content-Type: text/plain; charset=UTF-8\r\n")
	fmt.Fprintf(&msg, "\r\n")
	fmt.Fprintf(&msg, "%s\r\n", textBody)
	fmt.Fprintf(&msg, "\r\n")

	fmt.Fprintf(&msg, "--%s\r\n", boundary)
	fmt.Fprintf(&msg, "Content-Type: text/html; charset=UTF-8\r\n")
	fmt.Fprintf(&msg, "\r\n")
	fmt.Fprintf(&msg, "%s\r\n", htmlBody)
	fmt.Fprintf(&msg, "\r\n")
	fmt.Fprintf(&msg, "--%s--\r\n", boundary)

	return s.send(s.server, s.auth, s.config.From, recipients, msg.Bytes())
}

// headerValue folds line breaks out of v so it stays a single header line.
func headerValue(v string) string {
	return strings.Join(strings.Fields(strings.NewReplacer("\r", " ", "\n", " ").Replace(v)), " ")
}

// MentionData feeds the mention template.
type MentionData struct {
	AppName       string
	RecipientName string
	CommenterName string
	ReviewURL     string
	Segments      []mention.Segment
}

// Mention describes one comment that mentioned the recipient.
type Mention struct {
	To            mention.UserIdentity
	CommenterName string
	ReviewID      string
	CommentID     string
	Content       string
	// Known resolves @names in Content into highlighted spans.
	Known []mention.UserIdentity
}

// SendMentionEmail tells a user they were mentioned in a review comment.
func (s *Service) SendMentionEmail(m Mention) error {
	if m.To.Email == "" {
		return fmt.Errorf("mention recipient %q has no email", m.To.ID)
	}

	data := MentionData{
		AppName:       "Graph Review",
		RecipientName: m.To.Name,
		CommenterName: m.CommenterName,
		ReviewURL:     s.reviewURL(m.ReviewID, m.CommentID),
		Segments:      mention.Render(m.Content, m.Known),
	}

	subject := fmt.Sprintf("%s mentioned you in a review comment", m.CommenterName)
	html, err := renderTemplate(mentionTemplate, data)
	if err != nil {
		return fmt.Errorf("render mention template: %w", err)
	}
	text := fmt.Sprintf("%s mentioned you:\r\n\r\n%s\r\n\r\n%s", m.CommenterName, m.Content, data.ReviewURL)

	return s.SendHTMLEmail([]string{m.To.Email}, subject, text, html)
}

func (s *Service) reviewURL(reviewID, commentID string) string {
	base := strings.TrimRight(s.config.AppBaseURL, "/")
	url := base + "/reviews/" + reviewID
	if commentID != "" {
		url += "#comment-" + commentID
	}
	return url
}

var mentionTemplate = template.Must(template.New("mention").Parse(mentionEmailTemplate))

func renderTemplate(t *template.Template, data interface{}) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const mentionEmailTemplate = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>You were mentioned on {{.AppName}}</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { border-bottom: 2px solid #0066cc; padding-bottom: 10px; margin-bottom: 20px; }
        .comment { background: #f6f8fa; padding: 12px; border-radius: 4px; white-space: pre-wrap; }
        .mention { color: #0066cc; font-weight: 600; }
        .button { display: inline-block; padding: 12px 24px; background: #0066cc; color: white; text-decoration: none; border-radius: 4px; margin: 20px 0; }
        .footer { margin-top: 30px; padding-top: 20px; border-top: 1px solid #eee; font-size: 12px; color: #666; }
    </style>
</head>
<body>
    <div class="header">
        <h1>{{.AppName}}</h1>
    </div>

    <p>Hi {{.RecipientName}},</p>

    <p><strong>{{.CommenterName}}</strong> mentioned you in a comment:</p>

    <div class="comment">{{range .Segments}}{{if eq .Kind "mention"}}<span class="mention">@{{.Value}}</span>{{else}}{{.Value}}{{end}}{{end}}</div>

    <p>
        <a href="{{.ReviewURL}}" class="button">Open the review</a>
    </p>

    <div class="footer">
        <p>You received this because someone mentioned you on {{.AppName}}.</p>
    </div>
</body>
</html>`
