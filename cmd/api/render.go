package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"graphreview/api/internal/comment"
	"graphreview/api/internal/mention"
	"graphreview/api/internal/section"
)

var (
	authorStyle    = lipgloss.NewStyle().Bold(true)
	metaStyle      = lipgloss.NewStyle().Faint(true)
	mentionStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	highlightStyle = lipgloss.NewStyle().Reverse(true)
	replyStyle     = lipgloss.NewStyle().PaddingLeft(4)
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

func renderSegments(segments []mention.Segment) string {
	var b strings.Builder
	for _, s := range segments {
		if s.Kind == mention.SegmentMention {
			b.WriteString(mentionStyle.Render("@" + s.Value))
			continue
		}
		b.WriteString(s.Value)
	}
	return b.String()
}

func renderComment(c comment.Comment, render func(string) []mention.Segment, deletable func(string) bool) string {
	vote := ""
	if c.CurrentUserVote != "" {
		vote = " (you: " + string(c.CurrentUserVote) + ")"
	}
	own := ""
	if deletable != nil && deletable(c.ID) {
		own = " · yours"
	}
	header := fmt.Sprintf("%s %s", authorStyle.Render(c.AuthorName),
		metaStyle.Render(fmt.Sprintf("%s · %s · %d votes%s%s", c.ID, c.CreatedAt.Format("2006-01-02 15:04"), c.VoteCount, vote, own)))
	return header + "\n" + renderSegments(render(c.Content))
}

// renderThread prints top-level comments with their replies indented.
// Comments deletable reports true for are marked as the viewer's own.
func renderThread(w io.Writer, comments []comment.Comment, render func(string) []mention.Segment, deletable func(string) bool) {
	if len(comments) == 0 {
		_, _ = fmt.Fprintln(w, metaStyle.Render("No comments yet."))
		return
	}
	for _, c := range comments {
		_, _ = fmt.Fprintln(w, renderComment(c, render, deletable))
		for _, r := range c.Replies {
			_, _ = fmt.Fprintln(w, replyStyle.Render(renderComment(r, render, deletable)))
		}
		_, _ = fmt.Fprintln(w)
	}
}

func renderNotice(w io.Writer, n section.Notice) {
	msg := n.Message
	if n.Level == section.LevelError {
		msg = errorStyle.Render(msg)
	}
	_, _ = fmt.Fprintln(w, msg)
}
