package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"graphreview/api/internal/client"
	"graphreview/api/internal/config"
	"graphreview/api/internal/mention"
)

type mentionsCmd struct {
	cfg *config.Config

	apiURL string
	text   string
	caret  int
	width  int
}

func newMentionsCmd(cfg *config.Config) *mentionsCmd {
	return &mentionsCmd{cfg: cfg}
}

func (cmd *mentionsCmd) command() *cli.Command {
	return &cli.Command{
		Name:  "mentions",
		Usage: "Inspect @mention suggestions",
		Commands: []*cli.Command{
			{
				Name:  "suggest",
				Usage: "Show the suggestion list for text typed up to a caret",
				Description: `Loads the user directory from the API and prints the candidates the
comment box would offer, with the dropdown anchor in terminal cells.

Examples:
  graphreview mentions suggest --text "ping @al"
  graphreview mentions suggest --text "@bo and more" --caret 3`,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:        "api-url",
						Usage:       "API base URL (defaults to api_url from config)",
						Destination: &cmd.apiURL,
					},
					&cli.StringFlag{
						Name:        "text",
						Required:    true,
						Destination: &cmd.text,
					},
					&cli.IntFlag{
						Name:        "caret",
						Usage:       "caret offset in runes (defaults to end of text)",
						Value:       -1,
						Destination: &cmd.caret,
					},
					&cli.IntFlag{
						Name:        "width",
						Usage:       "input width in cells",
						Value:       60,
						Destination: &cmd.width,
					},
				},
				Action: cmd.runSuggest,
			},
		},
	}
}

func (cmd *mentionsCmd) runSuggest(ctx context.Context, c *cli.Command) error {
	apiURL := cmd.apiURL
	if apiURL == "" {
		apiURL = cmd.cfg.APIURL
	}
	profiles := mention.NewSharedDirectory(client.New(apiURL, cmd.cfg.APIToken))
	users, err := profiles.ListUserProfiles(ctx)
	if err != nil {
		return fmt.Errorf("load profiles: %w", err)
	}

	caret := cmd.caret
	if caret < 0 {
		caret = len([]rune(cmd.text))
	}
	composer := mention.NewComposer(mention.NewIndex(users), mention.DefaultSuggestionLimit)
	composer.SetText(cmd.text, caret)

	out := c.Root().Writer
	suggestions := composer.Suggestions()
	if !suggestions.IsOpen() {
		_, _ = fmt.Fprintln(out, metaStyle.Render("no mention at caret"))
		return nil
	}

	_, _ = fmt.Fprintf(out, "query %q\n", suggestions.Detection().Query)
	for i, u := range suggestions.Items() {
		line := fmt.Sprintf("%s <%s>", u.Name, u.Email)
		if i == suggestions.Highlighted() {
			line = highlightStyle.Render(line)
		}
		_, _ = fmt.Fprintln(out, line)
	}
	if !suggestions.Active() {
		_, _ = fmt.Fprintln(out, metaStyle.Render("no matching users"))
		return nil
	}

	box := mention.Rect{Width: float64(cmd.width)}
	if anchor, ok := composer.Anchor(mention.MonospaceMeasurer{}, box, mention.Point{}); ok {
		_, _ = fmt.Fprintf(out, "dropdown at col %d, row %d\n", int(anchor.X), int(anchor.Y))
	}
	return nil
}
