package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"graphreview/api/internal/client"
	"graphreview/api/internal/config"
	"graphreview/api/internal/logging"
	"graphreview/api/internal/mention"
	"graphreview/api/internal/section"
	"graphreview/api/internal/vote"
)

type commentsCmd struct {
	cfg *config.Config

	apiURL   string
	token    string
	email    string
	name     string
	reviewID string

	parentID string
	limit    int

	// profiles is shared by everything one invocation loads.
	profiles *mention.SharedDirectory
}

func newCommentsCmd(cfg *config.Config) *commentsCmd {
	return &commentsCmd{cfg: cfg}
}

func (cmd *commentsCmd) command() *cli.Command {
	return &cli.Command{
		Name:  "comments",
		Usage: "Read and write review comments through the API",
		Description: `Drives a comment section against a running API.

Examples:
  graphreview comments --review rev-1 list
  graphreview comments --review rev-1 --email bob@example.com post "Looks right @Alice Park"
  graphreview comments --review rev-1 reply --parent cmt_1 "Agreed"
  graphreview comments --review rev-1 vote cmt_1 up
  graphreview comments --review rev-1 delete cmt_1`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "api-url",
				Usage:       "API base URL (defaults to api_url from config)",
				Destination: &cmd.apiURL,
			},
			&cli.StringFlag{
				Name:        "token",
				Usage:       "session token (defaults to api_token from config)",
				Sources:     cli.EnvVars("GRAPHREVIEW_TOKEN"),
				Destination: &cmd.token,
			},
			&cli.StringFlag{
				Name:        "email",
				Usage:       "sign in with this email before acting",
				Destination: &cmd.email,
			},
			&cli.StringFlag{
				Name:        "name",
				Usage:       "display name used when --email is a new user",
				Destination: &cmd.name,
			},
			&cli.StringFlag{
				Name:        "review",
				Aliases:     []string{"r"},
				Usage:       "review id",
				Required:    true,
				Destination: &cmd.reviewID,
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "Show the comment thread",
				Action: cmd.runList,
			},
			{
				Name:      "post",
				Usage:     "Post a top-level comment",
				UsageText: "graphreview comments post <content>",
				Action:    cmd.runPost,
			},
			{
				Name:      "reply",
				Usage:     "Reply to a top-level comment",
				UsageText: "graphreview comments reply --parent <id> <content>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:        "parent",
						Aliases:     []string{"p"},
						Required:    true,
						Destination: &cmd.parentID,
					},
				},
				Action: cmd.runReply,
			},
			{
				Name:      "vote",
				Usage:     "Vote up or down; repeating your vote removes it",
				UsageText: "graphreview comments vote <id> <up|down>",
				Action:    cmd.runVote,
			},
			{
				Name:      "delete",
				Usage:     "Delete one of your comments",
				UsageText: "graphreview comments delete <id>",
				Action:    cmd.runDelete,
			},
			{
				Name:      "search",
				Usage:     "Full-text search the review's comments",
				UsageText: "graphreview comments search <query>",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:        "limit",
						Value:       20,
						Destination: &cmd.limit,
					},
				},
				Action: cmd.runSearch,
			},
		},
	}
}

func (cmd *commentsCmd) client(ctx context.Context) (*client.Client, error) {
	apiURL := cmd.apiURL
	if apiURL == "" {
		apiURL = cmd.cfg.APIURL
	}
	token := cmd.token
	if token == "" {
		token = cmd.cfg.APIToken
	}
	cl := client.New(apiURL, token)
	cmd.profiles = mention.NewSharedDirectory(cl)
	if cmd.email != "" {
		user, err := cl.Login(ctx, cmd.email, cmd.name)
		if err != nil {
			return nil, fmt.Errorf("sign in: %w", err)
		}
		log.Debug().Str("user_id", user.ID).Msg("signed in")
	}
	return cl, nil
}

// open loads a comment section for the review. Callers must Close it.
func (cmd *commentsCmd) open(ctx context.Context, c *cli.Command) (*section.Controller, error) {
	cl, err := cmd.client(ctx)
	if err != nil {
		return nil, err
	}
	errOut := c.Root().ErrWriter
	ctrl := section.New(section.Options{
		ReviewID:   cmd.reviewID,
		Backend:    cl,
		Auth:       cl,
		Directory:  cmd.profiles,
		Dispatcher: cl,
		Notices:    section.NoticeFunc(func(n section.Notice) { renderNotice(errOut, n) }),
		Logger:     logging.Component(log.Logger, "section"),
	})
	if err := ctrl.Load(ctx); err != nil {
		return nil, err
	}
	return ctrl, nil
}

func (cmd *commentsCmd) runList(ctx context.Context, c *cli.Command) error {
	ctrl, err := cmd.open(ctx, c)
	if err != nil {
		return err
	}
	defer ctrl.Close()

	renderThread(c.Root().Writer, ctrl.Snapshot(), ctrl.Render, ctrl.CanDelete)
	return nil
}

func (cmd *commentsCmd) runPost(ctx context.Context, c *cli.Command) error {
	return cmd.create(ctx, c, "")
}

func (cmd *commentsCmd) runReply(ctx context.Context, c *cli.Command) error {
	return cmd.create(ctx, c, cmd.parentID)
}

func (cmd *commentsCmd) create(ctx context.Context, c *cli.Command, parentID string) error {
	content := strings.Join(c.Args().Slice(), " ")
	ctrl, err := cmd.open(ctx, c)
	if err != nil {
		return err
	}
	defer ctrl.Close()

	if parentID == "" {
		_, err = ctrl.Submit(ctx, content)
	} else {
		_, err = ctrl.Reply(ctx, parentID, content)
	}
	// Mention notifications are dispatched in the background.
	ctrl.Wait()
	if err != nil {
		return err
	}
	renderThread(c.Root().Writer, ctrl.Snapshot(), ctrl.Render, ctrl.CanDelete)
	return nil
}

func (cmd *commentsCmd) runVote(ctx context.Context, c *cli.Command) error {
	if c.NArg() < 2 {
		return fmt.Errorf("usage: graphreview comments vote <id> <up|down>")
	}
	want, err := vote.ParseType(c.Args().Get(1))
	if err != nil {
		return err
	}
	ctrl, err := cmd.open(ctx, c)
	if err != nil {
		return err
	}
	defer ctrl.Close()

	state, err := ctrl.Vote(ctx, c.Args().Get(0), want)
	if err != nil {
		return err
	}
	current := string(state.Current)
	if current == "" {
		current = "none"
	}
	_, _ = fmt.Fprintf(c.Root().Writer, "%d votes (you: %s)\n", state.Count, current)
	return nil
}

func (cmd *commentsCmd) runDelete(ctx context.Context, c *cli.Command) error {
	if c.NArg() < 1 {
		return fmt.Errorf("usage: graphreview comments delete <id>")
	}
	ctrl, err := cmd.open(ctx, c)
	if err != nil {
		return err
	}
	defer ctrl.Close()

	return ctrl.Delete(ctx, c.Args().Get(0))
}

func (cmd *commentsCmd) runSearch(ctx context.Context, c *cli.Command) error {
	query := strings.Join(c.Args().Slice(), " ")
	cl, err := cmd.client(ctx)
	if err != nil {
		return err
	}
	resp, err := cl.SearchComments(ctx, cmd.reviewID, query, cmd.limit)
	if err != nil {
		return err
	}
	users, err := cmd.profiles.ListUserProfiles(ctx)
	if err != nil {
		log.Debug().Err(err).Msg("profiles unavailable, snippets shown without mentions")
	}
	renderer := mention.NewRenderer(users)

	out := c.Root().Writer
	for _, r := range resp.Results {
		_, _ = fmt.Fprintf(out, "%s %s\n  %s\n", authorStyle.Render(r.AuthorName), metaStyle.Render(r.ID), renderSegments(renderer.Render(r.Snippet)))
	}
	_, _ = fmt.Fprintln(out, metaStyle.Render(fmt.Sprintf("%d of %d results", len(resp.Results), resp.Total)))
	return nil
}
