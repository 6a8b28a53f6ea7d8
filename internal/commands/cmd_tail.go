package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/samber/lo"
	"github.com/urfave/cli/v3"

	"github.com/hay-kot/blindchat/internal/core/chat"
	"github.com/hay-kot/blindchat/internal/feed"
	"github.com/hay-kot/blindchat/pkg/tmpl"
)

const defaultTailFormat = `{{ clock .CreatedAt }}  {{ short .AuthorID }}{{ if .Mine }} (you){{ end }}  {{ .Text | oneline }}`

type TailCmd struct {
	flags *Flags

	follow bool
	format string
	json   bool
}

// NewTailCmd creates a new tail command
func NewTailCmd(flags *Flags) *TailCmd {
	return &TailCmd{flags: flags}
}

// Register adds the tail command to the application
func (cmd *TailCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "tail",
		Usage:     "Print the most recent messages",
		UsageText: "blindchat tail [options]",
		Description: `Prints the messages currently in the feed, oldest first.

The format is a Go template executed per message. Fields: .ID, .AuthorID,
.AvatarURL, .Avatar, .Text, .CreatedAt, .Mine. Functions: short, clock,
since, oneline, trunc.`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "follow",
				Aliases:     []string{"f"},
				Usage:       "keep printing new messages until interrupted",
				Destination: &cmd.follow,
			},
			&cli.StringFlag{
				Name:        "format",
				Usage:       "Go template for each message",
				Value:       defaultTailFormat,
				Destination: &cmd.format,
			},
			&cli.BoolFlag{
				Name:        "json",
				Usage:       "print one JSON object per message",
				Destination: &cmd.json,
			},
		},
		Action: cmd.run,
	})

	return app
}

type tailRecord struct {
	chat.Message
	Mine bool `json:"mine"`
}

func (cmd *TailCmd) run(ctx context.Context, c *cli.Command) error {
	t, err := tmpl.Parse(cmd.format)
	if err != nil {
		return fmt.Errorf("invalid --format: %w", err)
	}

	cfg := cmd.flags.Config
	sess, err := openSession(ctx, cfg, feedOptions(cfg))
	if err != nil {
		return err
	}
	defer func() { _ = sess.Close() }()

	v, err := awaitLoaded(ctx, sess.feed)
	if err != nil {
		return err
	}

	out := c.Root().Writer
	seen := make(map[string]bool)

	emit := func(rows []feed.Row) error {
		fresh := lo.Filter(rows, func(r feed.Row, _ int) bool { return !seen[r.ID] })
		for _, r := range fresh {
			seen[r.ID] = true
		}
		return cmd.write(out, t, fresh)
	}

	if err := emit(v.Rows); err != nil {
		return err
	}
	if !cmd.follow {
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-sess.feed.Changes():
		}

		v := sess.feed.State()
		switch {
		case !v.SignedIn:
			return errNotSignedIn
		case v.Banner != nil && !cfg.Feed.Resubscribe.Enabled:
			return v.Banner
		}

		if err := emit(v.Rows); err != nil {
			return err
		}
	}
}

func (cmd *TailCmd) write(w io.Writer, t *tmpl.Template, rows []feed.Row) error {
	if cmd.json {
		enc := json.NewEncoder(w)
		records := lo.Map(rows, func(r feed.Row, _ int) tailRecord {
			return tailRecord{Message: r.Message, Mine: r.Mine}
		})
		for _, rec := range records {
			if err := enc.Encode(rec); err != nil {
				return err
			}
		}
		return nil
	}

	for _, r := range rows {
		line, err := t.Execute(r)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}
