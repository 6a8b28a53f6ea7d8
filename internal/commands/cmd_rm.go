package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/hay-kot/blindchat/internal/feed"
	"github.com/hay-kot/blindchat/internal/printer"
)

type RmCmd struct {
	flags *Flags
}

// NewRmCmd creates a new rm command
func NewRmCmd(flags *Flags) *RmCmd {
	return &RmCmd{flags: flags}
}

// Register adds the rm command to the application
func (cmd *RmCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "rm",
		Usage:     "Delete one of your messages",
		UsageText: "blindchat rm <id>",
		Description: `Deletes a message you wrote. The message must be in the current feed.

A unique ID prefix, as printed by 'blindchat tail', is accepted.`,
		Action: cmd.run,
	})

	return app
}

func (cmd *RmCmd) run(ctx context.Context, c *cli.Command) error {
	p := printer.Ctx(ctx)

	prefix := strings.TrimSpace(c.Args().First())
	if prefix == "" {
		return fmt.Errorf("message id required")
	}

	// Running the command is the confirmation.
	opts := feedOptions(cmd.flags.Config)
	opts.ConfirmDelete = false

	sess, err := openSession(ctx, cmd.flags.Config, opts)
	if err != nil {
		return err
	}
	defer func() { _ = sess.Close() }()

	v, err := awaitLoaded(ctx, sess.feed)
	if err != nil {
		return err
	}

	id, err := resolveID(v.Rows, prefix)
	if err != nil {
		return err
	}

	if err := sess.feed.RequestDelete(ctx, id); err != nil {
		return err
	}
	sess.feed.Wait()

	if v := sess.feed.State(); v.Notice != nil {
		return v.Notice
	}

	p.Successf("Deleted %s", id)
	return nil
}

// resolveID expands a unique ID prefix against the rows in the feed.
func resolveID(rows []feed.Row, prefix string) (string, error) {
	var matches []string
	for _, r := range rows {
		if r.ID == prefix {
			return r.ID, nil
		}
		if strings.HasPrefix(r.ID, prefix) {
			matches = append(matches, r.ID)
		}
	}

	switch len(matches) {
	case 0:
		return "", fmt.Errorf("no message %q in the current feed", prefix)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("id %q is ambiguous (%d matches)", prefix, len(matches))
	}
}
