package commands

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/hay-kot/blindchat/internal/tui"
)

type TuiCmd struct {
	flags *Flags

	noMarkdown bool
}

// NewTuiCmd creates a new tui command
func NewTuiCmd(flags *Flags) *TuiCmd {
	return &TuiCmd{
		flags: flags,
	}
}

// Flags returns the TUI-specific flags for registration on the root command
func (cmd *TuiCmd) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:        "no-markdown",
			Usage:       "show message bodies as plain text",
			Destination: &cmd.noMarkdown,
		},
	}
}

// Register adds the tui command to the application
func (cmd *TuiCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:        "tui",
		Usage:       "Open the chat",
		UsageText:   "blindchat tui [options]",
		Description: "Opens the interactive chat. This is also what runs when no command is given.",
		Flags:       cmd.Flags(),
		Action:      cmd.run,
	})

	return app
}

// Run executes the TUI. Exported for use as default command.
func (cmd *TuiCmd) Run(ctx context.Context, c *cli.Command) error {
	return cmd.run(ctx, c)
}

func (cmd *TuiCmd) run(ctx context.Context, _ *cli.Command) error {
	cfg := cmd.flags.Config

	sess, err := openSession(ctx, cfg, feedOptions(cfg))
	if err != nil {
		return err
	}
	defer func() { _ = sess.Close() }()

	opts := tui.Options{
		Collection: cfg.Collection,
		Markdown:   cfg.TUI.Markdown && !cmd.noMarkdown,
	}

	return tui.Run(ctx, sess.feed, sess.provider, opts)
}
