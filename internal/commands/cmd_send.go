package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/hay-kot/blindchat/internal/printer"
)

type SendCmd struct {
	flags *Flags
}

// NewSendCmd creates a new send command
func NewSendCmd(flags *Flags) *SendCmd {
	return &SendCmd{flags: flags}
}

// Register adds the send command to the application
func (cmd *SendCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "send",
		Usage:     "Send a message",
		UsageText: "blindchat send [text...]",
		Description: `Sends one message to the conversation as the signed-in user.

With no arguments the message text is read from stdin.`,
		Action: cmd.run,
	})

	return app
}

func (cmd *SendCmd) run(ctx context.Context, c *cli.Command) error {
	p := printer.Ctx(ctx)

	text := strings.Join(c.Args().Slice(), " ")
	if text == "" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
		text = strings.TrimRight(string(data), "\n")
	}

	sess, err := openSession(ctx, cmd.flags.Config, feedOptions(cmd.flags.Config))
	if err != nil {
		return err
	}
	defer func() { _ = sess.Close() }()

	if _, ok := sess.provider.Current(); !ok {
		return errNotSignedIn
	}

	sess.feed.SetDraft(text)
	if err := sess.feed.Submit(ctx); err != nil {
		return err
	}
	sess.feed.Wait()

	if v := sess.feed.State(); v.Notice != nil {
		return v.Notice
	}

	p.Successf("Message sent")
	return nil
}
