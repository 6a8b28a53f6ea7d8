package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/hay-kot/blindchat/internal/auth"
	"github.com/hay-kot/blindchat/internal/core/identity"
	"github.com/hay-kot/blindchat/internal/printer"
)

type TokenCmd struct {
	flags *Flags

	id     string
	avatar string
	name   string
	ttl    time.Duration
	save   bool
}

// NewTokenCmd creates a new token command
func NewTokenCmd(flags *Flags) *TokenCmd {
	return &TokenCmd{flags: flags}
}

// Register adds the token command to the application
func (cmd *TokenCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:  "token",
		Usage: "Identity token commands",
		Commands: []*cli.Command{
			{
				Name:      "mint",
				Usage:     "Mint a signed identity token",
				UsageText: "blindchat token mint --id <user> [options]",
				Description: `Signs an identity token with auth.token_secret (or BLINDCHAT_TOKEN_SECRET).

Hand the token to a user; they sign in with 'blindchat login --token-file'.`,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:        "id",
						Usage:       "user id",
						Required:    true,
						Destination: &cmd.id,
					},
					&cli.StringFlag{
						Name:        "avatar",
						Usage:       "avatar URL",
						Destination: &cmd.avatar,
					},
					&cli.StringFlag{
						Name:        "name",
						Usage:       "display name",
						Destination: &cmd.name,
					},
					&cli.DurationFlag{
						Name:        "ttl",
						Usage:       "token lifetime (defaults to auth.token_ttl)",
						Destination: &cmd.ttl,
					},
					&cli.BoolFlag{
						Name:        "save",
						Usage:       "write the token to auth.token_file instead of stdout",
						Destination: &cmd.save,
					},
				},
				Action: cmd.mint,
			},
		},
	})

	return app
}

func (cmd *TokenCmd) mint(ctx context.Context, c *cli.Command) error {
	p := printer.Ctx(ctx)
	cfg := cmd.flags.Config
	if cfg == nil {
		return errConfigNotLoaded
	}

	issuer, err := auth.NewTokenIssuer(cfg.Auth.TokenSecret)
	if err != nil {
		return err
	}

	ttl := cmd.ttl
	if ttl == 0 {
		ttl = cfg.Auth.TokenTTL
	}

	token, err := issuer.Issue(identity.Identity{ID: cmd.id, AvatarURL: cmd.avatar, Name: cmd.name}, ttl)
	if err != nil {
		return fmt.Errorf("mint token: %w", err)
	}

	if !cmd.save {
		_, err := fmt.Fprintln(c.Root().Writer, token)
		return err
	}

	path := cfg.Auth.TokenFile
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create token directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(token+"\n"), 0o600); err != nil {
		return fmt.Errorf("write token: %w", err)
	}

	p.Success("Token saved", path)
	return nil
}
