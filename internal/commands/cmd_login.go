package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/huh"
	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/hay-kot/blindchat/internal/auth"
	"github.com/hay-kot/blindchat/internal/core/identity"
	"github.com/hay-kot/blindchat/internal/printer"
	"github.com/hay-kot/blindchat/internal/styles"
)

type LoginCmd struct {
	flags *Flags

	tokenFile string
}

// NewLoginCmd creates a new login command
func NewLoginCmd(flags *Flags) *LoginCmd {
	return &LoginCmd{flags: flags}
}

// Register adds the login, logout and whoami commands to the application
func (cmd *LoginCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands,
		&cli.Command{
			Name:      "login",
			Usage:     "Sign in",
			UsageText: "blindchat login [options]",
			Description: `Signs in with the configured method and remembers the session.

With the profile method and no auth.profile.id configured, you are prompted
for one when running in a terminal.`,
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:        "token-file",
					Usage:       "identity token to sign in with (token method)",
					Destination: &cmd.tokenFile,
				},
			},
			Action: cmd.login,
		},
		&cli.Command{
			Name:   "logout",
			Usage:  "Sign out and forget the session",
			Action: cmd.logout,
		},
		&cli.Command{
			Name:   "whoami",
			Usage:  "Show the signed-in user",
			Action: cmd.whoami,
		},
	)

	return app
}

// recordingAuth keeps the last sign-in error, which the provider only logs.
type recordingAuth struct {
	auth.Authenticator

	mu  sync.Mutex
	err error
}

func (r *recordingAuth) Authenticate(ctx context.Context) (identity.Session, error) {
	sess, err := r.Authenticator.Authenticate(ctx)
	r.mu.Lock()
	r.err = err
	r.mu.Unlock()
	return sess, err
}

func (r *recordingAuth) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

func (cmd *LoginCmd) login(ctx context.Context, c *cli.Command) error {
	p := printer.Ctx(ctx)
	cfg := cmd.flags.Config
	if cfg == nil {
		return errConfigNotLoaded
	}

	a, err := authenticator(cfg, cmd.tokenFile)
	if err != nil {
		return err
	}

	if pa, ok := a.(auth.ProfileAuthenticator); ok && !pa.Profile.Valid() {
		profile, err := promptProfile(ctx)
		if err != nil {
			return err
		}
		pa.Profile = profile
		a = pa
	}

	rec := &recordingAuth{Authenticator: a}
	provider := newProvider(ctx, cfg, rec)
	provider.RequestSignIn(ctx)
	provider.Wait()

	if err := rec.Err(); err != nil {
		return fmt.Errorf("sign in: %w", err)
	}

	id, ok := provider.Current()
	if !ok {
		return errors.New("sign in did not complete")
	}

	p.Successf("Signed in as %s", displayName(id))
	return nil
}

func (cmd *LoginCmd) logout(ctx context.Context, c *cli.Command) error {
	p := printer.Ctx(ctx)
	cfg := cmd.flags.Config
	if cfg == nil {
		return errConfigNotLoaded
	}

	provider := newProvider(ctx, cfg, auth.ProfileAuthenticator{})
	if _, ok := provider.Current(); !ok {
		p.Infof("Not signed in")
		return nil
	}

	provider.RequestSignOut(ctx)
	provider.Wait()

	p.Successf("Signed out")
	return nil
}

func (cmd *LoginCmd) whoami(ctx context.Context, c *cli.Command) error {
	p := printer.Ctx(ctx)
	cfg := cmd.flags.Config
	if cfg == nil {
		return errConfigNotLoaded
	}

	provider := newProvider(ctx, cfg, auth.ProfileAuthenticator{})
	id, ok := provider.Current()
	if !ok {
		p.Infof("Not signed in")
		return nil
	}

	p.Field("ID", id.ID)
	if id.Name != "" {
		p.Field("Name", id.Name)
	}
	p.Field("Avatar", identityAvatar(id))
	p.Field("Method", cfg.Auth.Method)
	return nil
}

// promptProfile asks for a profile identity. It refuses to prompt when stdin
// is not a terminal.
func promptProfile(ctx context.Context) (identity.Identity, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return identity.Identity{}, fmt.Errorf("%w: set auth.profile.id in the config file", auth.ErrNoProfile)
	}

	var id identity.Identity
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("User ID").
				Description("Shown as the author of your messages").
				Value(&id.ID).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return identity.ErrNoIdentityID
					}
					return nil
				}),
			huh.NewInput().
				Title("Display name").
				Value(&id.Name),
			huh.NewInput().
				Title("Avatar URL").
				Placeholder("optional").
				Value(&id.AvatarURL),
		),
	).WithTheme(styles.FormTheme())

	if err := form.RunWithContext(ctx); err != nil {
		return identity.Identity{}, fmt.Errorf("profile prompt: %w", err)
	}

	id.ID = strings.TrimSpace(id.ID)
	id.Name = strings.TrimSpace(id.Name)
	id.AvatarURL = strings.TrimSpace(id.AvatarURL)
	return id, nil
}

func displayName(id identity.Identity) string {
	if id.Name != "" {
		return fmt.Sprintf("%s (%s)", id.Name, id.ID)
	}
	return id.ID
}

func identityAvatar(id identity.Identity) string {
	if id.AvatarURL == "" {
		return "(default)"
	}
	return id.AvatarURL
}
