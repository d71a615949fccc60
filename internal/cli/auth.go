package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"storefront/internal/models"
	"storefront/internal/session"
)

type credentialFlags struct {
	email    string
	password string
	google   string
}

func (f *credentialFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.email, "email", "", "account email")
	cmd.Flags().StringVar(&f.password, "password", "", "account password")
	cmd.Flags().StringVar(&f.google, "google-credential", "", "Google Sign-In ID token instead of a password")
}

func (f *credentialFlags) googleCredential() *session.GoogleCredential {
	if f.google == "" {
		return nil
	}
	return &session.GoogleCredential{IDToken: f.google}
}

func (c *CLI) newLoginCmd() *cobra.Command {
	var flags credentialFlags
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with email and password or a Google credential",
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := c.app.Session.Login(cmd.Context(), flags.email, flags.password, flags.googleCredential())
			if err != nil {
				return err
			}
			return c.printUser("Signed in as", user)
		},
	}
	flags.bind(cmd)
	return cmd
}

func (c *CLI) newRegisterCmd() *cobra.Command {
	var flags credentialFlags
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and sign in",
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := c.app.Session.Register(cmd.Context(), flags.email, flags.password, flags.googleCredential())
			if err != nil {
				return err
			}
			return c.printUser("Registered", user)
		},
	}
	flags.bind(cmd)
	return cmd
}

func (c *CLI) newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			c.app.Session.Logout(cmd.Context())
			if c.jsonOutput {
				return c.printJSON(map[string]bool{"loggedIn": false})
			}
			c.printf("Signed out\n")
			return nil
		},
	}
}

func (c *CLI) newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		RunE: func(cmd *cobra.Command, args []string) error {
			state := c.app.Session.State()
			if !state.LoggedIn() {
				if c.jsonOutput {
					return c.printJSON(map[string]bool{"loggedIn": false})
				}
				c.printf("Not signed in\n")
				return nil
			}
			return c.printUser("Signed in as", *state.User)
		},
	}
}

func (c *CLI) printUser(prefix string, user models.User) error {
	if c.jsonOutput {
		return c.printJSON(map[string]any{
			"loggedIn": true,
			"user":     user,
			"admin":    c.app.Session.IsAdmin(),
		})
	}
	c.printf("%s %s (%s)\n", prefix, user.Email, user.Role)
	if c.app.Session.IsAdmin() {
		c.printf("Admin access enabled\n")
	}
	return nil
}

func exitCode(err error) int {
	var vErr *session.ValidationError
	var aErr *session.AuthError
	switch {
	case errors.As(err, &vErr):
		return ExitValidation
	case errors.As(err, &aErr):
		return ExitAuth
	case isCartInputError(err):
		return ExitValidation
	default:
		return ExitInternal
	}
}
