// Package cli is the terminal front end of the storefront client. Each
// command builds the app, restores persisted state, acts on one store and
// exits; state carries over between invocations through storage.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"storefront/internal/app"
	"storefront/internal/config"
	"storefront/internal/log"
)

const (
	ExitSuccess    = 0
	ExitValidation = 1
	ExitAuth       = 2
	ExitInternal   = 4
)

type CLI struct {
	rootCmd *cobra.Command
	app     *app.App

	configPath string
	apiURL     string
	jsonOutput bool

	stdout io.Writer
	stderr io.Writer
}

func New() *CLI {
	c := &CLI{stdout: os.Stdout, stderr: os.Stderr}
	c.rootCmd = c.newRootCmd()
	return c
}

// SetOutput redirects command output and logs.
func (c *CLI) SetOutput(stdout, stderr io.Writer) {
	c.stdout = stdout
	c.stderr = stderr
	c.rootCmd.SetOut(stdout)
	c.rootCmd.SetErr(stderr)
}

// Execute runs the command line and maps the error to an exit code.
func (c *CLI) Execute(args []string) int {
	c.rootCmd.SetArgs(args)
	if err := c.rootCmd.Execute(); err != nil {
		fmt.Fprintf(c.stderr, "storefront: %v\n", err)
		return exitCode(err)
	}
	return ExitSuccess
}

func (c *CLI) newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "storefront",
		Short: "Storefront client: session and cart",
		Long: `storefront keeps a shopper's session and shopping cart on this machine.

Sign in against the storefront API, then add, update and remove cart lines.
Both survive between runs in the configured local storage.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.initApp(cmd.Context())
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if c.app == nil {
				return nil
			}
			return c.app.Close()
		},
	}

	cmd.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default: ./config.yaml or ~/.storefront/config.yaml)")
	cmd.PersistentFlags().StringVar(&c.apiURL, "api", "", "storefront API base URL (overrides config)")
	cmd.PersistentFlags().BoolVar(&c.jsonOutput, "json", false, "machine-readable JSON output")

	cmd.AddCommand(c.newLoginCmd())
	cmd.AddCommand(c.newRegisterCmd())
	cmd.AddCommand(c.newLogoutCmd())
	cmd.AddCommand(c.newWhoamiCmd())
	cmd.AddCommand(c.newCartCmd())

	return cmd
}

func (c *CLI) initApp(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	if c.apiURL != "" {
		cfg.API.BaseURL = c.apiURL
	}

	logger := log.New(cfg.Environment, c.stderr)
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	c.app = a

	// No scheduler runs in a one-shot process; sweep once instead.
	a.Session.ExpireIfStale(ctx, time.Now())
	return nil
}

func (c *CLI) printf(format string, args ...any) {
	fmt.Fprintf(c.stdout, format, args...)
}

func (c *CLI) printJSON(v any) error {
	enc := json.NewEncoder(c.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
