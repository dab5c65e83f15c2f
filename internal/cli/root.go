// Package cli implements the churchctl terminal client.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/npezzotti/go-fellowship/internal/apiclient"
	"github.com/npezzotti/go-fellowship/internal/config"
	"github.com/npezzotti/go-fellowship/internal/logging"
	"github.com/npezzotti/go-fellowship/internal/notify"
	"github.com/npezzotti/go-fellowship/internal/session"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "unknown"
)

// env is what every command runs with once configuration is loaded.
type env struct {
	cfg      *config.ClientConfig
	log      zerolog.Logger
	api      *apiclient.Client
	provider *session.Provider
	notifier *notify.Dispatcher

	in  io.Reader
	out io.Writer
}

func (e *env) close() {
	if e.provider != nil {
		e.provider.Close()
	}
}

type rootOptions struct {
	envFile  string
	server   string
	email    string
	password string
}

// NewRootCmd builds the command tree reading from in and writing to out.
func NewRootCmd(in io.Reader, out io.Writer) *cobra.Command {
	opts := &rootOptions{}
	e := &env{in: in, out: out}

	rootCmd := &cobra.Command{
		Use:   "churchctl",
		Short: "Terminal client for the fellowship server",
		Long: `churchctl signs in to a fellowship server, chats with other members,
shows push notifications as they arrive and lets admins post announcements.`,
		Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return e.load(cmd, opts)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			e.close()
		},
	}
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.SetIn(in)
	rootCmd.SetOut(out)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&opts.envFile, "env-file", "", "dotenv file to load before reading CHURCHCTL_* variables")
	pf.StringVar(&opts.server, "server", "", "server URL (overrides CHURCHCTL_SERVER)")
	pf.StringVar(&opts.email, "email", "", "account email (overrides CHURCHCTL_EMAIL)")
	pf.StringVar(&opts.password, "password", "", "account password (overrides CHURCHCTL_PASSWORD)")

	rootCmd.AddCommand(
		newSignUpCmd(e),
		newWhoAmICmd(e),
		newConversationsCmd(e),
		newChatCmd(e),
		newListenCmd(e),
		newAnnounceCmd(e),
		newAnnouncementsCmd(e),
	)

	return rootCmd
}

func (e *env) load(cmd *cobra.Command, opts *rootOptions) error {
	cfg, err := config.LoadClient(opts.envFile)
	if err != nil {
		return err
	}
	if opts.server != "" {
		cfg.ServerURL = opts.server
		if err := cfg.Validate(); err != nil {
			return err
		}
	}
	if opts.email != "" {
		cfg.Email = opts.email
	}
	if opts.password != "" {
		cfg.Password = opts.password
	}

	logger, err := logging.NewWithWriter(cmd.ErrOrStderr(), cfg.LogLevel, "console")
	if err != nil {
		return err
	}

	api, err := apiclient.New(cfg.ServerURL, cfg.Timeout, logger)
	if err != nil {
		return err
	}

	e.cfg = cfg
	e.log = logger
	e.api = api
	e.provider = session.NewProvider(api, api, logger.With().Str("component", "session").Logger())
	e.notifier = notify.NewDispatcher(notify.NewFunctionClient(api.HTTP()), logger.With().Str("component", "notify").Logger())
	return nil
}

// Execute runs churchctl against the process's standard streams.
func Execute(ctx context.Context) {
	if err := NewRootCmd(os.Stdin, os.Stdout).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
