package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kerbaras/readly/pkg/config"
	"github.com/kerbaras/readly/pkg/logging"
	"github.com/kerbaras/readly/pkg/sources"
	"github.com/kerbaras/readly/pkg/transport"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath string
	token      string
	logLevel   string
	logFormat  string
}

var rootOpts rootOptions

var rootCmd = &cobra.Command{
	Use:   "readly [locator...]",
	Short: "Download Readly issues as PDF or CBZ",
	Long: `Download magazine and newspaper issues you have access to and assemble
them into a single PDF, CBZ or EPUB file.

A locator is a 24 character issue id, a collection id, a
https://go.readly.com/{category}/{magazine}/{issue} URL or a product page URL.
Without a subcommand, readly behaves like "readly get".`,
	Args:          cobra.ArbitraryArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 && getOpts.list == "" {
			return cmd.Help()
		}
		return runGet(cmd, args)
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&rootOpts.configPath, "config", "", "Config file (default "+defaultConfigHelp()+")")
	flags.StringVarP(&rootOpts.token, "token", "t", "", "Access token, or a file whose first line is the token")
	flags.StringVar(&rootOpts.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	flags.StringVar(&rootOpts.logFormat, "log-format", "", "Log format: console or json")

	addGetFlags(rootCmd)

	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(latestCmd)
	rootCmd.AddCommand(historyCmd)
}

func defaultConfigHelp() string {
	path, err := config.DefaultConfigPath()
	if err != nil {
		return "~/.config/readly/config.toml"
	}
	return path
}

// Execute runs the root command until it returns or the process is
// interrupted.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, errorLine(err))
		stop()
		os.Exit(1)
	}
}

// runtime carries what every command needs once flags are parsed.
type runtime struct {
	cfg    *config.Config
	logger *slog.Logger
	client *transport.Client
}

func loadRuntime(cmd *cobra.Command) (*runtime, error) {
	cfg, _, _, err := config.Load(rootOpts.configPath)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("token") {
		cfg.Service.Token = rootOpts.token
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level = rootOpts.logLevel
	}
	if flags.Changed("log-format") {
		cfg.Logging.Format = rootOpts.logFormat
	}

	logger, err := logging.New(logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cmd.ErrOrStderr(),
	})
	if err != nil {
		return nil, err
	}

	client := transport.New(transport.Options{
		Attempts:  cfg.Service.Retries,
		Backoff:   cfg.Service.Backoff(),
		Timeout:   time.Duration(cfg.Service.TimeoutSeconds) * time.Second,
		UserAgent: cfg.Service.UserAgent,
		MaxRPS:    cfg.Service.MaxRPS,
		Logger:    logger,
	})

	return &runtime{cfg: cfg, logger: logger, client: client}, nil
}

// source builds the service client. Commands that talk to authenticated
// endpoints need a token.
func (rt *runtime) source(resolution int, needToken bool) (*sources.Readly, error) {
	token := rt.cfg.Service.Token
	if needToken || token != "" {
		var err error
		token, err = config.LoadToken(token)
		if err != nil {
			return nil, fmt.Errorf("%w (use --token or READLY_TOKEN)", err)
		}
	}
	return sources.NewReadly(rt.client, token, rt.cfg.Service.UserAgent, sources.Endpoints{
		API: rt.cfg.Service.APIURL,
		CDN: rt.cfg.Service.CDNURL,
	}, resolution), nil
}
