package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/geoloqi/geoloqi-go/config"
	"github.com/geoloqi/geoloqi-go/geoloqi"
)

// skipInit marks commands that run without a config or session
const skipInit = "skip-init"

var (
	cfgFile  string
	logLevel string
	noSave   bool

	cfg     *config.Config
	logger  zerolog.Logger
	session *geoloqi.Session
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "geoloqi",
	Short: "A command line client for the Geoloqi API",
	Long: `geoloqi is a CLI tool for the Geoloqi location platform. It walks through
the OAuth2 authorization flow, keeps the resulting credential in the config
file and makes authenticated GET, POST and batch calls against the API.`,
	PersistentPreRunE: initializeApp,
	SilenceUsage:      true,
	SilenceErrors:     true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override logging.level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&noSave, "no-save", false, "do not write renewed credentials back to the config file")

	// Add subcommands
	rootCmd.AddCommand(authorizeURLCmd)
	rootCmd.AddCommand(exchangeCmd)
	rootCmd.AddCommand(refreshCmd)
	rootCmd.AddCommand(appTokenCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(postCmd)
	rootCmd.AddCommand(batchCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(selfUpdateCmd)
}

// initializeApp initializes the configuration and the API session
func initializeApp(cmd *cobra.Command, args []string) error {
	if cmd.Annotations[skipInit] != "" {
		logger = setupLogger(config.LoggingConfig{Level: "info", Format: "console", Color: true})
		return nil
	}

	// Load configuration
	var err error
	cfg, err = config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Override log level from command line if specified
	if cmd.Flags().Changed("log-level") {
		cfg.Logging.Level = logLevel
	}

	// Setup logger
	logger = setupLogger(cfg.Logging)

	if cfg.File != "" {
		logger.Debug().Str("file", cfg.File).Msg("Loaded config")
	}

	session, err = geoloqi.NewSession(
		geoloqi.WithConfig(cfg.SessionConfig(&logger)),
		geoloqi.WithAuth(cfg.AuthMap()),
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	return nil
}

// setupLogger configures the zerolog logger
func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	// Set log level
	level := zerolog.InfoLevel
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = zerolog.DebugLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}

	zerolog.SetGlobalLevel(level)

	// Configure output format
	if cfg.Format == "json" {
		return zerolog.New(os.Stderr).With().Timestamp().Logger()
	}

	// Console format, colored only on a terminal
	fd := os.Stderr.Fd()
	tty := isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
	output := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
		NoColor:    !cfg.Color || !tty,
	}

	return zerolog.New(output).With().Timestamp().Logger()
}

// persistAuth writes the session credential back to the config file when it
// differs from the one that was loaded.
func persistAuth() {
	if noSave || cfg == nil || session == nil {
		return
	}

	cred := session.Auth()
	if cred.AccessToken == cfg.Auth.AccessToken && cred.RefreshToken == cfg.Auth.RefreshToken {
		return
	}

	if cfg.File == "" {
		logger.Warn().Msg("Credential changed but no config file was loaded, not saving")
		return
	}

	if err := config.SaveAuth(cfg.File, cred); err != nil {
		logger.Error().Err(err).Str("file", cfg.File).Msg("Failed to save credential")
		return
	}
	cfg.Auth.AccessToken = cred.AccessToken
	cfg.Auth.RefreshToken = cred.RefreshToken
	logger.Info().Str("file", cfg.File).Msg("Saved credential")
}

// printJSON writes v to stdout as indented JSON
func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	fmt.Println(string(out))
	return nil
}
