package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/TheMichaelB/logvault/internal/client"
	"github.com/TheMichaelB/logvault/internal/config"
	"github.com/TheMichaelB/logvault/internal/events"
)

var (
	cfgFile    string
	jsonOutput bool

	cfg       *config.Config
	logger    *events.Logger
	apiClient *client.Client
)

var rootCmd = &cobra.Command{
	Use:   "logvault",
	Short: "Zero-knowledge encrypted log client",
	Long: `logvault encrypts log records client-side, derives blind-index
tokens for encrypted search, and authenticates without ever sending a
password or key to the service.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setup()
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if apiClient != nil {
			return apiClient.Close()
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"Config file path (default: logvault.json, ~/.config/logvault/config.json)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false,
		"Output results as JSON")
	rootCmd.PersistentFlags().String("log-level", "",
		"Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("backend", "",
		"Storage backend (remote, s3, memory)")

	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("storage.backend", rootCmd.PersistentFlags().Lookup("backend"))
}

// setup loads config and builds the client shared by all commands.
func setup() error {
	var err error

	cfg, err = config.NewLoader(cfgFile).Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if v := viper.GetString("log.level"); v != "" {
		cfg.Log.Level = v
	}
	if v := viper.GetString("storage.backend"); v != "" {
		cfg.Storage.Backend = v
	}

	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	logger, err = events.NewLogger(&cfg.Log)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}

	apiClient, err = client.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("create client: %w", err)
	}

	return nil
}

// Output helpers

func printSuccess(format string, args ...interface{}) {
	color.New(color.FgGreen).Fprintf(os.Stderr, "✓ "+format+"\n", args...)
}

func printError(format string, args ...interface{}) {
	color.New(color.FgRed).Fprintf(os.Stderr, "✗ "+format+"\n", args...)
}

func printInfo(format string, args ...interface{}) {
	color.New(color.FgCyan).Fprintf(os.Stderr, format+"\n", args...)
}

func printJSON(v interface{}) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		printError("marshal output: %v", err)
		return
	}
	fmt.Println(string(data))
}
