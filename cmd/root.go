// File: cmd/root.go
package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/nullwave7/gatescout/internal/config"
	"github.com/nullwave7/gatescout/internal/observability"
)

// NewRootCommand builds the root command with all subcommands attached. A
// fresh instance with its own viper state is returned on every call so flag
// bindings never leak between executions; the interactive shell relies on
// this.
func NewRootCommand() *cobra.Command {
	v := viper.New()
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:   "gatescout",
		Short: "Gatescout locates checkout flows and payment providers on storefront sites.",
		// Version is dynamically set at build time. See cmd/version.go.
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// This runs before any subcommand, setting up config and logging.
			cfg, err := loadConfig(v, cfgFile)
			if err != nil {
				// Initialize a fallback logger so the failure itself gets logged.
				observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "gatescout"})
				return err
			}

			observability.InitializeLogger(cfg.Logger)
			observability.GetLogger().Info("Starting gatescout.", zap.String("version", Version))
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (default is ./config.yaml, then ~/.gatescout/config.yaml)")
	rootCmd.SetVersionTemplate(`{{printf "gatescout version %s\n" .Version}}`)

	rootCmd.AddCommand(newAnalyzeCmd(v))
	rootCmd.AddCommand(newServeCmd(v))

	return rootCmd
}

// Execute runs the root command under the given context and logs failures.
// The caller decides the exit code from the returned error.
func Execute(ctx context.Context) error {
	rootCmd := NewRootCommand()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if logger := observability.GetLogger(); logger != nil {
			logger.Error("Command execution failed.", zap.Error(err))
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		return err
	}
	return nil
}

// loadConfig reads the config file and environment variables into a validated
// Config. Missing config files are fine; defaults and environment variables
// cover every key.
func loadConfig(v *viper.Viper, cfgFile string) (*config.Config, error) {
	config.SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		if home, err := homedir.Dir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".gatescout"))
		}
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("GATESCOUT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; proceed with defaults/env vars.
	}

	return config.NewConfigFromViper(v)
}
