// File: cmd/analyze.go
package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/nullwave7/gatescout/api/schemas"
	"github.com/nullwave7/gatescout/internal/agent"
	"github.com/nullwave7/gatescout/internal/config"
	"github.com/nullwave7/gatescout/internal/extraction"
	"github.com/nullwave7/gatescout/internal/observability"
	"github.com/nullwave7/gatescout/internal/orchestrator"
	"github.com/nullwave7/gatescout/internal/provider"
	"github.com/nullwave7/gatescout/internal/registry"
)

// newAnalyzeCmd creates and configures the `analyze` command.
func newAnalyzeCmd(v *viper.Viper) *cobra.Command {
	analyzeCmd := &cobra.Command{
		Use:   "analyze [target-url]",
		Short: "Runs one bounded checkout analysis against a storefront URL",
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			// Bind flags to their corresponding Viper keys. This is the idiomatic
			// way to ensure that command-line flags correctly override values
			// from the config file and environment variables.
			if err := v.BindPFlag("analysis.budget", cmd.Flags().Lookup("budget")); err != nil {
				return err
			}
			return v.BindPFlag("output", cmd.Flags().Lookup("output"))
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			// Use the context passed from main (signal-aware).
			ctx := cmd.Context()
			logger := observability.GetLogger()

			// Re-unmarshal the config. Now that flags are bound in PreRunE,
			// Viper will correctly apply the overrides with the right precedence.
			cfg, err := config.NewConfigFromViper(v)
			if err != nil {
				return fmt.Errorf("failed to apply flag overrides: %w", err)
			}

			target, err := agent.NormalizeTarget(args[0])
			if err != nil {
				return fmt.Errorf("invalid target: %w", err)
			}
			outputPath := v.GetString("output")
			detailed, err := cmd.Flags().GetBool("detailed")
			if err != nil {
				return err
			}

			logger.Info("Starting checkout analysis.",
				zap.String("target_url", target),
				zap.Duration("budget", cfg.Analysis.Budget))

			// 1. Initialize core components.
			analyzer, err := initializeAnalyzer(cfg, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize analyzer: %w", err)
			}

			// 2. Run the bounded analysis, streaming progress lines as they
			// arrive.
			sink := schemas.ProgressFunc(func(message string) {
				fmt.Fprintf(cmd.OutOrStdout(), "  -> %s\n", message)
			})

			record, err := analyzer.Run(ctx, target, cfg.Analysis.Budget, sink)
			if err != nil {
				if errors.Is(err, context.Canceled) {
					logger.Warn("Analysis aborted gracefully.", zap.String("target_url", target))
					return fmt.Errorf("analysis aborted by user signal")
				}
				logger.Error("Analysis failed.", zap.Error(err), zap.String("target_url", target))
				return err
			}

			// 3. Report what was found.
			renderSummary(cmd, record, detailed)
			if outputPath != "" {
				return writeRecord(cmd, record, outputPath)
			}
			return nil
		},
	}

	analyzeCmd.Flags().DurationP("budget", "b", 0, "Time budget for the analysis. (Overrides config/env)")
	analyzeCmd.Flags().StringP("output", "o", "", "Output file path for the JSON extraction record.")
	analyzeCmd.Flags().BoolP("detailed", "d", false, "Include completed steps and issues in the summary.")

	return analyzeCmd
}

// initializeAnalyzer handles dependency injection for a one-shot analysis.
func initializeAnalyzer(cfg *config.Config, logger *zap.Logger) (*agent.Analyzer, error) {
	// 1. Remote browsing provider client.
	client, err := provider.NewClient(cfg.Provider, logger)
	if err != nil {
		return nil, err
	}

	// 2. Bounded session executor with structured extraction.
	executor, err := orchestrator.New(client, extraction.NewExtractor(logger), cfg.Analysis.TerminationGrace, logger)
	if err != nil {
		return nil, err
	}

	// 3. One-shot runs are tracked in an in-memory registry.
	return agent.NewAnalyzer(executor, registry.New(logger), cfg.Analysis, cfg.Provider, logger)
}

// renderSummary prints the human-readable result of an analysis. Unset fields
// are skipped rather than printed empty.
func renderSummary(cmd *cobra.Command, record schemas.ExtractionRecord, detailed bool) {
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "\nAnalysis complete.\n")
	if record.WebsiteName != "" {
		fmt.Fprintf(out, "  Website:           %s\n", record.WebsiteName)
	}
	if record.CheckoutURL != "" {
		fmt.Fprintf(out, "  Checkout URL:      %s\n", record.CheckoutURL)
	}
	if record.PaymentURL != "" {
		fmt.Fprintf(out, "  Payment URL:       %s\n", record.PaymentURL)
	}
	if record.PaymentGateway != "" {
		fmt.Fprintf(out, "  Payment gateway:   %s\n", record.PaymentGateway)
	}
	if len(record.PaymentProviders) > 0 {
		fmt.Fprintf(out, "  Payment providers: %s\n", strings.Join(record.PaymentProviders, ", "))
	}
	if record.LiveURL != "" {
		fmt.Fprintf(out, "  Live view:         %s\n", record.LiveURL)
	}

	if detailed {
		if record.ProductAdded != "" {
			fmt.Fprintf(out, "  Product added:     %s\n", record.ProductAdded)
		}
		if record.StepsCompleted != "" {
			fmt.Fprintf(out, "  Steps completed:   %s\n", record.StepsCompleted)
		}
		if record.IssuesEncountered != "" {
			fmt.Fprintf(out, "  Issues:            %s\n", record.IssuesEncountered)
		}
	}

	if record.CheckoutURL == "" && record.PaymentURL == "" {
		fmt.Fprintf(out, "  No checkout URL could be determined. See the raw record for what the session reported.\n")
	}
}

// writeRecord writes the extraction record to the given path as indented JSON.
func writeRecord(cmd *cobra.Command, record schemas.ExtractionRecord, outputPath string) error {
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode extraction record: %w", err)
	}

	if err := os.WriteFile(outputPath, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("failed to write record to %s: %w", outputPath, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Record written to %s\n", outputPath)
	return nil
}
