package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/yungbote/patternlens-backend/internal/app"
	"github.com/yungbote/patternlens-backend/internal/modules/attributes"
	"github.com/yungbote/patternlens-backend/internal/platform/ctxutil"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "backfill_attributes",
	Short: "Extract structured attributes for stored reports",
	Long: `Runs attribute extraction over stored reports with bounded parallelism.

Flags may also be set through PATTERNS_* environment variables or a YAML config
file (--config). Each report gets its own status; a failing report never aborts
the batch.`,
	SilenceErrors: true,
	SilenceUsage:  true,
	RunE:          runBackfill,
}

var seedCmd = &cobra.Command{
	Use:   "seed <schema.yaml>",
	Short: "Load categories and attribute definitions from a YAML schema file",
	Args:  cobra.ExactArgs(1),
	RunE:  runSeed,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (yaml)")

	flags := rootCmd.Flags()
	flags.StringSlice("report", nil, "report id to backfill (repeatable or comma separated)")
	flags.String("category", "", "only backfill reports of this category")
	flags.Int("limit", 0, "maximum reports to process (0 uses the server default)")
	flags.Bool("force", false, "re-extract reports that already have attributes")
	flags.Bool("dry-run", false, "print the request without running it")
	for _, name := range []string{"report", "category", "limit", "force", "dry-run"} {
		_ = viper.BindPFlag(name, flags.Lookup(name))
	}

	rootCmd.AddCommand(seedCmd)
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		if err := viper.ReadInConfig(); err != nil {
			fmt.Fprintf(os.Stderr, "read config %s: %v\n", cfgFile, err)
		}
	}
	viper.SetEnvPrefix("PATTERNS")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func requestFromConfig() (attributes.BackfillRequest, error) {
	req := attributes.BackfillRequest{
		Category: strings.TrimSpace(viper.GetString("category")),
		Limit:    viper.GetInt("limit"),
		Force:    viper.GetBool("force"),
	}
	for _, raw := range viper.GetStringSlice("report") {
		for _, part := range strings.Split(raw, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := uuid.Parse(part)
			if err != nil || id == uuid.Nil {
				return req, fmt.Errorf("invalid report id %q", part)
			}
			req.ReportIDs = append(req.ReportIDs, id)
		}
	}
	return req, nil
}

func runBackfill(cmd *cobra.Command, _ []string) error {
	req, err := requestFromConfig()
	if err != nil {
		return err
	}
	if viper.GetBool("dry-run") {
		return printJSON(req)
	}

	application, err := app.New()
	if err != nil {
		return fmt.Errorf("init app: %w", err)
	}
	defer application.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = ctxutil.WithCallerData(ctx, &ctxutil.CallerData{Subject: "cli:backfill_attributes", Admin: true})

	res, err := application.Services.Backfill.Run(ctx, req)
	if err != nil {
		return fmt.Errorf("backfill: %w", err)
	}
	application.Log.Info("Backfill finished",
		"processed", res.Processed, "succeeded", res.Succeeded, "skipped", res.Skipped, "failed", res.Failed)
	return printJSON(res)
}

func runSeed(cmd *cobra.Command, args []string) error {
	application, err := app.New()
	if err != nil {
		return fmt.Errorf("init app: %w", err)
	}
	defer application.Close()

	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()
	res, err := application.Services.Registry.SeedFromYAML(cmd.Context(), f)
	if err != nil {
		return err
	}
	return printJSON(res)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
