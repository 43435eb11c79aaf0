package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/KotFed0t/fund_calc_pipeline/config"
	"github.com/KotFed0t/fund_calc_pipeline/data/filestore"
	"github.com/KotFed0t/fund_calc_pipeline/internal/externalApi/cloudStorageApi/s3Api"
	"github.com/KotFed0t/fund_calc_pipeline/internal/externalApi/factsetApi"
	"github.com/KotFed0t/fund_calc_pipeline/internal/notifier/emailNotifier"
	"github.com/KotFed0t/fund_calc_pipeline/internal/reportGenerator/xlsxGenerator"
	"github.com/KotFed0t/fund_calc_pipeline/internal/service/fundCalcService"
	"github.com/KotFed0t/fund_calc_pipeline/utils"
	"github.com/spf13/cobra"
)

const dateLayout = "20060102"

func main() {
	var (
		date string
		fund string
	)

	rootCmd := &cobra.Command{
		Use:   "fund_calc_pipeline",
		Short: "Daily investment fund weight calculation",
		Long:  "Calculates daily component weights for configured funds from market-cap data, validates them against UCITS rules and persists versioned artifacts.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := time.Parse(dateLayout, date); err != nil {
				return err
			}
			cmd.SilenceUsage = true

			os.Exit(run(date, fund))
			return nil
		},
	}

	rootCmd.Flags().StringVar(&date, "date", time.Now().Format(dateLayout), "calculation date in YYYYMMDD format")
	rootCmd.Flags().StringVar(&fund, "fund", "", "restrict the run to a single fund")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(fundCalcService.ExitFailure)
	}
}

func run(date, fund string) int {
	cfg := config.MustLoad()

	setupLogger(cfg)

	slog.Debug("config", slog.Any("cfg", cfg))

	ctx := utils.CreateCtxWithRqID(context.Background())

	factsetApiClient := factsetApi.New(cfg)

	store := filestore.New(cfg.Paths.OutputDir)

	cloudStorage := s3Api.New(ctx, cfg)

	reportGenerator := xlsxGenerator.New()

	notifier := emailNotifier.New(cfg)

	fundCalcSrv := fundCalcService.New(cfg, factsetApiClient, store, cloudStorage, reportGenerator, notifier)

	return fundCalcSrv.Run(ctx, date, fund)
}

func setupLogger(cfg *config.Config) {
	var logLevel slog.Level

	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warning":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(log)
}
