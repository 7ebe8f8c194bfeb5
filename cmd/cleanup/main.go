package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"httpupload/internal/config"
	"httpupload/internal/database"
	"httpupload/internal/domain/slot"
	"httpupload/internal/pkg/logger"
	"httpupload/internal/storage/blob"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "cleanup:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var noSlots, noFiles bool

	cmd := &cobra.Command{
		Use:   "cleanup [timeout-days]",
		Short: "Remove expired upload reservations and aged-out files",
		Long: `Remove reservations whose upload window has passed and uploads older
than the share timeout. An explicit timeout in days overrides
UPLOAD_SHARE_TIMEOUT for this run.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := slot.CleanupOptions{
				ReclaimReserved: !noSlots,
				ExpireStored:    !noFiles,
			}
			if len(args) == 1 {
				retention, err := parseDays(args[0])
				if err != nil {
					return err
				}
				opts.Retention = retention
			}
			return run(cmd, opts)
		},
	}

	cmd.Flags().BoolVar(&noSlots, "no-slots", false, "keep expired reservations")
	cmd.Flags().BoolVar(&noFiles, "no-files", false, "keep aged-out uploads")
	return cmd
}

func parseDays(arg string) (time.Duration, error) {
	days, err := strconv.Atoi(arg)
	if err != nil || days <= 0 {
		return 0, fmt.Errorf("timeout-days must be a positive integer, got %q", arg)
	}
	return time.Duration(days) * 24 * time.Hour, nil
}

func run(cmd *cobra.Command, opts slot.CleanupOptions) error {
	cfg, err := config.Load()
	if err != nil {
		log.Error().Err(err).Msg("load config")
		return err
	}
	if err := logger.Setup(cfg.LogLevel, cfg.LogFormat); err != nil {
		return err
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Error().Err(err).Msg("db connect failed")
		return err
	}
	if err := database.Migrate(db, &slot.Slot{}); err != nil {
		log.Error().Err(err).Msg("db migrate failed")
		return err
	}

	store, err := blob.New(afero.NewOsFs(), cfg.UploadRoot, cfg.MaxPathLength)
	if err != nil {
		log.Error().Err(err).Msg("open upload root")
		return err
	}

	cleaner := slot.NewCleanupService(slot.NewRepository(db), store, cfg.SlotSettings())
	res, err := cleaner.Run(cmd.Context(), opts)
	if err != nil {
		log.Error().Err(err).Msg("cleanup finished with errors")
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "cleanup completed: reclaimed=%d expired=%d failed=%d\n",
		res.Reclaimed, res.Expired, res.Failed)
	return nil
}
