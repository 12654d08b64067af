package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/comoco/mysqldump/cmd/dumpcmd"
	"github.com/comoco/mysqldump/config"
	"github.com/comoco/mysqldump/env"
	"github.com/comoco/mysqldump/handler"
	"github.com/comoco/mysqldump/storage/s3"
)

var (
	file, s3Bucket, s3Region, s3AccessKeyId, s3SecretAccessKey, cron string
	verbose                                                          bool
)

var ErrNoJob = errors.New("no job is defined")

var RootCmd = &cobra.Command{
	Use:   "mysqldump -f /path/to/jobs.yaml",
	Short: "Dump mysql databases to different destinations with a yaml config file.",
	Args:  cobra.ExactArgs(0),
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verbose {
			slog.SetLogLoggerLevel(slog.LevelDebug)
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		dump, err := loadDump(ctx)
		if err != nil {
			return err
		}

		dumpHandler := handler.NewDumpHandler(dump).WithOutput(cmd.OutOrStdout())

		if cron == "" {
			return dumpHandler.Do(ctx)
		}

		scheduler, err := schedule(cron, func() {
			if err := dumpHandler.Do(ctx); err != nil {
				slog.Error("scheduled dump failed", slog.Any("error", err))
			}
		})

		if err != nil {
			return err
		}

		scheduler.StartBlocking()
		return nil
	},
}

func init() {
	RootCmd.Flags().StringVarP(&file, "file", "f", "", "jobs yaml file path.")
	RootCmd.MarkFlagRequired("file")

	RootCmd.Flags().StringVarP(&s3Bucket, "s3-bucket", "b", "", "read config file from a s3 bucket (optional)")
	RootCmd.Flags().StringVarP(&s3Region, "s3-region", "r", "", "the s3 region to read the config file (optional)")
	RootCmd.Flags().StringVarP(&s3AccessKeyId, "s3-key", "k", "", "s3 access key id to overwrite the default one. (optional)")
	RootCmd.Flags().StringVarP(&s3SecretAccessKey, "s3-secret", "s", "", "s3 secret access key to overwrite the default one. (optional)")
	RootCmd.Flags().StringVarP(&cron, "cron", "c", "", "run the jobs on a cron schedule instead of once, e.g. \"0 2 * * *\" (optional)")
	RootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "prints additional debug information (optional)")

	RootCmd.AddCommand(dumpcmd.DumpCmd)
}

func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// schedule runs fn on the cron expression. Overlapping runs are skipped.
func schedule(expression string, fn func()) (*gocron.Scheduler, error) {
	scheduler := gocron.NewScheduler(time.UTC)
	scheduler.SingletonModeAll()

	if _, err := scheduler.Cron(expression).Do(fn); err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", expression, err)
	}

	return scheduler, nil
}

func loadDump(ctx context.Context) (*config.Dump, error) {
	content, err := getConfigContent(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read job file from %s, error: %v", file, err)
	}

	var dump config.Dump
	if err := yaml.Unmarshal(content, &dump); err != nil {
		return nil, fmt.Errorf("failed to read job content from %s, error: %v", file, err)
	}

	if err := dump.Validate(); err != nil {
		return nil, fmt.Errorf("invalid job configuration, error: %v", err)
	}

	if len(dump.Jobs) == 0 {
		return nil, fmt.Errorf("%w in the file %s", ErrNoJob, file)
	}

	return &dump, nil
}

func getConfigContent(ctx context.Context) ([]byte, error) {
	if s3Bucket == "" {
		return os.ReadFile(file)
	}

	envs, err := env.NewResolver(env.WithAWS(env.AWSCredentials{
		AccessKeyID:     s3AccessKeyId,
		SecretAccessKey: s3SecretAccessKey,
		Region:          s3Region,
	})).Resolve()

	if err != nil {
		return nil, err
	}

	credentials := envs.AWSCredentials

	return s3.NewS3(
		s3Bucket,
		file,
		credentials.Region,
		credentials.AccessKeyID,
		credentials.SecretAccessKey,
		credentials.SessionToken).
		GetContent(ctx)
}
