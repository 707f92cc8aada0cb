package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"prism/internal/catalog"
	"prism/internal/config"
	"prism/internal/ffmpeg"
	"prism/internal/logging"
	"prism/internal/pipeline"
	"prism/internal/realtime"
	"prism/internal/retriever"
	"prism/internal/storage"
)

func newRunCommand(configFlag *string) *cobra.Command {
	return &cobra.Command{
		Use:   "run [job.json]",
		Short: "Process one transcoding job",
		Long: "Process one transcoding job described as JSON, read from the given\n" +
			"file or from stdin when no file is given.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadOrDefault(*configFlag)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			if err := cfg.EnsureDirectories(); err != nil {
				return err
			}

			job, err := readJob(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}

			logger, err := logging.New(logging.Options{
				Level:  cfg.Logging.Level,
				Format: cfg.Logging.Format,
			})
			if err != nil {
				return err
			}

			// One worker per host; concurrent runs would contend for the
			// workspace and the catalog.
			lock := flock.New(filepath.Join(cfg.Paths.LogDir, "prismd.lock"))
			locked, err := lock.TryLock()
			if err != nil {
				return fmt.Errorf("acquire lock: %w", err)
			}
			if !locked {
				return errors.New("another prismd instance is already running")
			}
			defer func() { _ = lock.Unlock() }()

			store, err := catalog.Open(cfg.Paths.CatalogPath)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			controller := pipeline.New(
				cfg,
				store,
				retriever.New(storage.NewLocal(cfg.Paths.FilesRoot), cfg, logger),
				ffmpeg.NewCLI(
					ffmpeg.WithBinary(cfg.Encoder.FFmpegBinary),
					ffmpeg.WithThreads(cfg.Encoder.Threads),
				),
				realtime.NewPublisher(cfg.Realtime.Endpoint, time.Duration(cfg.Realtime.RequestTimeout)*time.Second),
				storage.NewLocal(cfg.Paths.VideosRoot),
				nil,
				logger,
			)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return controller.Process(ctx, job)
		},
	}
}

func readJob(stdin io.Reader, args []string) (pipeline.Job, error) {
	var job pipeline.Job
	source := stdin
	if len(args) == 1 {
		file, err := os.Open(args[0])
		if err != nil {
			return job, fmt.Errorf("open job file: %w", err)
		}
		defer file.Close()
		source = file
	}
	if err := json.NewDecoder(source).Decode(&job); err != nil {
		return job, fmt.Errorf("decode job: %w", err)
	}
	if job.VideoID == "" {
		return job, errors.New("job is missing videoId")
	}
	return job, nil
}
