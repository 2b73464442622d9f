// Package preprocess implements the command that builds a dataset container
// from a training corpus.
package preprocess

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/chirpset/chirpset/internal/birdcodes"
	"github.com/chirpset/chirpset/internal/conf"
	"github.com/chirpset/chirpset/internal/dataset"
	"github.com/chirpset/chirpset/internal/hdf5"
	"github.com/chirpset/chirpset/internal/logging"
	"github.com/chirpset/chirpset/internal/preprocess"
)

// Command creates the preprocess subcommand.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "preprocess",
		Short: "Build a spectrogram dataset from train_audio clips",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), settings)
		},
	}

	cmd.Flags().StringSliceVarP(&settings.Input.Codes, "birdcodes", "b", viper.GetStringSlice("input.codes"), "Species codes to process; empty means all")
	cmd.Flags().StringVar(&settings.Input.CodesFile, "codesfile", viper.GetString("input.codesfile"), "File overriding the embedded species list")

	return cmd
}

func run(parent context.Context, settings *conf.Settings) error {
	codes := birdcodes.Default()
	if settings.Input.CodesFile != "" {
		loaded, err := birdcodes.FromFile(settings.Input.CodesFile)
		if err != nil {
			return err
		}
		codes = loaded
	}

	compression := hdf5.CompressionNone
	if settings.Output.Compression == "gzip" {
		compression = hdf5.CompressionGzip
	}

	store, err := dataset.New(dataset.Config{
		Path:        settings.Output.Path,
		DataType:    preprocess.DataDType(settings),
		LabelType:   preprocess.LabelDType(settings),
		Compression: compression,
	})
	if err != nil {
		return err
	}
	if err := store.Open(); err != nil {
		return err
	}
	defer store.Close()

	pipeline, err := preprocess.New(settings, codes, store)
	if err != nil {
		return err
	}

	// Per-run file log alongside the console output.
	fileLog, closeLog, err := logging.NewFileLogger(filepath.Join("logs", "preprocess.log"), "preprocess", slog.LevelInfo)
	if err != nil {
		return err
	}
	defer closeLog()
	fileLog.Info("starting preprocessing run",
		"input", settings.Input.Dir,
		"output", settings.Output.Path,
		"compression", settings.Output.Compression)

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := pipeline.Run(ctx)
	if err != nil {
		return err
	}
	fileLog.Info("preprocessing run finished",
		"species", result.Species,
		"files", result.Files,
		"skipped", result.Skipped,
		"samples", result.Samples)
	if err := store.Close(); err != nil {
		return err
	}

	fmt.Printf("Wrote %s: %d slices from %d files (%d species, %d skipped)\n",
		settings.Output.Path, result.Samples, result.Files, result.Species, result.Skipped)
	return nil
}
