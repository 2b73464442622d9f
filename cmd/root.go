package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/chirpset/chirpset/cmd/inspect"
	"github.com/chirpset/chirpset/cmd/preprocess"
	"github.com/chirpset/chirpset/internal/conf"
)

// RootCommand creates and returns the root command.
func RootCommand(settings *conf.Settings) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "chirpset",
		Short: "Chirpset dataset preprocessing CLI",
	}

	if err := setupFlags(rootCmd, settings); err != nil {
		cobra.CheckErr(err)
	}

	rootCmd.AddCommand(
		preprocess.Command(settings),
		inspect.Command(),
	)

	return rootCmd
}

// setupFlags defines flags that are global to the command line interface.
func setupFlags(rootCmd *cobra.Command, settings *conf.Settings) error {
	rootCmd.PersistentFlags().BoolVarP(&settings.Debug, "debug", "d", viper.GetBool("debug"), "Enable debug output")
	rootCmd.PersistentFlags().StringVarP(&settings.Input.Dir, "input", "i", viper.GetString("input.dir"), "Corpus root holding the train_audio directory")
	rootCmd.PersistentFlags().StringVarP(&settings.Output.Path, "output", "o", viper.GetString("output.path"), "Dataset container path, .hdf5 or .h5")
	rootCmd.PersistentFlags().StringVar(&settings.Output.Compression, "compression", viper.GetString("output.compression"), "Dataset compression, none or gzip")
	rootCmd.PersistentFlags().IntVar(&settings.Audio.SampleRate, "samplerate", viper.GetInt("audio.samplerate"), "Sample rate every clip is resampled to")

	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}
	return nil
}
