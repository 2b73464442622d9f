package conf

import "github.com/spf13/viper"

// setDefaultConfig registers the default value of every configuration key.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("input.dir", ".")
	viper.SetDefault("input.codes", []string{})
	viper.SetDefault("input.codesfile", "")

	viper.SetDefault("output.path", "preprocessed.hdf5")
	viper.SetDefault("output.compression", "none")

	viper.SetDefault("audio.samplerate", 22000)

	viper.SetDefault("spectrogram.framesize", 440)
	viper.SetDefault("spectrogram.hopsize", 440)
	viper.SetDefault("spectrogram.fftlength", 512)
	viper.SetDefault("spectrogram.sliceframes", 250)

	viper.SetDefault("dataset.datatype", "float32")
	viper.SetDefault("dataset.labeltype", "int64")

	viper.SetDefault("augmentation.policies", []string{})
}
