package myaudio

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeTestWAV writes a 16-bit PCM fixture and returns its path.
func writeTestWAV(t *testing.T, name string, sampleRate, channels int, data []int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	f, err := os.Create(path)
	require.NoError(t, err)

	enc := wav.NewEncoder(f, sampleRate, 16, channels, 1)
	require.NoError(t, enc.Write(&audio.IntBuffer{
		Data:           data,
		Format:         &audio.Format{SampleRate: sampleRate, NumChannels: channels},
		SourceBitDepth: 16,
	}))
	require.NoError(t, enc.Close())
	require.NoError(t, f.Close())
	return path
}

// sine generates n frames of a 16-bit sine at freq hertz.
func sine(n, sampleRate int, freq float64) []int {
	data := make([]int, n)
	for i := range data {
		data[i] = int(20000 * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate)))
	}
	return data
}

func TestReadWAVInfo(t *testing.T) {
	t.Parallel()

	path := writeTestWAV(t, "info.wav", 22000, 1, sine(2200, 22000, 440))

	info, err := ReadWAVInfo(path)
	require.NoError(t, err)
	assert.Equal(t, 22000, info.SampleRate)
	assert.Equal(t, 1, info.NumChannels)
	assert.Equal(t, 16, info.BitDepth)
}

func TestReadWAVInfoRejectsGarbage(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "garbage.wav")
	require.NoError(t, os.WriteFile(path, []byte("not a riff container"), 0o644))

	_, err := ReadWAVInfo(path)
	require.Error(t, err)
}

func TestReadWAVMono(t *testing.T) {
	t.Parallel()

	data := []int{0, 16384, -16384, 32767, -32768, 0, 8192, -8192}
	path := writeTestWAV(t, "mono.wav", 22000, 1, data)

	samples, err := ReadWAV(path, 22000)
	require.NoError(t, err)
	require.Len(t, samples, len(data))

	for i, want := range data {
		assert.InDelta(t, float32(want)/32768.0, samples[i], 1e-6, "sample %d", i)
	}
}

func TestReadWAVStereoDownmix(t *testing.T) {
	t.Parallel()

	// Interleaved L/R frames; the downmix is the per-frame channel average.
	data := []int{16384, 0, 0, -16384, 8192, 8192, -32768, 32767}
	path := writeTestWAV(t, "stereo.wav", 22000, 2, data)

	samples, err := ReadWAV(path, 22000)
	require.NoError(t, err)
	require.Len(t, samples, len(data)/2)

	for i := range samples {
		left := float32(data[2*i]) / 32768.0
		right := float32(data[2*i+1]) / 32768.0
		assert.InDelta(t, (left+right)/2, samples[i], 1e-6, "frame %d", i)
	}
}

func TestReadWAVResamples(t *testing.T) {
	t.Parallel()

	path := writeTestWAV(t, "fast.wav", 44000, 1, sine(44000, 44000, 440))

	samples, err := ReadWAV(path, 22000)
	require.NoError(t, err)

	// Halving the rate should halve the duration in samples.
	assert.InDelta(t, 22000, len(samples), 2)
	for _, s := range samples {
		assert.LessOrEqual(t, float64(s), 1.0)
		assert.GreaterOrEqual(t, float64(s), -1.0)
	}
}

func TestResampleAudioIdentity(t *testing.T) {
	t.Parallel()

	in := []float32{0.1, 0.2, 0.3}
	out, err := ResampleAudio(in, 22000, 22000)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestResampleAudioLength(t *testing.T) {
	t.Parallel()

	in := make([]float32, 1000)
	for i := range in {
		in[i] = float32(math.Sin(float64(i) / 10))
	}

	out, err := ResampleAudio(in, 44000, 22000)
	require.NoError(t, err)
	assert.Equal(t, 500, len(out))

	out, err = ResampleAudio(in, 22000, 44000)
	require.NoError(t, err)
	assert.Equal(t, 2000, len(out))
}

func TestResampleAudioErrors(t *testing.T) {
	t.Parallel()

	_, err := ResampleAudio([]float32{1, 2, 3}, 44000, 22000)
	require.Error(t, err)

	_, err = ResampleAudio(make([]float32, 100), 0, 22000)
	require.Error(t, err)
}

func TestAudioDivisor(t *testing.T) {
	t.Parallel()

	for depth, want := range map[int]float32{16: 32768, 24: 8388608, 32: 2147483648} {
		got, err := audioDivisor(depth)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := audioDivisor(8)
	require.Error(t, err)
}
