package wav

import (
	"math"
	"path/filepath"
	"testing"
)

func TestWriteReadRoundTrip(t *testing.T) {
	t.Parallel()

	const sampleRate = 16000
	samples := make([]float64, sampleRate/10)
	for i := range samples {
		samples[i] = 0.5 * math.Sin(2*math.Pi*440*float64(i)/sampleRate)
	}

	path := filepath.Join(t.TempDir(), "tone.wav")
	if err := WriteFile(path, samples, sampleRate); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	loaded, rate, err := LoadMono(path)
	if err != nil {
		t.Fatalf("LoadMono failed: %v", err)
	}
	if rate != sampleRate {
		t.Fatalf("sample rate %d, want %d", rate, sampleRate)
	}
	if len(loaded) != len(samples) {
		t.Fatalf("loaded %d samples, want %d", len(loaded), len(samples))
	}

	// 16-bit quantization: 1/32768 resolution.
	for i := range samples {
		if math.Abs(loaded[i]-samples[i]) > 1.0/32000.0 {
			t.Fatalf("sample %d: %f, want %f within quantization error", i, loaded[i], samples[i])
		}
	}
}

func TestReadInfoFields(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "info.wav")
	if err := WriteFile(path, make([]float64, 256), 48000); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	info, err := ReadInfo(path)
	if err != nil {
		t.Fatalf("ReadInfo failed: %v", err)
	}
	if info.SampleRate != 48000 {
		t.Errorf("sample rate %d, want 48000", info.SampleRate)
	}
	if info.Channels != 1 {
		t.Errorf("channels %d, want 1", info.Channels)
	}
	if info.BitsPerSec != 16 {
		t.Errorf("bit depth %d, want 16", info.BitsPerSec)
	}
	if len(info.Data) != 512 {
		t.Errorf("data length %d bytes, want 512", len(info.Data))
	}
}

func TestReadInfoMissingFile(t *testing.T) {
	t.Parallel()

	if _, err := ReadInfo(filepath.Join(t.TempDir(), "nope.wav")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestBytesToSamplesOddLength(t *testing.T) {
	t.Parallel()

	if _, err := BytesToSamples([]byte{1, 2, 3}); err == nil {
		t.Fatal("expected error for odd byte count")
	}
}

func TestDownmixMono(t *testing.T) {
	t.Parallel()

	stereo := []float64{1.0, 0.0, 0.5, 0.5, -1.0, 1.0}
	mono := DownmixMono(stereo, 2)
	want := []float64{0.5, 0.5, 0.0}
	if len(mono) != len(want) {
		t.Fatalf("downmix produced %d samples, want %d", len(mono), len(want))
	}
	for i := range want {
		if math.Abs(mono[i]-want[i]) > 1e-12 {
			t.Errorf("sample %d: %f, want %f", i, mono[i], want[i])
		}
	}

	// Already mono passes through.
	if got := DownmixMono(stereo, 1); len(got) != len(stereo) {
		t.Errorf("mono passthrough changed length: %d", len(got))
	}
}
