package wav

// Minimal PCM WAV support for the offline pipeline. Only canonical 16-bit
// little-endian PCM files are handled; the live path never touches files and
// feeds raw int16 frames through BytesToSamples instead.

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
)

// Info describes a decoded WAV file alongside its raw PCM payload.
type Info struct {
	SampleRate int
	Channels   int
	BitsPerSec int
	Data       []byte
}

var ErrNotPCM = errors.New("wav: only 16-bit PCM is supported")

// ReadInfo parses the RIFF header and returns the PCM payload of a WAV file.
func ReadInfo(path string) (*Info, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read wav file: %w", err)
	}
	if len(raw) < 44 || string(raw[0:4]) != "RIFF" || string(raw[8:12]) != "WAVE" {
		return nil, fmt.Errorf("invalid wav header in %s", path)
	}

	info := &Info{}
	pos := 12
	for pos+8 <= len(raw) {
		chunkID := string(raw[pos : pos+4])
		chunkSize := int(binary.LittleEndian.Uint32(raw[pos+4 : pos+8]))
		body := pos + 8
		if body+chunkSize > len(raw) {
			chunkSize = len(raw) - body
		}
		switch chunkID {
		case "fmt ":
			if chunkSize < 16 {
				return nil, fmt.Errorf("truncated fmt chunk in %s", path)
			}
			format := binary.LittleEndian.Uint16(raw[body : body+2])
			if format != 1 {
				return nil, ErrNotPCM
			}
			info.Channels = int(binary.LittleEndian.Uint16(raw[body+2 : body+4]))
			info.SampleRate = int(binary.LittleEndian.Uint32(raw[body+4 : body+8]))
			info.BitsPerSec = int(binary.LittleEndian.Uint16(raw[body+14 : body+16]))
		case "data":
			info.Data = raw[body : body+chunkSize]
		}
		pos = body + chunkSize
		if chunkSize%2 == 1 {
			pos++ // chunks are word aligned
		}
	}

	if info.SampleRate == 0 || info.Channels == 0 {
		return nil, fmt.Errorf("missing fmt chunk in %s", path)
	}
	if info.BitsPerSec != 16 {
		return nil, ErrNotPCM
	}
	if len(info.Data) == 0 {
		return nil, fmt.Errorf("missing data chunk in %s", path)
	}
	return info, nil
}

// BytesToSamples converts interleaved 16-bit PCM bytes into float64 samples
// in [-1, 1]. Multi-channel input stays interleaved; use DownmixMono after.
func BytesToSamples(data []byte) ([]float64, error) {
	if len(data)%2 != 0 {
		return nil, errors.New("wav: odd byte count for 16-bit samples")
	}
	samples := make([]float64, len(data)/2)
	for i := range samples {
		v := int16(binary.LittleEndian.Uint16(data[i*2 : i*2+2]))
		samples[i] = float64(v) / 32768.0
	}
	return samples, nil
}

// DownmixMono averages interleaved channels into a single mono signal.
func DownmixMono(samples []float64, channels int) []float64 {
	if channels <= 1 {
		return samples
	}
	mono := make([]float64, len(samples)/channels)
	for i := range mono {
		var sum float64
		for c := 0; c < channels; c++ {
			sum += samples[i*channels+c]
		}
		mono[i] = sum / float64(channels)
	}
	return mono
}

// LoadMono reads a WAV file and returns mono float64 samples plus the rate.
func LoadMono(path string) ([]float64, int, error) {
	info, err := ReadInfo(path)
	if err != nil {
		return nil, 0, err
	}
	samples, err := BytesToSamples(info.Data)
	if err != nil {
		return nil, 0, err
	}
	return DownmixMono(samples, info.Channels), info.SampleRate, nil
}

// WriteFile encodes mono float64 samples as a 16-bit PCM WAV file.
func WriteFile(path string, samples []float64, sampleRate int) error {
	data := make([]byte, len(samples)*2)
	for i, s := range samples {
		v := int16(math.Max(-1, math.Min(1, s)) * 32767)
		binary.LittleEndian.PutUint16(data[i*2:i*2+2], uint16(v))
	}

	header := make([]byte, 44)
	copy(header[0:4], "RIFF")
	binary.LittleEndian.PutUint32(header[4:8], uint32(36+len(data)))
	copy(header[8:12], "WAVE")
	copy(header[12:16], "fmt ")
	binary.LittleEndian.PutUint32(header[16:20], 16)
	binary.LittleEndian.PutUint16(header[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(header[22:24], 1) // mono
	binary.LittleEndian.PutUint32(header[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(header[28:32], uint32(sampleRate*2))
	binary.LittleEndian.PutUint16(header[32:34], 2)
	binary.LittleEndian.PutUint16(header[34:36], 16)
	copy(header[36:40], "data")
	binary.LittleEndian.PutUint32(header[40:44], uint32(len(data)))

	out := append(header, data...)
	if err := os.WriteFile(path, out, 0644); err != nil {
		return fmt.Errorf("failed to write wav file: %w", err)
	}
	return nil
}
