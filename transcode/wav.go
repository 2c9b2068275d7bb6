package transcode

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const wavFormatPCM = 1

// IsWAV reports whether header starts with a RIFF/WAVE signature
func IsWAV(header []byte) bool {
	return len(header) >= 12 &&
		bytes.Equal(header[0:4], []byte("RIFF")) &&
		bytes.Equal(header[8:12], []byte("WAVE"))
}

// tryNativeWAV decodes integer PCM WAV files with go-audio. It returns nil
// without error when ffmpeg should handle the file instead, including WAVs
// whose rate differs from the configured target.
func (d *Decoder) tryNativeWAV(filename string) (*AudioData, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("could not open file: %w", err)
	}
	defer file.Close()

	header := make([]byte, 12)
	if _, err := io.ReadFull(file, header); err != nil || !IsWAV(header) {
		return nil, nil
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("could not rewind file: %w", err)
	}

	decoder := wav.NewDecoder(file)
	if !decoder.IsValidFile() {
		return nil, nil
	}
	if decoder.WavAudioFormat != wavFormatPCM {
		return nil, nil
	}
	switch decoder.BitDepth {
	case 8, 16, 24, 32:
	default:
		return nil, nil
	}
	if target := d.config.TargetSampleRate; target > 0 && target != int(decoder.SampleRate) {
		return nil, nil
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("could not read PCM buffer: %w", err)
	}

	pcm := downmix(buf, int(decoder.BitDepth))
	if len(pcm) == 0 {
		return nil, ErrNoAudio
	}
	if d.config.MaxDuration > 0 {
		limit := int(d.config.MaxDuration.Seconds() * float64(buf.Format.SampleRate))
		if limit < len(pcm) {
			pcm = pcm[:limit]
		}
	}

	return &AudioData{
		PCM:        pcm,
		SampleRate: buf.Format.SampleRate,
		Channels:   buf.Format.NumChannels,
		Duration:   sampleDuration(len(pcm), buf.Format.SampleRate),
		Codec:      "pcm",
	}, nil
}

// downmix averages interleaved channels into mono samples scaled to [-1, 1]
// by bit depth. 8-bit WAV data is unsigned and centred on 128.
func downmix(buf *audio.IntBuffer, bitDepth int) []float64 {
	channels := max(buf.Format.NumChannels, 1)
	frames := len(buf.Data) / channels

	offset := 0.0
	scale := float64(int64(1) << (bitDepth - 1))
	if bitDepth == 8 {
		offset = 128
		scale = 128
	}

	pcm := make([]float64, frames)
	for i := range frames {
		sum := 0.0
		for c := range channels {
			sum += (float64(buf.Data[i*channels+c]) - offset) / scale
		}
		pcm[i] = sum / float64(channels)
	}
	return pcm
}
