package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/zaf/g711"

	"lingokit/core"
)

// ULawBytesToPCM converts μ-law encoded bytes to 16-bit PCM.
func ULawBytesToPCM(uBytes []byte) []byte {
	return g711.DecodeUlaw(uBytes)
}

// ALawBytesToPCM converts A-law encoded bytes to 16-bit PCM.
func ALawBytesToPCM(aBytes []byte) []byte {
	return g711.DecodeAlaw(aBytes)
}

// PCMBytesToULaw converts 16-bit PCM to μ-law encoded bytes.
func PCMBytesToULaw(pcm []byte) ([]byte, error) {
	if len(pcm)%2 != 0 {
		return nil, errors.New("PCM data must be 16-bit aligned")
	}
	return g711.EncodeUlaw(pcm), nil
}

// ValidatePCMData checks 16-bit PCM for basic integrity.
func ValidatePCMData(pcm []byte, numChannels int) error {
	if len(pcm) == 0 {
		return errors.New("PCM data is empty")
	}
	if numChannels <= 0 || numChannels > 2 {
		return errors.New("only mono (1) or stereo (2) channels supported")
	}
	if len(pcm)%(2*numChannels) != 0 {
		return errors.New("PCM data length doesn't match channel count")
	}
	return nil
}

// GetPCMDurationSeconds returns the duration of 16-bit PCM audio.
func GetPCMDurationSeconds(pcm []byte, numChannels, sampleRate int) (float64, error) {
	if err := ValidatePCMData(pcm, numChannels); err != nil {
		return 0, err
	}
	if sampleRate <= 0 {
		return 0, errors.New("sample rate must be positive")
	}
	samples := len(pcm) / (2 * numChannels)
	return float64(samples) / float64(sampleRate), nil
}

// PCMBytesToWavBytes wraps raw 16-bit PCM in a WAV container.
func PCMBytesToWavBytes(pcm []byte, numChannels, sampleRate int) ([]byte, error) {
	if err := ValidatePCMData(pcm, numChannels); err != nil {
		return nil, err
	}
	if sampleRate <= 0 {
		return nil, errors.New("sample rate must be positive")
	}

	const (
		bitsPerSample  = 16
		audioFormatPCM = 1
		subchunk1Size  = 16
	)

	blockAlign := numChannels * bitsPerSample / 8
	byteRate := sampleRate * blockAlign
	dataSize := len(pcm)
	fileSize := 36 + dataSize // 36 = WAV header size

	buf := &bytes.Buffer{}
	buf.Grow(44 + dataSize)

	// RIFF header
	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, uint32(fileSize))
	buf.WriteString("WAVE")

	// fmt sub-chunk
	buf.WriteString("fmt ")
	binary.Write(buf, binary.LittleEndian, uint32(subchunk1Size))
	binary.Write(buf, binary.LittleEndian, uint16(audioFormatPCM))
	binary.Write(buf, binary.LittleEndian, uint16(numChannels))
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(buf, binary.LittleEndian, uint32(byteRate))
	binary.Write(buf, binary.LittleEndian, uint16(blockAlign))
	binary.Write(buf, binary.LittleEndian, uint16(bitsPerSample))

	// data sub-chunk
	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, uint32(dataSize))
	buf.Write(pcm)

	return buf.Bytes(), nil
}

// ChunkToWav decodes a recorder chunk to 16-bit PCM if needed and wraps it
// in a WAV container ready for the transcription service.
func ChunkToWav(chunk core.AudioChunk) ([]byte, error) {
	var pcm []byte
	switch chunk.Format {
	case core.PCM:
		pcm = chunk.Data
	case core.ULAW:
		pcm = ULawBytesToPCM(chunk.Data)
	case core.ALAW:
		pcm = ALawBytesToPCM(chunk.Data)
	default:
		return nil, fmt.Errorf("unsupported audio format %d", chunk.Format)
	}
	channels := chunk.Channels
	if channels == 0 {
		channels = 1
	}
	sampleRate := chunk.SampleRate
	if sampleRate == 0 {
		sampleRate = 8000
	}
	return PCMBytesToWavBytes(pcm, channels, sampleRate)
}
