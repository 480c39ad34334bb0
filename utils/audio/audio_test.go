package audio

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lingokit/core"
)

func TestULawRoundTrip(t *testing.T) {
	pcm := []byte{0x00, 0x00, 0xFF, 0x7F, 0x00, 0x80, 0x34, 0x12}
	encoded, err := PCMBytesToULaw(pcm)
	require.NoError(t, err)
	assert.Len(t, encoded, len(pcm)/2)

	decoded := ULawBytesToPCM(encoded)
	assert.Len(t, decoded, len(pcm))
}

func TestPCMBytesToULawRejectsOddLength(t *testing.T) {
	_, err := PCMBytesToULaw([]byte{0x01, 0x02, 0x03})
	assert.Error(t, err)
}

func TestValidatePCMData(t *testing.T) {
	assert.NoError(t, ValidatePCMData([]byte{0, 0, 0, 0}, 1))
	assert.NoError(t, ValidatePCMData([]byte{0, 0, 0, 0}, 2))
	assert.Error(t, ValidatePCMData(nil, 1))
	assert.Error(t, ValidatePCMData([]byte{0, 0}, 2))
	assert.Error(t, ValidatePCMData([]byte{0, 0}, 0))
	assert.Error(t, ValidatePCMData([]byte{0, 0}, 3))
}

func TestGetPCMDurationSeconds(t *testing.T) {
	pcm := make([]byte, 16000) // 8000 mono samples
	duration, err := GetPCMDurationSeconds(pcm, 1, 8000)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, duration, 1e-9)

	_, err = GetPCMDurationSeconds(pcm, 1, 0)
	assert.Error(t, err)
}

func TestPCMBytesToWavBytes(t *testing.T) {
	pcm := make([]byte, 320)
	wav, err := PCMBytesToWavBytes(pcm, 1, 16000)
	require.NoError(t, err)
	require.Len(t, wav, 44+len(pcm))

	assert.Equal(t, "RIFF", string(wav[0:4]))
	assert.Equal(t, "WAVE", string(wav[8:12]))
	assert.Equal(t, "fmt ", string(wav[12:16]))
	assert.Equal(t, "data", string(wav[36:40]))

	assert.Equal(t, uint16(1), binary.LittleEndian.Uint16(wav[22:24]))      // channels
	assert.Equal(t, uint32(16000), binary.LittleEndian.Uint32(wav[24:28]))  // sample rate
	assert.Equal(t, uint32(32000), binary.LittleEndian.Uint32(wav[28:32]))  // byte rate
	assert.Equal(t, uint16(16), binary.LittleEndian.Uint16(wav[34:36]))     // bits per sample
	assert.Equal(t, uint32(len(pcm)), binary.LittleEndian.Uint32(wav[40:44]))
}

func TestChunkToWav(t *testing.T) {
	t.Run("pcm passes through", func(t *testing.T) {
		chunk := core.AudioChunk{Data: make([]byte, 64), SampleRate: 16000, Channels: 1, Format: core.PCM}
		wav, err := ChunkToWav(chunk)
		require.NoError(t, err)
		assert.Len(t, wav, 44+64)
		assert.Equal(t, uint32(16000), binary.LittleEndian.Uint32(wav[24:28]))
	})

	t.Run("ulaw decodes with telephony defaults", func(t *testing.T) {
		chunk := core.AudioChunk{Data: make([]byte, 32), Format: core.ULAW}
		wav, err := ChunkToWav(chunk)
		require.NoError(t, err)
		assert.Len(t, wav, 44+64)
		assert.Equal(t, uint32(8000), binary.LittleEndian.Uint32(wav[24:28]))
		assert.Equal(t, uint16(1), binary.LittleEndian.Uint16(wav[22:24]))
	})

	t.Run("unknown format is rejected", func(t *testing.T) {
		chunk := core.AudioChunk{Data: make([]byte, 32), Format: core.AudioEncodingFormat(99)}
		_, err := ChunkToWav(chunk)
		assert.Error(t, err)
	})
}
