package audio

import (
	"encoding/base64"
	"encoding/binary"
	"math"
)

const (
	// SampleRate is the capture and transport rate in Hz
	SampleRate = 16000

	// Channels is the number of interleaved channels (mono)
	Channels = 1

	// MIMEType is the media descriptor for raw little-endian 16-bit PCM at 16 kHz mono
	MIMEType = "audio/pcm;rate=16000"
)

// Frame is one encoded audio block ready for the transport
type Frame struct {
	MIMEType string // Fixed media descriptor
	Data     string // Base64 of little-endian int16 PCM
	Samples  int    // Number of samples encoded
}

// Empty reports whether the frame carries no audio and must not be sent
func (f Frame) Empty() bool {
	return f.Samples == 0
}

// Encode converts float samples in [-1, 1] into a transport frame
func Encode(samples []float32) Frame {
	if len(samples) == 0 {
		return Frame{MIMEType: MIMEType}
	}

	return Frame{
		MIMEType: MIMEType,
		Data:     base64.StdEncoding.EncodeToString(PCM16(samples)),
		Samples:  len(samples),
	}
}

// PCM16 packs float samples as little-endian signed 16-bit PCM
func PCM16(samples []float32) []byte {
	buf := make([]byte, 2*len(samples))
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[2*i:], uint16(ToInt16(s)))
	}
	return buf
}

// ToInt16 scales one sample with asymmetric full-scale:
// negatives by 32768, non-negatives by 32767, after clamping to [-1, 1].
func ToInt16(s float32) int16 {
	if math.IsNaN(float64(s)) {
		return 0
	}
	if s > 1 {
		s = 1
	} else if s < -1 {
		s = -1
	}
	if s < 0 {
		return int16(s * 32768)
	}
	return int16(s * 32767)
}
