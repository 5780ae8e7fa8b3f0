// Package audio provides PCM16 codec helpers and the capture/playback
// primitives used by both the server and the terminal client.
//
// All wire audio is 16-bit little-endian mono PCM: 16 kHz toward the model,
// 24 kHz back from it.
package audio

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"math"
)

const (
	// InputSampleRate is the capture rate expected by the model.
	InputSampleRate = 16000
	// OutputSampleRate is the rate of audio produced by the model.
	OutputSampleRate = 24000
)

// EncodePCM16 converts float32 samples in [-1, 1] to little-endian PCM16
// bytes. Samples outside the range are clamped.
func EncodePCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		var v int16
		if s < 0 {
			v = int16(s * 32768)
		} else {
			v = int16(s * 32767)
		}
		binary.LittleEndian.PutUint16(out[i*2:], uint16(v))
	}
	return out
}

// DecodePCM16 converts little-endian PCM16 bytes back to float32 samples.
// The input length must be even.
func DecodePCM16(data []byte) ([]float32, error) {
	if len(data)%2 != 0 {
		return nil, fmt.Errorf("pcm16 payload has odd length %d", len(data))
	}
	samples := make([]float32, len(data)/2)
	for i := range samples {
		v := int16(binary.LittleEndian.Uint16(data[i*2:]))
		samples[i] = float32(v) / 32768.0
	}
	return samples, nil
}

// RMS returns the root-mean-square level of the samples. Empty input
// yields 0, never NaN.
func RMS(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// ToBase64 encodes raw PCM bytes for embedding in JSON media chunks.
func ToBase64(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// FromBase64 decodes a JSON media chunk back to raw PCM bytes.
func FromBase64(s string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid base64 audio chunk: %w", err)
	}
	return data, nil
}
