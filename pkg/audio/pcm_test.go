package audio

import (
	"math"
	"testing"
)

func TestEncodePCM16(t *testing.T) {
	tests := []struct {
		name    string
		samples []float32
		want    []byte
	}{
		{
			name:    "silence",
			samples: []float32{0, 0},
			want:    []byte{0, 0, 0, 0},
		},
		{
			name:    "full scale positive",
			samples: []float32{1.0},
			want:    []byte{0xFF, 0x7F}, // 32767 LE
		},
		{
			name:    "full scale negative",
			samples: []float32{-1.0},
			want:    []byte{0x00, 0x80}, // -32768 LE
		},
		{
			name:    "clamps above range",
			samples: []float32{1.5},
			want:    []byte{0xFF, 0x7F},
		},
		{
			name:    "clamps below range",
			samples: []float32{-2.0},
			want:    []byte{0x00, 0x80},
		},
		{
			name:    "empty",
			samples: nil,
			want:    []byte{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EncodePCM16(tt.samples)
			if len(got) != len(tt.want) {
				t.Fatalf("EncodePCM16() length = %d, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("EncodePCM16()[%d] = 0x%02X, want 0x%02X", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestDecodePCM16(t *testing.T) {
	t.Run("round trip preserves values within tolerance", func(t *testing.T) {
		in := []float32{0, 0.5, -0.5, 0.25, -0.99}
		decoded, err := DecodePCM16(EncodePCM16(in))
		if err != nil {
			t.Fatalf("DecodePCM16() error = %v", err)
		}
		if len(decoded) != len(in) {
			t.Fatalf("decoded length = %d, want %d", len(decoded), len(in))
		}
		for i := range in {
			if diff := math.Abs(float64(decoded[i] - in[i])); diff > 1.0/32767 {
				t.Errorf("sample %d: got %v, want %v (diff %v)", i, decoded[i], in[i], diff)
			}
		}
	})

	t.Run("odd length is rejected", func(t *testing.T) {
		if _, err := DecodePCM16([]byte{0x01}); err == nil {
			t.Error("DecodePCM16() expected error for odd-length input")
		}
	})

	t.Run("empty input yields empty output", func(t *testing.T) {
		samples, err := DecodePCM16(nil)
		if err != nil {
			t.Fatalf("DecodePCM16() error = %v", err)
		}
		if len(samples) != 0 {
			t.Errorf("decoded length = %d, want 0", len(samples))
		}
	})
}

func TestRMS(t *testing.T) {
	tests := []struct {
		name    string
		samples []float32
		want    float64
	}{
		{name: "empty is zero not NaN", samples: nil, want: 0},
		{name: "silence", samples: []float32{0, 0, 0}, want: 0},
		{name: "constant half scale", samples: []float32{0.5, 0.5, 0.5, 0.5}, want: 0.5},
		{name: "sign does not matter", samples: []float32{-0.5, 0.5}, want: 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RMS(tt.samples)
			if math.IsNaN(got) {
				t.Fatal("RMS() returned NaN")
			}
			if math.Abs(got-tt.want) > 1e-6 {
				t.Errorf("RMS() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBase64RoundTrip(t *testing.T) {
	pcm := EncodePCM16([]float32{0.1, -0.2, 0.3})
	decoded, err := FromBase64(ToBase64(pcm))
	if err != nil {
		t.Fatalf("FromBase64() error = %v", err)
	}
	if string(decoded) != string(pcm) {
		t.Error("base64 round trip altered payload")
	}

	if _, err := FromBase64("not-base64!!!"); err == nil {
		t.Error("FromBase64() expected error for invalid input")
	}
}
