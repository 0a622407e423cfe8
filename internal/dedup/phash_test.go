package dedup

import (
	"bytes"
	"image"
	"image/color"
	"testing"

	"github.com/disintegration/imaging"

	"github.com/roadwatch/roadwatch/internal/testhelpers"
)

func decodeJPEG(t *testing.T, data []byte) image.Image {
	t.Helper()
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	return img
}

func TestCompute_Deterministic(t *testing.T) {
	img := decodeJPEG(t, testhelpers.MakeGradientJPEG(t, 320, 240, 7))

	h1, err := Compute(img)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	h2, err := Compute(img)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if h1 != h2 {
		t.Errorf("hash not deterministic: %016x vs %016x", h1, h2)
	}
}

func TestCompute_ResizedImageStaysClose(t *testing.T) {
	original := decodeJPEG(t, testhelpers.MakeGradientJPEG(t, 320, 240, 7))
	resized := imaging.Resize(original, 160, 120, imaging.Lanczos)

	h1, err := Compute(original)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	h2, err := Compute(resized)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}

	if d := Distance(h1, h2); d > 8 {
		t.Errorf("resized copy drifted too far: distance %d", d)
	}
}

func TestCompute_DifferentImagesDiffer(t *testing.T) {
	a := decodeJPEG(t, testhelpers.MakeGradientJPEG(t, 320, 240, 3))
	b := decodeJPEG(t, testhelpers.MakeJPEG(t, 320, 240, color.RGBA{R: 255, A: 255}))

	ha, err := Compute(a)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	hb, err := Compute(b)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}

	if d := Distance(ha, hb); d <= 8 {
		t.Errorf("unrelated images too close: distance %d", d)
	}
}

func TestDistance(t *testing.T) {
	tests := []struct {
		name     string
		a, b     uint64
		expected int
	}{
		{"identical", 0xdeadbeef, 0xdeadbeef, 0},
		{"one bit", 0x0, 0x1, 1},
		{"all bits", 0x0, ^uint64(0), 64},
		{"mixed", 0xff00, 0x00ff, 16},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Distance(tt.a, tt.b); got != tt.expected {
				t.Errorf("Distance(%x, %x) = %d, want %d", tt.a, tt.b, got, tt.expected)
			}
		})
	}
}

func TestHashHexRoundTrip(t *testing.T) {
	for _, h := range []uint64{0, 1, 0xdeadbeefcafebabe, ^uint64(0)} {
		s := HashHex(h)
		if len(s) != 16 {
			t.Errorf("HashHex(%x) = %q, want 16 chars", h, s)
		}
		parsed, err := ParseHashHex(s)
		if err != nil {
			t.Fatalf("parse %q: %v", s, err)
		}
		if parsed != h {
			t.Errorf("round trip %x -> %q -> %x", h, s, parsed)
		}
	}
}

func TestParseHashHex_Invalid(t *testing.T) {
	if _, err := ParseHashHex("not-hex"); err == nil {
		t.Error("expected error for invalid hash")
	}
}
