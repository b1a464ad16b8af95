package camstream

import (
	"bytes"
	"image"
	"image/jpeg"
	"math"
	"strings"
	"testing"
)

func TestDefaultCodec_Supports(t *testing.T) {
	tests := []struct {
		format FourCC
		want   bool
	}{
		{FormatYUYV, true},
		{FormatMJPG, true},
		{FormatGREY, true},
		{FormatRGB3, true},
		{FourCC{'A', 'B', 'C', 'D'}, false},
	}
	for _, tt := range tests {
		if got := DefaultCodec.Supports(tt.format); got != tt.want {
			t.Errorf("Supports(%q) = %v, want %v", tt.format, got, tt.want)
		}
	}
}

func TestDecodeGREY(t *testing.T) {
	raw := RawFrame{
		Width:  3,
		Height: 2,
		Format: FormatGREY,
		Data:   []byte{0, 51, 102, 153, 204, 255},
	}
	img, err := DefaultCodec.Decode(raw)
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	if img.W != 3 || img.H != 2 {
		t.Fatalf("image is %dx%d, want 3x2", img.W, img.H)
	}
	for i, b := range raw.Data {
		want := float32(b) / 255
		if img.Pix[i] != want {
			t.Errorf("Pix[%d] = %v, want %v", i, img.Pix[i], want)
		}
	}
}

// YUYV packs two pixels into four bytes: Y0 U Y1 V. Only the luma bytes
// at even offsets may reach the image.
func TestDecodeYUYV(t *testing.T) {
	raw := RawFrame{
		Width:  2,
		Height: 2,
		Format: FormatYUYV,
		Data:   []byte{10, 200, 20, 30, 30, 200, 40, 30},
	}
	img, err := DefaultCodec.Decode(raw)
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	want := []byte{10, 20, 30, 40}
	for i, b := range want {
		if img.Pix[i] != float32(b)/255 {
			t.Errorf("Pix[%d] = %v, want %v", i, img.Pix[i], float32(b)/255)
		}
	}
}

func TestDecodeRGB3(t *testing.T) {
	raw := RawFrame{
		Width:  2,
		Height: 2,
		Format: FormatRGB3,
		Data: []byte{
			255, 0, 0, // pure red
			0, 255, 0, // pure green
			0, 0, 255, // pure blue
			255, 255, 255, // white
		},
	}
	img, err := DefaultCodec.Decode(raw)
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	want := []float64{0.299, 0.587, 0.114, 1.0}
	for i, w := range want {
		if math.Abs(float64(img.Pix[i])-w) > 1e-6 {
			t.Errorf("Pix[%d] = %v, want %v", i, img.Pix[i], w)
		}
	}
}

func TestDecodeMJPG(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 16, 8))
	for i := range src.Pix {
		src.Pix[i] = 180
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, src, &jpeg.Options{Quality: 95}); err != nil {
		t.Fatal(err)
	}

	raw := RawFrame{
		Width:  16,
		Height: 8,
		Format: FormatMJPG,
		Data:   buf.Bytes(),
	}
	img, err := DefaultCodec.Decode(raw)
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	if img.W != 16 || img.H != 8 {
		t.Fatalf("image is %dx%d, want 16x8", img.W, img.H)
	}
	want := 180.0 / 255
	for i, p := range img.Pix {
		if math.Abs(float64(p)-want) > 0.02 {
			t.Fatalf("Pix[%d] = %v, want about %v", i, p, want)
		}
	}
}

func TestDecodeMJPG_Garbage(t *testing.T) {
	raw := RawFrame{
		Width:  4,
		Height: 4,
		Format: FormatMJPG,
		Data:   []byte{0xde, 0xad, 0xbe, 0xef},
	}
	if _, err := DefaultCodec.Decode(raw); err == nil {
		t.Fatal("Decode() accepted garbage JPEG data")
	}
}

func TestDecode_TruncatedFrames(t *testing.T) {
	tests := []struct {
		name   string
		format FourCC
		data   []byte
	}{
		{"yuyv", FormatYUYV, make([]byte, 7)},  // want 2x2x2 = 8
		{"grey", FormatGREY, make([]byte, 3)},  // want 2x2 = 4
		{"rgb", FormatRGB3, make([]byte, 11)},  // want 2x2x3 = 12
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := RawFrame{Width: 2, Height: 2, Format: tt.format, Data: tt.data}
			_, err := DefaultCodec.Decode(raw)
			if err == nil {
				t.Fatal("Decode() accepted a truncated frame")
			}
			if !strings.Contains(err.Error(), "truncated") {
				t.Errorf("error = %v, want a truncation complaint", err)
			}
		})
	}
}

func TestDecode_UnsupportedFormat(t *testing.T) {
	raw := RawFrame{Width: 2, Height: 2, Format: FourCC{'A', 'B', 'C', 'D'}}
	_, err := DefaultCodec.Decode(raw)
	if err == nil {
		t.Fatal("Decode() accepted an unknown format")
	}
	if !strings.Contains(err.Error(), "unsupported pixel format") {
		t.Errorf("error = %v, want an unsupported format complaint", err)
	}
}
