package camstream

import (
	"bytes"
	"fmt"
	"image/jpeg"
)

// DefaultCodec is the built-in frame codec. It decodes MJPG through the
// stdlib JPEG decoder and converts YUYV, GREY and RGB3 directly.
var DefaultCodec FrameCodec = builtinCodec{}

type builtinCodec struct{}

func (builtinCodec) Supports(format FourCC) bool {
	switch format {
	case FormatYUYV, FormatMJPG, FormatGREY, FormatRGB3:
		return true
	default:
		return false
	}
}

func (builtinCodec) Decode(raw RawFrame) (*Image, error) {
	switch raw.Format {
	case FormatMJPG:
		return decodeJPEG(raw)
	case FormatYUYV:
		return decodeYUYV(raw)
	case FormatGREY:
		return decodeGREY(raw)
	case FormatRGB3:
		return decodeRGB3(raw)
	default:
		return nil, fmt.Errorf("unsupported pixel format %q", raw.Format)
	}
}

func decodeJPEG(raw RawFrame) (*Image, error) {
	img, err := jpeg.Decode(bytes.NewReader(raw.Data))
	if err != nil {
		return nil, fmt.Errorf("jpeg decode: %w", err)
	}
	return FromImage(img), nil
}

// decodeYUYV reads the luma bytes of packed YUV 4:2:2. Every pixel carries
// its own Y sample at even byte offsets; chroma is discarded.
func decodeYUYV(raw RawFrame) (*Image, error) {
	want := raw.Width * raw.Height * 2
	if len(raw.Data) < want {
		return nil, fmt.Errorf("yuyv frame truncated: got %d bytes, want %d", len(raw.Data), want)
	}
	img := NewImage(raw.Width, raw.Height)
	for i := range img.Pix {
		img.Pix[i] = float32(raw.Data[2*i]) / 255
	}
	return img, nil
}

func decodeGREY(raw RawFrame) (*Image, error) {
	want := raw.Width * raw.Height
	if len(raw.Data) < want {
		return nil, fmt.Errorf("grey frame truncated: got %d bytes, want %d", len(raw.Data), want)
	}
	img := NewImage(raw.Width, raw.Height)
	for i := range img.Pix {
		img.Pix[i] = float32(raw.Data[i]) / 255
	}
	return img, nil
}

func decodeRGB3(raw RawFrame) (*Image, error) {
	want := raw.Width * raw.Height * 3
	if len(raw.Data) < want {
		return nil, fmt.Errorf("rgb frame truncated: got %d bytes, want %d", len(raw.Data), want)
	}
	img := NewImage(raw.Width, raw.Height)
	for i := range img.Pix {
		r := float64(raw.Data[3*i])
		g := float64(raw.Data[3*i+1])
		b := float64(raw.Data[3*i+2])
		img.Pix[i] = float32((0.299*r + 0.587*g + 0.114*b) / 255)
	}
	return img, nil
}
