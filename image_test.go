package camstream

import "testing"

func TestStereoFrameLumaPair(t *testing.T) {
	frame := &StereoFrame{Left: NewImage(3, 2), Right: NewImage(3, 2)}
	for i := range frame.Left.Pix {
		frame.Left.Pix[i] = 0.2
		frame.Right.Pix[i] = 0.8
	}

	left, right := frame.LumaPair()
	if got := left.Bounds().Dx(); got != 3 {
		t.Errorf("left width = %d, want 3", got)
	}
	if got := left.Pix[0]; got != 51 { // 0.2 * 255
		t.Errorf("left byte = %d, want 51", got)
	}
	if got := right.Pix[0]; got != 204 { // 0.8 * 255
		t.Errorf("right byte = %d, want 204", got)
	}
}

func TestStereoFrameSideBySide(t *testing.T) {
	w, h := 3, 2
	frame := &StereoFrame{Left: NewImage(w, h), Right: NewImage(w, h)}
	for i := range frame.Left.Pix {
		frame.Left.Pix[i] = float32(i) / 255
		frame.Right.Pix[i] = float32(100+i) / 255
	}

	out := frame.SideBySide()
	if out.Bounds().Dx() != 2*w || out.Bounds().Dy() != h {
		t.Fatalf("composite is %dx%d, want %dx%d", out.Bounds().Dx(), out.Bounds().Dy(), 2*w, h)
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if got, want := out.Pix[y*out.Stride+x], byte(y*w+x); got != want {
				t.Errorf("left half (%d,%d) = %d, want %d", x, y, got, want)
			}
			if got, want := out.Pix[y*out.Stride+w+x], byte(100+y*w+x); got != want {
				t.Errorf("right half (%d,%d) = %d, want %d", x, y, got, want)
			}
		}
	}
}
