package calibio

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFixture(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	return path
}

const monoTOML = `
camera_matrix = [380.5, 0.0, 320.0, 0.0, 381.2, 240.0, 0.0, 0.0, 1.0]
distortion = [-0.12, 0.05]
image_width = 640
image_height = 480
`

const monoYAML = `
camera_matrix: [380.5, 0.0, 320.0, 0.0, 381.2, 240.0, 0.0, 0.0, 1.0]
distortion: [-0.12, 0.05]
image_width: 640
image_height: 480
`

const monoJSON = `{
  "camera_matrix": [380.5, 0.0, 320.0, 0.0, 381.2, 240.0, 0.0, 0.0, 1.0],
  "distortion": [-0.12, 0.05],
  "image_width": 640,
  "image_height": 480
}`

// TestReadCamera_Formats verifies the same document decodes identically
// from TOML, YAML and JSON.
func TestReadCamera_Formats(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{name: "toml", file: "calib.toml", content: monoTOML},
		{name: "yaml", file: "calib.yaml", content: monoYAML},
		{name: "yml", file: "calib.yml", content: monoYAML},
		{name: "json", file: "calib.json", content: monoJSON},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cam, err := ReadCamera(writeFixture(t, tt.file, tt.content))
			if err != nil {
				t.Fatalf("ReadCamera() error = %v", err)
			}
			if cam.CameraMatrix[0] != 380.5 || cam.CameraMatrix[4] != 381.2 {
				t.Errorf("camera matrix focals = %v, %v, want 380.5, 381.2",
					cam.CameraMatrix[0], cam.CameraMatrix[4])
			}
			if len(cam.Distortion) != 2 || cam.Distortion[0] != -0.12 {
				t.Errorf("distortion = %v, want [-0.12 0.05]", cam.Distortion)
			}
			if cam.ImageWidth != 640 || cam.ImageHeight != 480 {
				t.Errorf("image size = %dx%d, want 640x480", cam.ImageWidth, cam.ImageHeight)
			}
			if cam.Rotation != nil || cam.Projection != nil {
				t.Error("mono document unexpectedly carries rotation/projection")
			}
		})
	}
}

// TestReadCamera_Rejections covers the shape checks: wrong matrix length,
// bad distortion count, negative sizes, half-specified sizes, unknown
// extensions, missing files and syntactically broken documents.
func TestReadCamera_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		errMsg  string
	}{
		{
			name:    "short camera matrix",
			file:    "calib.toml",
			content: "camera_matrix = [1.0, 2.0, 3.0]\n",
			errMsg:  "must have 9 elements",
		},
		{
			name:    "missing camera matrix",
			file:    "calib.toml",
			content: "distortion = [0.1]\n",
			errMsg:  "missing camera_matrix",
		},
		{
			name:    "bad distortion length",
			file:    "calib.toml",
			content: "camera_matrix = [1.0,0.0,0.0,0.0,1.0,0.0,0.0,0.0,1.0]\ndistortion = [0.1, 0.2, 0.3]\n",
			errMsg:  "distortion must have",
		},
		{
			name:    "negative image size",
			file:    "calib.toml",
			content: "camera_matrix = [1.0,0.0,0.0,0.0,1.0,0.0,0.0,0.0,1.0]\nimage_width = -640\nimage_height = 480\n",
			errMsg:  "must not be negative",
		},
		{
			name:    "width without height",
			file:    "calib.toml",
			content: "camera_matrix = [1.0,0.0,0.0,0.0,1.0,0.0,0.0,0.0,1.0]\nimage_width = 640\n",
			errMsg:  "given together",
		},
		{
			name:    "unknown extension",
			file:    "calib.ini",
			content: monoTOML,
			errMsg:  "unsupported calibration file extension",
		},
		{
			name:    "broken toml",
			file:    "calib.toml",
			content: "camera_matrix = [1.0,,\n",
			errMsg:  "decode toml",
		},
		{
			name:    "broken json",
			file:    "calib.json",
			content: "{\"camera_matrix\": [",
			errMsg:  "decode json",
		},
		{
			name:    "stereo document to mono loader",
			file:    "calib.toml",
			content: "[left]\ncamera_matrix = [1.0,0.0,0.0,0.0,1.0,0.0,0.0,0.0,1.0]\n[right]\ncamera_matrix = [1.0,0.0,0.0,0.0,1.0,0.0,0.0,0.0,1.0]\n",
			errMsg:  "stereo document",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadCamera(writeFixture(t, tt.file, tt.content))
			if err == nil {
				t.Fatalf("ReadCamera() expected error containing %q, got nil", tt.errMsg)
			}
			if !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("ReadCamera() error = %q, want containing %q", err, tt.errMsg)
			}
		})
	}
}

// TestReadCamera_MissingFile verifies the underlying I/O error surfaces.
func TestReadCamera_MissingFile(t *testing.T) {
	_, err := ReadCamera(filepath.Join(t.TempDir(), "nope.toml"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if !os.IsNotExist(err) {
		t.Errorf("error = %v, want a not-exist error", err)
	}
}

const stereoTOML = `
[left]
camera_matrix = [380.0, 0.0, 320.0, 0.0, 380.0, 240.0, 0.0, 0.0, 1.0]
distortion = [-0.1]
image_width = 640
image_height = 480
rotation = [1.0, 0.0, 0.0, 0.0, 1.0, 0.0, 0.0, 0.0, 1.0]
projection = [370.0, 0.0, 320.0, 0.0, 0.0, 370.0, 240.0, 0.0, 0.0, 0.0, 1.0, 0.0]

[right]
camera_matrix = [382.0, 0.0, 318.0, 0.0, 382.0, 242.0, 0.0, 0.0, 1.0]
distortion = [-0.11]
image_width = 640
image_height = 480
rotation = [1.0, 0.0, 0.0, 0.0, 1.0, 0.0, 0.0, 0.0, 1.0]
projection = [370.0, 0.0, 320.0, 0.0, 370.0, 240.0, 0.0, 0.0, 1.0]
`

// TestReadStereo verifies both sides decode, including the 3x4 projection
// fold on the left and the 3x3 form on the right.
func TestReadStereo(t *testing.T) {
	left, right, err := ReadStereo(writeFixture(t, "stereo.toml", stereoTOML))
	if err != nil {
		t.Fatalf("ReadStereo() error = %v", err)
	}

	if left.CameraMatrix[0] != 380 || right.CameraMatrix[0] != 382 {
		t.Errorf("focals = %v, %v, want 380, 382", left.CameraMatrix[0], right.CameraMatrix[0])
	}
	if left.Rotation == nil || right.Rotation == nil {
		t.Fatal("rotations missing")
	}

	// Left projection was 3x4; the translation column must be dropped.
	if left.Projection == nil {
		t.Fatal("left projection missing")
	}
	want := [9]float64{370, 0, 320, 0, 370, 240, 0, 0, 1}
	if *left.Projection != want {
		t.Errorf("left projection = %v, want %v", *left.Projection, want)
	}
	if right.Projection == nil || *right.Projection != want {
		t.Errorf("right projection = %v, want %v", right.Projection, want)
	}
}

// TestReadStereo_MissingSide verifies a stereo document must carry both
// sections.
func TestReadStereo_MissingSide(t *testing.T) {
	content := "[left]\ncamera_matrix = [1.0,0.0,0.0,0.0,1.0,0.0,0.0,0.0,1.0]\n"

	_, _, err := ReadStereo(writeFixture(t, "stereo.toml", content))
	if err == nil || !strings.Contains(err.Error(), "missing right camera") {
		t.Errorf("error = %v, want missing right camera", err)
	}
}

// TestReadStereo_SideErrorsAreAttributed verifies shape failures say which
// side they came from.
func TestReadStereo_SideErrorsAreAttributed(t *testing.T) {
	content := `
[left]
camera_matrix = [380.0, 0.0, 320.0, 0.0, 380.0, 240.0, 0.0, 0.0, 1.0]

[right]
camera_matrix = [382.0, 0.0, 318.0, 0.0, 382.0, 242.0, 0.0, 0.0, 1.0]
rotation = [1.0, 2.0]
`
	_, _, err := ReadStereo(writeFixture(t, "stereo.toml", content))
	if err == nil || !strings.Contains(err.Error(), "right camera:") {
		t.Errorf("error = %v, want attributed to right camera", err)
	}
}
