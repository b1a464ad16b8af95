// Package calibio reads camera calibration documents from disk. It
// understands TOML, YAML and JSON, selected by file extension, and returns
// shape-checked numeric parameters. Semantic validation (finiteness,
// orthonormality, plausibility) belongs to the caller.
package calibio

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Document is the on-disk schema of one camera's calibration.
type Document struct {
	// CameraMatrix is the row-major 3x3 intrinsic matrix (9 values).
	CameraMatrix []float64 `toml:"camera_matrix" yaml:"camera_matrix" json:"camera_matrix"`
	// Distortion holds Brown-Conrady coefficients k1,k2,p1,p2,k3,k4,k5,k6.
	// Accepted lengths: 0, 1, 2, 4, 5, 8.
	Distortion []float64 `toml:"distortion" yaml:"distortion" json:"distortion"`
	// ImageWidth and ImageHeight record the resolution the model was
	// calibrated at. Zero means unrecorded.
	ImageWidth  int `toml:"image_width" yaml:"image_width" json:"image_width"`
	ImageHeight int `toml:"image_height" yaml:"image_height" json:"image_height"`
	// Rotation is an optional row-major 3x3 rectifying rotation (9 values).
	Rotation []float64 `toml:"rotation" yaml:"rotation" json:"rotation"`
	// Projection is an optional new camera matrix, row-major 3x3 (9 values)
	// or 3x4 (12 values, right column ignored).
	Projection []float64 `toml:"projection" yaml:"projection" json:"projection"`
}

// StereoDocument is the on-disk schema of a stereo rig: one Document per
// side.
type StereoDocument struct {
	Left  Document `toml:"left" yaml:"left" json:"left"`
	Right Document `toml:"right" yaml:"right" json:"right"`
}

// Camera is a shape-checked calibration as stored in a document.
type Camera struct {
	CameraMatrix [9]float64
	Distortion   []float64
	ImageWidth   int
	ImageHeight  int
	Rotation     *[9]float64
	Projection   *[9]float64
}

// ReadCamera loads a single-camera calibration document.
func ReadCamera(path string) (*Camera, error) {
	var doc Document
	if err := decodeFile(path, &doc); err != nil {
		return nil, err
	}
	if len(doc.CameraMatrix) == 0 {
		var probe StereoDocument
		if decodeFile(path, &probe) == nil && len(probe.Left.CameraMatrix) > 0 {
			return nil, fmt.Errorf("stereo document given to a mono loader")
		}
		return nil, fmt.Errorf("missing camera_matrix")
	}
	return shape(doc)
}

// ReadStereo loads a two-camera calibration document with left and right
// sections.
func ReadStereo(path string) (left, right *Camera, err error) {
	var doc StereoDocument
	if err := decodeFile(path, &doc); err != nil {
		return nil, nil, err
	}
	if len(doc.Left.CameraMatrix) == 0 {
		return nil, nil, fmt.Errorf("missing left camera section")
	}
	if len(doc.Right.CameraMatrix) == 0 {
		return nil, nil, fmt.Errorf("missing right camera section")
	}
	if left, err = shape(doc.Left); err != nil {
		return nil, nil, fmt.Errorf("left camera: %w", err)
	}
	if right, err = shape(doc.Right); err != nil {
		return nil, nil, fmt.Errorf("right camera: %w", err)
	}
	return left, right, nil
}

func decodeFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		if err := toml.Unmarshal(data, v); err != nil {
			return fmt.Errorf("decode toml: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, v); err != nil {
			return fmt.Errorf("decode yaml: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, v); err != nil {
			return fmt.Errorf("decode json: %w", err)
		}
	default:
		return fmt.Errorf("unsupported calibration file extension %q (want .toml, .yaml, .yml or .json)", ext)
	}
	return nil
}

var distLengths = map[int]bool{0: true, 1: true, 2: true, 4: true, 5: true, 8: true}

func shape(doc Document) (*Camera, error) {
	cam := &Camera{
		Distortion:  doc.Distortion,
		ImageWidth:  doc.ImageWidth,
		ImageHeight: doc.ImageHeight,
	}

	if len(doc.CameraMatrix) != 9 {
		return nil, fmt.Errorf("camera_matrix must have 9 elements, got %d", len(doc.CameraMatrix))
	}
	copy(cam.CameraMatrix[:], doc.CameraMatrix)

	if !distLengths[len(doc.Distortion)] {
		return nil, fmt.Errorf("distortion must have 0, 1, 2, 4, 5 or 8 coefficients, got %d", len(doc.Distortion))
	}
	if doc.ImageWidth < 0 || doc.ImageHeight < 0 {
		return nil, fmt.Errorf("image size must not be negative, got %dx%d", doc.ImageWidth, doc.ImageHeight)
	}
	if (doc.ImageWidth == 0) != (doc.ImageHeight == 0) {
		return nil, fmt.Errorf("image_width and image_height must be given together")
	}

	if doc.Rotation != nil {
		if len(doc.Rotation) != 9 {
			return nil, fmt.Errorf("rotation must have 9 elements, got %d", len(doc.Rotation))
		}
		var r [9]float64
		copy(r[:], doc.Rotation)
		cam.Rotation = &r
	}

	if doc.Projection != nil {
		var p [9]float64
		switch len(doc.Projection) {
		case 9:
			copy(p[:], doc.Projection)
		case 12:
			// 3x4 projection: keep the left 3x3 block.
			for row := 0; row < 3; row++ {
				copy(p[row*3:row*3+3], doc.Projection[row*4:row*4+3])
			}
		default:
			return nil, fmt.Errorf("projection must have 9 (3x3) or 12 (3x4) elements, got %d", len(doc.Projection))
		}
		cam.Projection = &p
	}

	return cam, nil
}
