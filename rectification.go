package camstream

import "github.com/duncanrhamill/cv-camstream/internal/rectify"

// RectificationMap is a precomputed inverse pixel map from rectified output
// coordinates to raw sensor coordinates. Streams build one per sensor at
// construction time and reuse it for every frame; see ComputeRectificationMap
// to build one standalone.
type RectificationMap = rectify.Map

// ComputeRectificationMap validates the model and builds the inverse map
// for the given output resolution. The output dimensions are fixed in the
// map; Apply produces images of exactly this size regardless of the raw
// frame dimensions. Invalid models are reported as *CalibrationError.
func ComputeRectificationMap(model *CalibrationModel, width, height int) (*RectificationMap, error) {
	if width <= 0 || height <= 0 {
		return nil, &CalibrationError{Source: "model", Reason: "map dimensions must be positive"}
	}
	if err := model.Validate(); err != nil {
		return nil, &CalibrationError{Source: "model", Err: err}
	}
	return rectify.ComputeMap(model.camera(), width, height), nil
}
