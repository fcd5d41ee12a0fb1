package cocoyolo

// Oriented bounding box (OBB) normalization. CVAT exports rotated rectangles as an axis-aligned
// bbox plus a "rotation" attribute and an empty segmentation; YOLO segmentation labels need the
// four corners instead.

import (
	"bytes"
	"encoding/json"
	"math"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

// RotationAttribute is the annotation attribute holding the OBB angle in degrees.
const RotationAttribute = "rotation"

// trigEpsilon snaps cos/sin results this close to zero to exactly zero, so that right angles
// produce exact corners.
const trigEpsilon = 2.5e-16

// rotatedRectangle returns the corners (x1, y1, ..., x4, y4) of the rectangle with top-left
// corner (x, y) and size w×h, rotated counter-clockwise by angle degrees about its center. The
// corners keep the construction order (x,y), (x+w,y), (x+w,y+h), (x,y+h).
func rotatedRectangle(x, y, w, h, angle float64) [8]float64 {
	rad := angle * math.Pi / 180
	cosA, sinA := math.Cos(rad), math.Sin(rad)
	if math.Abs(cosA) < trigEpsilon {
		cosA = 0
	}
	if math.Abs(sinA) < trigEpsilon {
		sinA = 0
	}

	cx, cy := x+w/2, y+h/2
	dx := [4]float64{-w / 2, w / 2, w / 2, -w / 2}
	dy := [4]float64{-h / 2, -h / 2, h / 2, h / 2}

	var corners [8]float64
	for i := 0; i < 4; i++ {
		corners[2*i] = cx + dx[i]*cosA - dy[i]*sinA
		corners[2*i+1] = cy + dx[i]*sinA + dy[i]*cosA
	}
	return corners
}

// RewriteOrientedBoxes replaces the empty segmentation of every annotation that carries a bbox
// with the polygon of the rotated bbox. All other content of the document is preserved.
//
// Returns the re-encoded document and the number of rewritten annotations. When nothing was
// rewritten, data is returned unchanged.
func RewriteOrientedBoxes(data []byte, annotationFile string) ([]byte, int, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc map[string]interface{}
	if err := dec.Decode(&doc); err != nil {
		return nil, 0, errors.Wrapf(err, "failed to parse COCO input from %q", annotationFile)
	}

	annotations, _ := doc["annotations"].([]interface{})
	changes := 0
	for i, v := range annotations {
		a, ok := v.(map[string]interface{})
		if !ok || !isEmptyJSON(a["segmentation"]) {
			continue
		}
		bbox, _ := a["bbox"].([]interface{})
		if len(bbox) == 0 {
			continue
		}

		fail := func(reason string) error {
			return &GeometryAttributeError{
				AnnotationFile: annotationFile, AnnotationIdx: i, Reason: reason}
		}
		if len(bbox) < 4 {
			return nil, 0, fail("bbox must have 4 values")
		}
		var box [4]float64
		for j := range box {
			f, ok := jsonFloat(bbox[j])
			if !ok {
				return nil, 0, fail("bbox values must be numbers")
			}
			box[j] = f
		}

		attrs, _ := a["attributes"].(map[string]interface{})
		rotation, found := attrs[RotationAttribute]
		if !found {
			return nil, 0, fail("missing the \"" + RotationAttribute + "\" attribute")
		}
		angle, ok := jsonFloat(rotation)
		if !ok {
			return nil, 0, fail("the \"" + RotationAttribute + "\" attribute must be a number")
		}

		corners := rotatedRectangle(box[0], box[1], box[2], box[3], angle)
		polygon := make([]interface{}, len(corners))
		for j, c := range corners {
			polygon[j] = c
		}
		a["segmentation"] = []interface{}{polygon}
		changes++
	}

	if changes == 0 {
		return data, 0, nil
	}

	enc, err := json.Marshal(doc)
	if err != nil {
		return nil, 0, errors.Wrapf(err, "failed to encode %q", annotationFile)
	}
	return enc, changes, nil
}

// RewriteOrientedBoxesFile applies RewriteOrientedBoxes to the file at path and overwrites it if
// at least one annotation was rewritten.
func RewriteOrientedBoxesFile(fs afero.Fs, path string) (int, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return 0, errors.Wrapf(err, "cannot read %q", path)
	}

	enc, changes, err := RewriteOrientedBoxes(data, path)
	if err != nil || changes == 0 {
		return 0, err
	}

	if err := afero.WriteFile(fs, path, enc, 0644); err != nil {
		return 0, errors.Wrapf(err, "cannot write file %q", path)
	}
	return changes, nil
}

// isEmptyJSON reports whether a decoded JSON value is absent, null, or an empty list or object.
func isEmptyJSON(v interface{}) bool {
	switch v := v.(type) {
	case nil:
		return true
	case []interface{}:
		return len(v) == 0
	case map[string]interface{}:
		return len(v) == 0
	}
	return false
}

// jsonFloat converts a number decoded with UseNumber (or a plain float64) to float64.
func jsonFloat(v interface{}) (float64, bool) {
	switch v := v.(type) {
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case float64:
		return v, true
	}
	return 0, false
}
