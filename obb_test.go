package cocoyolo

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

// cornerSet converts flattened corners into a set of rounded points.
func cornerSet(c [8]float64) map[[2]float64]bool {
	set := make(map[[2]float64]bool, 4)
	for i := 0; i < 8; i += 2 {
		set[[2]float64{math.Round(c[i]*1e9) / 1e9, math.Round(c[i+1]*1e9) / 1e9}] = true
	}
	return set
}

func TestRotatedRectangle(t *testing.T) {
	got := rotatedRectangle(0, 0, 10, 20, 0)
	want := [8]float64{0, 0, 10, 0, 10, 20, 0, 20}
	if got != want {
		t.Errorf("rotation 0: got %v, want %v", got, want)
	}

	// A rectangle is point symmetric about its center.
	rotated := cornerSet(rotatedRectangle(0, 0, 10, 20, 180))
	for p := range cornerSet(want) {
		if !rotated[p] {
			t.Errorf("rotation 180: corner %v missing from %v", p, rotated)
		}
	}

	// Counter-clockwise by 90 degrees about (5, 10): (0,0) -> (15, 5).
	got = rotatedRectangle(0, 0, 10, 20, 90)
	want = [8]float64{15, 5, 15, 15, -5, 15, -5, 5}
	if got != want {
		t.Errorf("rotation 90: got %v, want %v", got, want)
	}
}

func TestRewriteOrientedBoxes(t *testing.T) {
	in := []byte(`{
		"info": {"description": "kept"},
		"images": [{"id": 1, "file_name": "a.jpg", "width": 10, "height": 20}],
		"annotations": [
			{"id": 1, "image_id": 1, "category_id": 1, "segmentation": [], "bbox": [0, 0, 10, 20],
			 "attributes": {"rotation": 0, "occluded": false}, "iscrowd": 0},
			{"id": 2, "image_id": 1, "category_id": 1, "segmentation": [[1, 1, 2, 1, 2, 2, 1, 2]],
			 "bbox": [1, 1, 1, 1]},
			{"id": 3, "image_id": 1, "category_id": 1, "segmentation": [], "bbox": []}
		],
		"categories": [{"id": 1, "name": "box"}]
	}`)

	out, changes, err := RewriteOrientedBoxes(in, "in.json")
	if err != nil {
		t.Fatal(err)
	}
	if changes != 1 {
		t.Fatalf("expected 1 rewritten annotation, got %d", changes)
	}

	f, err := ParseCOCO(out)
	if err != nil {
		t.Fatal(err)
	}
	want := []float64{0, 0, 10, 0, 10, 20, 0, 20}
	seg := f.Annotations[0].Segmentation
	if len(seg.Polygons) != 1 || len(seg.Polygons[0]) != 8 {
		t.Fatalf("unexpected segmentation %+v", seg)
	}
	for i, v := range want {
		if seg.Polygons[0][i] != v {
			t.Errorf("coordinate %d: got %v, want %v", i, seg.Polygons[0][i], v)
		}
	}
	if got := f.Annotations[1].Segmentation.Polygons[0][0]; got != 1 {
		t.Errorf("existing polygon was modified: %v", f.Annotations[1].Segmentation)
	}
	if !f.Annotations[2].Segmentation.Empty() {
		t.Errorf("annotation without bbox was rewritten: %v", f.Annotations[2].Segmentation)
	}

	// Fields unknown to the converter survive the rewrite.
	var doc map[string]interface{}
	if err := json.Unmarshal(out, &doc); err != nil {
		t.Fatal(err)
	}
	if _, ok := doc["info"]; !ok {
		t.Error("the info section was dropped")
	}
	a := doc["annotations"].([]interface{})[0].(map[string]interface{})
	if _, ok := a["iscrowd"]; !ok {
		t.Error("the iscrowd field was dropped")
	}
}

func TestRewriteOrientedBoxesUnchanged(t *testing.T) {
	in := []byte(`{"annotations": [{"segmentation": [[1, 1, 2, 1, 2, 2, 1, 2]], "bbox": [1, 1, 1, 1]}]}`)
	out, changes, err := RewriteOrientedBoxes(in, "in.json")
	if err != nil {
		t.Fatal(err)
	}
	if changes != 0 || string(out) != string(in) {
		t.Errorf("expected the input back unchanged, got %d changes and %s", changes, out)
	}
}

func TestRewriteOrientedBoxesMissingRotation(t *testing.T) {
	for name, in := range map[string]string{
		"no attributes": `{"annotations": [{"segmentation": [], "bbox": [0, 0, 1, 1]}]}`,
		"no rotation":   `{"annotations": [{"segmentation": [], "bbox": [0, 0, 1, 1], "attributes": {}}]}`,
		"not a number":  `{"annotations": [{"segmentation": [], "bbox": [0, 0, 1, 1], "attributes": {"rotation": "x"}}]}`,
		"short bbox":    `{"annotations": [{"segmentation": [], "bbox": [0, 0, 1], "attributes": {"rotation": 0}}]}`,
	} {
		_, _, err := RewriteOrientedBoxes([]byte(in), "in.json")
		var geomErr *GeometryAttributeError
		if !errors.As(err, &geomErr) {
			t.Errorf("%s: expected a GeometryAttributeError, got %v", name, err)
		}
	}
}

func TestRewriteOrientedBoxesFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	plain := `{"annotations": [{"segmentation": [[1, 1, 2, 1, 2, 2, 1, 2]], "bbox": [1, 1, 1, 1]}]}`
	obb := `{"annotations": [{"segmentation": [], "bbox": [0, 0, 4, 2], "attributes": {"rotation": 45.5}}]}`
	if err := afero.WriteFile(fs, "/plain.json", []byte(plain), 0644); err != nil {
		t.Fatal(err)
	}
	if err := afero.WriteFile(fs, "/obb.json", []byte(obb), 0644); err != nil {
		t.Fatal(err)
	}

	if n, err := RewriteOrientedBoxesFile(fs, "/plain.json"); err != nil || n != 0 {
		t.Fatalf("plain file: got %d, %v", n, err)
	}
	if data, _ := afero.ReadFile(fs, "/plain.json"); string(data) != plain {
		t.Errorf("plain file was rewritten: %s", data)
	}

	if n, err := RewriteOrientedBoxesFile(fs, "/obb.json"); err != nil || n != 1 {
		t.Fatalf("obb file: got %d, %v", n, err)
	}
	f, err := ReadCOCO(fs, "/obb.json")
	if err != nil {
		t.Fatal(err)
	}
	if len(f.Annotations[0].Segmentation.Polygons) != 1 {
		t.Errorf("obb file was not rewritten: %+v", f.Annotations[0])
	}

	// Running again finds nothing left to rewrite.
	if n, err := RewriteOrientedBoxesFile(fs, "/obb.json"); err != nil || n != 0 {
		t.Errorf("second pass: got %d, %v", n, err)
	}
}
