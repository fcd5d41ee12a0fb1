package cocoyolo

// COCO specific functionality.

import (
	"bytes"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

// COCOImage is an entry of the "images" list.
type COCOImage struct {
	ID       int    `json:"id"`
	FileName string `json:"file_name"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
}

// COCORLE is a run-length encoded mask. Counts is either a list of ints or a compressed string,
// so it is kept raw.
type COCORLE struct {
	Counts json.RawMessage `json:"counts"`
	Size   [2]int          `json:"size"`
}

// COCOSegmentation holds either a list of polygons or an RLE mask. The two cases share one JSON
// field, so decoding looks at the first token.
type COCOSegmentation struct {
	Polygons [][]float64
	RLE      *COCORLE
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *COCOSegmentation) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		*s = COCOSegmentation{}
		return nil
	case data[0] == '{':
		var rle COCORLE
		if err := json.Unmarshal(data, &rle); err != nil {
			return err
		}
		*s = COCOSegmentation{RLE: &rle}
		return nil
	default:
		var polygons [][]float64
		if err := json.Unmarshal(data, &polygons); err != nil {
			return err
		}
		*s = COCOSegmentation{Polygons: polygons}
		return nil
	}
}

// MarshalJSON implements json.Marshaler.
func (s COCOSegmentation) MarshalJSON() ([]byte, error) {
	if s.RLE != nil {
		return json.Marshal(s.RLE)
	}
	if s.Polygons == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(s.Polygons)
}

// Empty reports whether the segmentation holds neither polygons nor a mask.
func (s COCOSegmentation) Empty() bool {
	return s.RLE == nil && len(s.Polygons) == 0
}

// COCOAnnotation is an entry of the "annotations" list.
type COCOAnnotation struct {
	ID           int                    `json:"id"`
	ImageID      int                    `json:"image_id"`
	CategoryID   int                    `json:"category_id"`
	Segmentation COCOSegmentation       `json:"segmentation"`
	Bbox         []float64              `json:"bbox"`
	Attributes   map[string]interface{} `json:"attributes,omitempty"`
}

// COCOCategory is an entry of the "categories" list. IDs are one-based.
type COCOCategory struct {
	ID            int    `json:"id"`
	Name          string `json:"name"`
	SuperCategory string `json:"supercategory,omitempty"`
}

// COCOFile is the content of one COCO annotation file.
type COCOFile struct {
	Images      []COCOImage      `json:"images"`
	Annotations []COCOAnnotation `json:"annotations"`
	Categories  []COCOCategory   `json:"categories"`
}

// FileNames returns the image file names in the order they are listed.
func (f *COCOFile) FileNames() []string {
	names := make([]string, len(f.Images))
	for i, img := range f.Images {
		names[i] = img.FileName
	}
	return names
}

// annotationsByImage groups the annotations by image id, keeping the list order within a group.
func (f *COCOFile) annotationsByImage() map[int][]COCOAnnotation {
	groups := make(map[int][]COCOAnnotation, len(f.Images))
	for _, a := range f.Annotations {
		groups[a.ImageID] = append(groups[a.ImageID], a)
	}
	return groups
}

// ParseCOCO decodes a COCO annotation file.
func ParseCOCO(data []byte) (*COCOFile, error) {
	var f COCOFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

// ReadCOCO reads and parses the COCO annotation file at path.
func ReadCOCO(fs afero.Fs, path string) (*COCOFile, error) {
	enc, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read %q", path)
	}

	f, err := ParseCOCO(enc)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse COCO input from %q", path)
	}
	return f, nil
}
