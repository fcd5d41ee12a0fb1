package cocoyolo

// The per-image record joining a COCO image entry with its annotations.

import (
	"fmt"
	"math"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Instance is one annotated object.
type Instance struct {
	ClassID   int       // Zero-based.
	ClassName string
	Polygon   []float64 // Flattened x, y pixel coordinates; at least 4 vertices.
}

// SourceImage describes where a record comes from.
type SourceImage struct {
	ImagePath      string // Path of the source image.
	AnnotationPath string // Path of the COCO file listing the image.
	Width, Height  int    // Declared pixel dimensions.
}

// Record is the conversion unit for one source image. It is immutable once constructed.
type Record struct {
	src        SourceImage
	partition  Partition
	labelPath  string
	imagePath  string
	classNames []string
	classIDs   []int
	polygons   [][]float64
}

// NewRecord validates its inputs and returns the record for src in partition p.
func NewRecord(src SourceImage, p Partition, instances []Instance) (Record, error) {
	if src.Width <= 0 || src.Height <= 0 {
		return Record{}, errors.Errorf("image %q has invalid size %dx%d", src.ImagePath, src.Width,
			src.Height)
	}
	if p == Unknown {
		return Record{}, errors.Errorf("image %q has no partition", src.ImagePath)
	}

	r := Record{
		src:        src,
		partition:  p,
		classNames: make([]string, len(instances)),
		classIDs:   make([]int, len(instances)),
		polygons:   make([][]float64, len(instances)),
	}
	for i, inst := range instances {
		if inst.ClassID < 0 {
			return Record{}, errors.Errorf("instance %d of %q has negative class id %d", i,
				src.ImagePath, inst.ClassID)
		}
		if n := len(inst.Polygon); n%2 != 0 || n < 8 {
			return Record{}, errors.Errorf("instance %d of %q has %d coordinates, want an even number"+
				" of at least 8", i, src.ImagePath, n)
		}
		r.classNames[i] = inst.ClassName
		r.classIDs[i] = inst.ClassID
		r.polygons[i] = append([]float64(nil), inst.Polygon...)
	}

	fileName := filepath.Base(src.ImagePath)
	baseNoExt, _ := splitName(fileName)
	r.imagePath = filepath.Join(p.String(), "images", fileName)
	r.labelPath = filepath.Join(p.String(), "labels", baseNoExt+".txt")

	return r, nil
}

// Source returns the provenance of the record.
func (r Record) Source() SourceImage { return r.src }

// Partition returns the partition the record was assigned to.
func (r Record) Partition() Partition { return r.partition }

// LabelPath is the label file path relative to the output root.
func (r Record) LabelPath() string { return r.labelPath }

// ImagePath is the image file path relative to the output root.
func (r Record) ImagePath() string { return r.imagePath }

// Len is the number of instances.
func (r Record) Len() int { return len(r.classIDs) }

// Instance returns the i-th instance. The polygon is shared with the record and must not be
// modified.
func (r Record) Instance(i int) Instance {
	return Instance{ClassID: r.classIDs[i], ClassName: r.classNames[i], Polygon: r.polygons[i]}
}

// ClassIDs returns a copy of the zero-based class ids, in instance order.
func (r Record) ClassIDs() []int { return append([]int(nil), r.classIDs...) }

// ClassNames returns a copy of the class names, in instance order.
func (r Record) ClassNames() []string { return append([]string(nil), r.classNames...) }

// MarshalZerologObject implements zerolog.LogObjectMarshaler.
func (r Record) MarshalZerologObject(e *zerolog.Event) {
	points := make([]int, len(r.polygons))
	for i, p := range r.polygons {
		points[i] = len(p) / 2
	}
	e.Str("image", r.src.ImagePath).
		Str("annotations", r.src.AnnotationPath).
		Int("width", r.src.Width).
		Int("height", r.src.Height).
		Stringer("partition", r.partition).
		Str("label_out", r.labelPath).
		Str("image_out", r.imagePath).
		Strs("classes", r.classNames).
		Ints("class_ids", r.classIDs).
		Ints("points", points)
}

// MultiPolygonPolicy decides what happens to annotations with more than one polygon.
type MultiPolygonPolicy string

// The supported policies.
const (
	RejectMultiPolygons  MultiPolygonPolicy = "reject"  // Abort the run.
	LargestMultiPolygons MultiPolygonPolicy = "largest" // Keep the polygon with the largest area.
)

// polygonArea is the unsigned shoelace area of a flattened polygon.
func polygonArea(p []float64) float64 {
	n := len(p) / 2
	var sum float64
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		sum += p[2*i]*p[2*j+1] - p[2*j]*p[2*i+1]
	}
	return math.Abs(sum) / 2
}

// selectPolygon returns the single polygon of seg, applying policy to multi-polygon
// segmentations. The returned reason is non-empty if seg cannot be converted.
func selectPolygon(seg COCOSegmentation, policy MultiPolygonPolicy) (polygon []float64, reason string) {
	switch {
	case seg.RLE != nil:
		return nil, "the object is a mask (RLE), not a polygon"
	case len(seg.Polygons) == 0:
		return nil, "the object has no polygon"
	case len(seg.Polygons) == 1:
		return seg.Polygons[0], ""
	case policy != LargestMultiPolygons:
		return nil, fmt.Sprintf("the object consists of %d polygons", len(seg.Polygons))
	}

	best := 0
	for i := 1; i < len(seg.Polygons); i++ {
		if polygonArea(seg.Polygons[i]) > polygonArea(seg.Polygons[best]) {
			best = i
		}
	}
	return seg.Polygons[best], ""
}

// BuildRecords creates one record for each image of f, in list order. Annotations are joined by
// image id and keep their list order within a record.
func BuildRecords(annotationFile string, f *COCOFile, imagesDir string, categories CategoryTable,
	assigner Assigner, policy MultiPolygonPolicy) ([]Record, error) {

	groups := f.annotationsByImage()
	records := make([]Record, 0, len(f.Images))
	for _, img := range f.Images {
		schemaErr := func(reason string) error {
			return &SchemaError{AnnotationFile: annotationFile, FileName: img.FileName, Reason: reason}
		}

		annotations := groups[img.ID]
		instances := make([]Instance, 0, len(annotations))
		for _, a := range annotations {
			polygon, reason := selectPolygon(a.Segmentation, policy)
			if reason != "" {
				return nil, schemaErr(reason)
			}
			if len(a.Segmentation.Polygons) > 1 {
				log.Warn().Str("image", img.FileName).Int("annotation", a.ID).
					Int("polygons", len(a.Segmentation.Polygons)).
					Msg("Kept the largest polygon of a multi-polygon object")
			}

			name, ok := categories[a.CategoryID-1]
			if !ok {
				return nil, schemaErr(fmt.Sprintf("unknown category id %d", a.CategoryID))
			}
			instances = append(instances, Instance{
				ClassID:   a.CategoryID - 1,
				ClassName: name,
				Polygon:   polygon,
			})
		}

		p, err := assigner.Assign(annotationFile)
		if err != nil {
			return nil, err
		}

		src := SourceImage{
			ImagePath:      filepath.Join(imagesDir, img.FileName),
			AnnotationPath: annotationFile,
			Width:          img.Width,
			Height:         img.Height,
		}
		r, err := NewRecord(src, p, instances)
		if err != nil {
			return nil, schemaErr(err.Error())
		}
		log.Debug().Object("record", r).Msg("Built record")

		records = append(records, r)
	}

	return records, nil
}
