package cocoyolo

// Error types for the fatal conditions of a conversion run. All of them abort the run; match them
// with errors.As after unwrapping.

import (
	"fmt"
	"strings"
)

// MissingPathError reports a required input path that does not exist.
type MissingPathError struct {
	Kind string // "dataset", "images" or "annotations".
	Path string
}

func (e *MissingPathError) Error() string {
	return fmt.Sprintf("the %s folder %q was not found", e.Kind, e.Path)
}

// DuplicateReferenceError reports an image file name listed by more than one annotation file,
// or listed twice by the same file.
type DuplicateReferenceError struct {
	FileName        string
	AnnotationFiles []string
}

func (e *DuplicateReferenceError) Error() string {
	return fmt.Sprintf("the image %q appears in the following annotation files: %s",
		e.FileName, strings.Join(e.AnnotationFiles, ", "))
}

// MissingImagesError reports images referenced by an annotation file that are absent from the
// images directory.
type MissingImagesError struct {
	AnnotationFile string
	Missing        []string // Sorted.
}

func (e *MissingImagesError) Error() string {
	return fmt.Sprintf("some images annotated in %q are missing from the images folder: %s",
		e.AnnotationFile, strings.Join(e.Missing, ", "))
}

// SchemaError reports an annotation whose shape cannot be converted to a YOLO segmentation label.
type SchemaError struct {
	AnnotationFile string
	FileName       string // The image the annotation belongs to, if known.
	Reason         string
}

func (e *SchemaError) Error() string {
	if e.FileName == "" {
		return fmt.Sprintf("invalid annotation in %q: %s", e.AnnotationFile, e.Reason)
	}
	return fmt.Sprintf("invalid annotation for image %q in %q: %s",
		e.FileName, e.AnnotationFile, e.Reason)
}

// GeometryAttributeError reports an oriented bounding box that cannot be rewritten.
type GeometryAttributeError struct {
	AnnotationFile string
	AnnotationIdx  int // Index into the annotations list.
	Reason         string
}

func (e *GeometryAttributeError) Error() string {
	return fmt.Sprintf("oriented bounding box #%d in %q: %s",
		e.AnnotationIdx, e.AnnotationFile, e.Reason)
}

// PartitionError reports an annotation file name that does not end in a known partition token.
type PartitionError struct {
	AnnotationFile string
	Token          string
}

func (e *PartitionError) Error() string {
	return fmt.Sprintf("unknown partition %q in annotation file name %q (want train, validation or test)",
		e.Token, e.AnnotationFile)
}

// CategoryConflictError reports a class id that two annotation files map to different names.
type CategoryConflictError struct {
	ID             int // Zero-based.
	Names          [2]string
	AnnotationFile string // The file that introduced the conflicting name.
}

func (e *CategoryConflictError) Error() string {
	return fmt.Sprintf("class id %d is %q in one annotation file and %q in %q",
		e.ID, e.Names[0], e.Names[1], e.AnnotationFile)
}

// OutputCollisionError reports two images that would be written to the same label file, i.e.
// images of one partition whose names differ only in the extension.
type OutputCollisionError struct {
	LabelPath string
	Images    [2]string
}

func (e *OutputCollisionError) Error() string {
	return fmt.Sprintf("the images %q and %q would both be labeled in %q",
		e.Images[0], e.Images[1], e.LabelPath)
}

// ConfigError reports an invalid configuration value.
type ConfigError struct {
	Key    string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s %s", e.Key, e.Reason)
}
