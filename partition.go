package cocoyolo

// Dataset partitions and how records are assigned to them.

import (
	"math/rand"
	"strings"
)

// Partition is a dataset role. The zero value is invalid.
type Partition int

// The known partitions.
const (
	Unknown Partition = iota
	Train
	Validation
	Test
)

// String returns the partition's directory name.
func (p Partition) String() string {
	switch p {
	case Train:
		return "train"
	case Validation:
		return "validation"
	case Test:
		return "test"
	}
	return "unknown"
}

// ParsePartition parses a partition name, ignoring case. Unknown is returned for anything but
// train, validation and test.
func ParsePartition(s string) Partition {
	switch strings.ToLower(s) {
	case "train":
		return Train
	case "validation":
		return Validation
	case "test":
		return Test
	}
	return Unknown
}

// PartitionFromFileName derives the partition from an annotation file name: the token after the
// last underscore of the base name, without the extension. E.g. "instances_Train.json" is Train.
func PartitionFromFileName(annotationFile string) (Partition, error) {
	baseNoExt, _ := splitName(annotationFile)
	token := strings.ToLower(baseNoExt[strings.LastIndex(baseNoExt, "_")+1:])

	p := ParsePartition(token)
	if p == Unknown {
		return Unknown, &PartitionError{AnnotationFile: annotationFile, Token: token}
	}
	return p, nil
}

// Assigner decides the partition of each record built from an annotation file.
type Assigner interface {
	// Assign is called once per record, in build order.
	Assign(annotationFile string) (Partition, error)
	// Partitions lists the partitions the assigner may return, if known before the run.
	Partitions() []Partition
}

// ManualAssigner takes the partition from the annotation file name.
type ManualAssigner struct{}

// Assign implements Assigner.
func (ManualAssigner) Assign(annotationFile string) (Partition, error) {
	return PartitionFromFileName(annotationFile)
}

// Partitions implements Assigner. The partitions depend on the input file names.
func (ManualAssigner) Partitions() []Partition { return nil }

// AutosplitAssigner assigns every record independently: validation with probability
// PercentVal/100, train otherwise.
type AutosplitAssigner struct {
	PercentVal float64 // In [0, 100].
	rng        *rand.Rand
}

// NewAutosplitAssigner returns an AutosplitAssigner drawing from a generator seeded with seed.
func NewAutosplitAssigner(percentVal float64, seed int64) *AutosplitAssigner {
	return &AutosplitAssigner{
		PercentVal: percentVal,
		rng:        rand.New(rand.NewSource(seed)),
	}
}

// Assign implements Assigner. It draws a uniform integer in [1, 100] and returns Validation if
// the draw does not exceed PercentVal.
func (a *AutosplitAssigner) Assign(string) (Partition, error) {
	if draw := a.rng.Intn(100) + 1; float64(draw) <= a.PercentVal {
		return Validation, nil
	}
	return Train, nil
}

// Partitions implements Assigner.
func (a *AutosplitAssigner) Partitions() []Partition {
	return []Partition{Train, Validation}
}
