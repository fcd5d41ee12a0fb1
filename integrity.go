package cocoyolo

// Referential integrity checks between annotation files and the shared image directory.

import (
	"sort"

	"github.com/rs/zerolog/log"
)

// FileNameRegistry maps image file names to the annotation files that list them.
type FileNameRegistry map[string][]string

// Add records that annotationFile lists each of fileNames.
func (r FileNameRegistry) Add(annotationFile string, fileNames []string) {
	for _, name := range fileNames {
		r[name] = append(r[name], annotationFile)
	}
}

// Duplicates returns an error for each file name listed more than once, sorted by file name.
func (r FileNameRegistry) Duplicates() []*DuplicateReferenceError {
	var dups []*DuplicateReferenceError
	for name, files := range r {
		if len(files) > 1 {
			dups = append(dups, &DuplicateReferenceError{
				FileName:        name,
				AnnotationFiles: append([]string(nil), files...),
			})
		}
	}
	sort.Slice(dups, func(i, j int) bool { return dups[i].FileName < dups[j].FileName })
	return dups
}

// CheckDuplicates logs every duplicate reference in r and returns the first, or nil.
func (r FileNameRegistry) CheckDuplicates() error {
	dups := r.Duplicates()
	if len(dups) == 0 {
		return nil
	}
	for _, d := range dups {
		log.Error().Str("image", d.FileName).Strs("files", d.AnnotationFiles).
			Msg("Image listed by more than one annotation file")
	}
	return dups[0]
}

// CheckMissingImages verifies that every name in referenced is in available. Otherwise a
// MissingImagesError listing the absent names is returned.
func CheckMissingImages(annotationFile string, referenced []string, available map[string]struct{}) error {
	missing := make(map[string]struct{})
	for _, name := range referenced {
		if _, ok := available[name]; !ok {
			missing[name] = struct{}{}
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return &MissingImagesError{AnnotationFile: annotationFile, Missing: sortedKeys(missing)}
}

// CheckOutputPaths verifies that no two records share a label file.
func CheckOutputPaths(records []Record) error {
	seen := make(map[string]string, len(records))
	for _, r := range records {
		if prev, ok := seen[r.LabelPath()]; ok {
			return &OutputCollisionError{
				LabelPath: r.LabelPath(), Images: [2]string{prev, r.Source().ImagePath}}
		}
		seen[r.LabelPath()] = r.Source().ImagePath
	}
	return nil
}

// Discrepancy is the difference between the converted images and the image directory.
type Discrepancy struct {
	Missing []string // Converted but not in the directory.
	Extra   []string // In the directory but never referenced.
}

// Empty reports whether there is no difference.
func (d Discrepancy) Empty() bool {
	return len(d.Missing) == 0 && len(d.Extra) == 0
}

// CompareConverted compares the names of the converted images with the directory listing.
func CompareConverted(converted []string, available map[string]struct{}) Discrepancy {
	convertedSet := make(map[string]struct{}, len(converted))
	missing := make(map[string]struct{})
	for _, name := range converted {
		convertedSet[name] = struct{}{}
		if _, ok := available[name]; !ok {
			missing[name] = struct{}{}
		}
	}

	extra := make(map[string]struct{})
	for name := range available {
		if _, ok := convertedSet[name]; !ok {
			extra[name] = struct{}{}
		}
	}

	var d Discrepancy
	if len(missing) > 0 {
		d.Missing = sortedKeys(missing)
	}
	if len(extra) > 0 {
		d.Extra = sortedKeys(extra)
	}
	return d
}
