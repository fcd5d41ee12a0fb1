package cocoyolo

import (
	"fmt"
	"sort"
)

// CategoryTable maps zero-based class ids to class names.
type CategoryTable map[int]string

// NewCategoryTable builds the table for one annotation file. COCO category ids are one-based.
func NewCategoryTable(annotationFile string, categories []COCOCategory) (CategoryTable, error) {
	table := make(CategoryTable, len(categories))
	for _, c := range categories {
		if c.ID < 1 {
			return nil, &SchemaError{
				AnnotationFile: annotationFile,
				Reason:         fmt.Sprintf("category %q has id %d, ids must start at 1", c.Name, c.ID),
			}
		}
		if prev, ok := table[c.ID-1]; ok && prev != c.Name {
			return nil, &SchemaError{
				AnnotationFile: annotationFile,
				Reason:         fmt.Sprintf("category id %d is declared as %q and %q", c.ID, prev, c.Name),
			}
		}
		table[c.ID-1] = c.Name
	}
	return table, nil
}

// IDs returns the class ids in ascending order.
func (t CategoryTable) IDs() []int {
	ids := make([]int, 0, len(t))
	for id := range t {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Merge adds the entries of other to t. An id that other maps to a different name than t is a
// CategoryConflictError; t is left unchanged in that case.
func (t CategoryTable) Merge(annotationFile string, other CategoryTable) error {
	for _, id := range other.IDs() {
		if name, ok := t[id]; ok && name != other[id] {
			return &CategoryConflictError{
				ID: id, Names: [2]string{name, other[id]}, AnnotationFile: annotationFile}
		}
	}
	for id, name := range other {
		t[id] = name
	}
	return nil
}

// Names returns the class names indexed by id, from 0 to the largest id. Ids without a category
// get the placeholder "class_<id>"; the placeholder ids are returned as well.
func (t CategoryTable) Names() (names []string, gaps []int) {
	ids := t.IDs()
	if len(ids) == 0 {
		return []string{}, nil
	}

	names = make([]string, ids[len(ids)-1]+1)
	for i := range names {
		if name, ok := t[i]; ok {
			names[i] = name
		} else {
			names[i] = fmt.Sprintf("class_%d", i)
			gaps = append(gaps, i)
		}
	}
	return names, gaps
}
