package cocoyolo

import (
	"reflect"
	"testing"

	"github.com/pkg/errors"
)

func nameSet(names ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return set
}

func TestFileNameRegistryDuplicates(t *testing.T) {
	r := make(FileNameRegistry)
	r.Add("a_train.json", []string{"1.jpg", "2.jpg"})
	r.Add("b_validation.json", []string{"3.jpg", "2.jpg"})

	err := r.CheckDuplicates()
	var dup *DuplicateReferenceError
	if !errors.As(err, &dup) {
		t.Fatalf("expected a DuplicateReferenceError, got %v", err)
	}
	if dup.FileName != "2.jpg" {
		t.Errorf("got file name %q, want 2.jpg", dup.FileName)
	}
	if want := []string{"a_train.json", "b_validation.json"}; !reflect.DeepEqual(dup.AnnotationFiles, want) {
		t.Errorf("got annotation files %v, want %v", dup.AnnotationFiles, want)
	}

	// A name listed twice by the same file counts as well.
	r = make(FileNameRegistry)
	r.Add("a_train.json", []string{"1.jpg", "1.jpg"})
	if len(r.Duplicates()) != 1 {
		t.Error("expected a duplicate within one file")
	}

	r = make(FileNameRegistry)
	r.Add("a_train.json", []string{"1.jpg"})
	r.Add("b_train.json", []string{"2.jpg"})
	if err := r.CheckDuplicates(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestCheckMissingImages(t *testing.T) {
	available := nameSet("a.jpg", "b.jpg")
	if err := CheckMissingImages("x.json", []string{"a.jpg", "b.jpg"}, available); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err := CheckMissingImages("x.json", []string{"a.jpg", "missing.jpg"}, available)
	var missing *MissingImagesError
	if !errors.As(err, &missing) {
		t.Fatalf("expected a MissingImagesError, got %v", err)
	}
	if want := []string{"missing.jpg"}; !reflect.DeepEqual(missing.Missing, want) {
		t.Errorf("got %v, want %v", missing.Missing, want)
	}
}

func TestCheckOutputPaths(t *testing.T) {
	var records []Record
	for _, src := range []struct {
		path string
		p    Partition
	}{{"/in/a.jpg", Train}, {"/in/a.png", Validation}, {"/in/b.jpg", Train}} {
		r, err := NewRecord(SourceImage{ImagePath: src.path, Width: 1, Height: 1}, src.p, nil)
		if err != nil {
			t.Fatal(err)
		}
		records = append(records, r)
	}
	if err := CheckOutputPaths(records); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	r, err := NewRecord(SourceImage{ImagePath: "/in/b.png", Width: 1, Height: 1}, Train, nil)
	if err != nil {
		t.Fatal(err)
	}
	err = CheckOutputPaths(append(records, r))
	var collision *OutputCollisionError
	if !errors.As(err, &collision) {
		t.Fatalf("expected an OutputCollisionError, got %v", err)
	}
	if collision.Images != [2]string{"/in/b.jpg", "/in/b.png"} {
		t.Errorf("got images %v", collision.Images)
	}
}

func TestCompareConverted(t *testing.T) {
	d := CompareConverted([]string{"a.jpg", "gone.jpg"}, nameSet("a.jpg", "extra.png"))
	want := Discrepancy{Missing: []string{"gone.jpg"}, Extra: []string{"extra.png"}}
	if !reflect.DeepEqual(d, want) {
		t.Errorf("got %+v, want %+v", d, want)
	}

	if d := CompareConverted([]string{"a.jpg"}, nameSet("a.jpg")); !d.Empty() {
		t.Errorf("expected no discrepancy, got %+v", d)
	}
}
