package cocoyolo

import (
	"testing"

	"github.com/spf13/afero"
)

func TestToTFFeatures(t *testing.T) {
	fs := afero.NewMemMapFs()
	r, err := NewRecord(SourceImage{ImagePath: "/in/a.JPG", Width: 10, Height: 20}, Validation,
		[]Instance{{ClassID: 1, ClassName: "dog", Polygon: square}})
	if err != nil {
		t.Fatal(err)
	}
	if err := afero.WriteFile(fs, "/out/validation/images/a.JPG", []byte("img"), 0644); err != nil {
		t.Fatal(err)
	}

	f, err := toTFFeatures(fs, "/out", r)
	if err != nil {
		t.Fatal(err)
	}
	if f["image/format"] != "jpeg" {
		t.Errorf("got format %v", f["image/format"])
	}
	if string(f["image/encoded"].([]byte)) != "img" {
		t.Errorf("got encoded %v", f["image/encoded"])
	}
	if got := f["image/object/class/label"].([]int64); len(got) != 1 || got[0] != 2 {
		t.Errorf("got labels %v", got)
	}
	if got := f["image/object/polygon/len"].([]int64); len(got) != 1 || got[0] != 8 {
		t.Errorf("got lengths %v", got)
	}
	coords := f["image/object/polygon/coords"].([]float32)
	want := []float32{0, 0, 1, 0, 1, 0.5, 0, 0.5}
	for i := range want {
		if coords[i] != want[i] {
			t.Errorf("coordinate %d: got %v, want %v", i, coords[i], want[i])
		}
	}
}

func TestWriteTFRecords(t *testing.T) {
	fs := afero.NewMemMapFs()
	var records []Record
	for i, p := range []Partition{Train, Train, Test} {
		name := string(rune('a'+i)) + ".png"
		r, err := NewRecord(SourceImage{ImagePath: "/in/" + name, Width: 10, Height: 10}, p,
			[]Instance{{ClassID: 0, ClassName: "car", Polygon: square}})
		if err != nil {
			t.Fatal(err)
		}
		if err := afero.WriteFile(fs, "/out/"+r.ImagePath(), []byte("img"), 0644); err != nil {
			t.Fatal(err)
		}
		records = append(records, r)
	}

	if err := WriteTFRecords(fs, "/out", records); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"train.tfrecord", "test.tfrecord"} {
		info, err := fs.Stat("/out/" + name)
		if err != nil {
			t.Fatal(err)
		}
		if info.Size() == 0 {
			t.Errorf("%s is empty", name)
		}
	}
	if ok, _ := afero.Exists(fs, "/out/validation.tfrecord"); ok {
		t.Error("a file was written for an empty partition")
	}

	// The image must have been emitted first.
	if err := WriteTFRecords(afero.NewMemMapFs(), "/out", records); err == nil {
		t.Error("expected an error for a missing image")
	}
}
