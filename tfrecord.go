package cocoyolo

// TFRecord export of the converted dataset, one file per partition.

import (
	"io"
	"path/filepath"
	"strings"

	"github.com/golang/protobuf/proto"
	"github.com/pkg/errors"
	"github.com/ryszard/tfutils/go/example"
	"github.com/ryszard/tfutils/go/tfrecord"
	"github.com/ryszard/tfutils/proto/tensorflow/core/example" // package tensorflow
	"github.com/spf13/afero"
)

// TFFeatureMap maps feature names to their values. Values must be convertible to
// tensorflow.Feature.
type TFFeatureMap map[string]interface{}

// toTFFeatures converts a record to the feature map of a tensorflow.Example. Polygon coordinates
// are normalized like the label files; image/object/polygon/len holds the number of values of
// each polygon in image/object/polygon/coords. Class labels are one-based (YOLO class id + 1),
// as 0 is the background class in TF object detection.
func toTFFeatures(fs afero.Fs, root string, r Record) (TFFeatureMap, error) {
	// Read the emitted image, which may have been resized.
	imgPath := filepath.Join(root, r.ImagePath())
	imgData, err := afero.ReadFile(fs, imgPath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read the image %q", imgPath)
	}
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(imgPath), "."))
	if ext == "jpg" {
		ext = "jpeg"
	}

	src := r.Source()
	f := make(TFFeatureMap, 12)
	f["image/height"] = src.Height
	f["image/width"] = src.Width
	f["image/filename"] = filepath.Base(src.ImagePath)
	f["image/source_id"] = src.ImagePath
	f["image/encoded"] = imgData
	f["image/format"] = ext

	// Prepare the per instance data.
	numInstances := r.Len()
	classes := make([]string, numInstances)
	classIDs := make([]int64, numInstances)
	lengths := make([]int64, numInstances)
	var coords []float32
	for i := 0; i < numInstances; i++ {
		inst := r.Instance(i)
		classes[i] = inst.ClassName
		classIDs[i] = int64(inst.ClassID + 1)
		lengths[i] = int64(len(inst.Polygon))
		for j, v := range inst.Polygon {
			dim := src.Width
			if j&1 == 1 {
				dim = src.Height
			}
			coords = append(coords, float32(normalize(v, dim)))
		}
	}
	f["image/object/class/text"] = classes
	f["image/object/class/label"] = classIDs
	f["image/object/polygon/len"] = lengths
	f["image/object/polygon/coords"] = coords

	return f, nil
}

// writeTFRecordExample serialises the example and writes it as a TFRecord to w.
func writeTFRecordExample(w io.Writer, e *tensorflow.Example) error {
	enc, err := proto.Marshal(e)
	if err != nil {
		return err
	}

	return tfrecord.Write(w, enc)
}

// WriteTFRecords writes one TFRecord file per partition, <root>/<partition>.tfrecord, with one
// example per record. The records must already have been emitted below root.
func WriteTFRecords(fs afero.Fs, root string, records []Record) (err error) {
	defer func() {
		if e := recover(); e != nil {
			err = errors.Errorf("conversion to TensorFlow Example failed: %v", e)
		}
	}()

	files := make(map[Partition]afero.File)
	defer func() {
		for _, f := range files {
			closeWithErrCheck(f, &err)
		}
	}()

	for _, r := range records {
		f, ok := files[r.Partition()]
		if !ok {
			path := filepath.Join(root, r.Partition().String()+".tfrecord")
			if f, err = fs.Create(path); err != nil {
				return errors.Wrapf(err, "failed to create %q", path)
			}
			files[r.Partition()] = f
		}

		features, err := toTFFeatures(fs, root, r)
		if err != nil {
			return err
		}
		if err := writeTFRecordExample(f, example.New(features)); err != nil {
			return errors.Wrapf(err, "failed to write the example for %q", r.Source().ImagePath)
		}
	}

	return nil
}
