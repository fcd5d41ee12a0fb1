package cocoyolo

// YOLO segmentation label specific functionality.

import (
	"bufio"
	"io"
	"math"
	"path/filepath"
	"strconv"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

// normalize divides v by dim and rounds the result to 9 decimal digits.
func normalize(v float64, dim int) float64 {
	return math.Round(v/float64(dim)*1e9) / 1e9
}

// AppendLabelLine appends the YOLO segmentation line for one instance to dst, without the
// trailing newline: the class id followed by the polygon's x (divided by width) and y (divided by
// height) coordinates with 6 decimal digits.
func AppendLabelLine(dst []byte, classID int, polygon []float64, width, height int) []byte {
	dst = strconv.AppendInt(dst, int64(classID), 10)
	for i, v := range polygon {
		dim := width
		if i&1 == 1 {
			dim = height
		}
		dst = append(dst, ' ')
		dst = strconv.AppendFloat(dst, normalize(v, dim), 'f', 6, 64)
	}
	return dst
}

// WriteLabels writes one line per instance of r to w.
func WriteLabels(w io.Writer, r Record) error {
	bw := bufio.NewWriter(w)
	src := r.Source()
	var line []byte
	for i := 0; i < r.Len(); i++ {
		inst := r.Instance(i)
		line = AppendLabelLine(line[:0], inst.ClassID, inst.Polygon, src.Width, src.Height)
		line = append(line, '\n')
		if _, err := bw.Write(line); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// writeLabelFile writes the label file of r below root.
func writeLabelFile(fs afero.Fs, root string, r Record) (err error) {
	path := filepath.Join(root, r.LabelPath())
	f, err := fs.Create(path)
	if err != nil {
		return errors.Wrapf(err, "cannot create label file %q", path)
	}
	defer closeWithErrCheck(f, &err)

	if err := WriteLabels(f, r); err != nil {
		return errors.Wrapf(err, "cannot write label file %q", path)
	}
	return nil
}

// EmitRecord writes the label file of r and then copies its image, both below root. The
// partition directories must exist.
func EmitRecord(fs afero.Fs, root string, r Record, opts ImageOptions) error {
	if err := writeLabelFile(fs, root, r); err != nil {
		return err
	}
	return writeImage(fs, r.Source().ImagePath, filepath.Join(root, r.ImagePath()), opts)
}

// createPartitionDirs creates the images and labels directories of each partition below root.
func createPartitionDirs(fs afero.Fs, root string, partitions []Partition) error {
	for _, p := range partitions {
		for _, sub := range []string{"images", "labels"} {
			dir := filepath.Join(root, p.String(), sub)
			if err := fs.MkdirAll(dir, 0755); err != nil {
				return errors.Wrapf(err, "cannot create directory %q", dir)
			}
		}
	}
	return nil
}
