package cocoyolo

// The conversion pipeline from a COCO dataset to a YOLO segmentation dataset.

import (
	"path/filepath"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

// Config holds the conversion options.
type Config struct {
	COCODataset  string             `mapstructure:"coco_dataset"`   // Input root.
	YOLODataset  string             `mapstructure:"yolo_dataset"`   // Output root.
	PrintInfo    bool               `mapstructure:"print_info"`     // Log per file and record details.
	Autosplit    bool               `mapstructure:"autosplit"`      // Random train/validation split.
	PercentVal   float64            `mapstructure:"percent_val"`    // Validation share in autosplit mode.
	Lang         Lang               `mapstructure:"lang"`           // Console message language.
	Seed         int64              `mapstructure:"seed"`           // Autosplit seed; 0 uses the clock.
	MultiPolygon MultiPolygonPolicy `mapstructure:"multipolygon"`   // Multi-polygon object handling.
	ImageMaxSide int                `mapstructure:"image_max_side"` // See ImageOptions.MaxSide.
	JPEGQuality  int                `mapstructure:"jpeg_quality"`   // See ImageOptions.JPEGQuality.
	VerifyDims   bool               `mapstructure:"verify_dims"`    // Compare sizes with image headers.
	TFRecord     bool               `mapstructure:"tfrecord"`       // Also write TFRecord files.
	Workers      int                `mapstructure:"workers"`        // Concurrent record writers.
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() Config {
	return Config{
		COCODataset:  "COCO_dataset",
		YOLODataset:  "YOLO_dataset",
		PercentVal:   25,
		Lang:         English,
		MultiPolygon: RejectMultiPolygons,
		JPEGQuality:  95,
		Workers:      runtime.NumCPU(),
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.COCODataset == "" {
		return &ConfigError{Key: "coco_dataset", Reason: "must not be empty"}
	}
	out := filepath.Clean(c.YOLODataset)
	if c.YOLODataset == "" || out == "." || out == string(filepath.Separator) {
		return &ConfigError{Key: "yolo_dataset", Reason: "must name a directory to create"}
	}
	if out == filepath.Clean(c.COCODataset) {
		return &ConfigError{Key: "yolo_dataset", Reason: "must differ from coco_dataset"}
	}
	// The previous output tree is deleted on success, so it must not hold the input.
	absOut, errOut := filepath.Abs(out)
	absIn, errIn := filepath.Abs(c.COCODataset)
	if errOut != nil || errIn != nil {
		return &ConfigError{Key: "yolo_dataset", Reason: "cannot be resolved to an absolute path"}
	}
	if isWithin(absOut, absIn) {
		return &ConfigError{Key: "yolo_dataset", Reason: "must not contain coco_dataset"}
	}
	if isWithin(absIn, absOut) {
		return &ConfigError{Key: "yolo_dataset", Reason: "must not be inside coco_dataset"}
	}
	if c.PercentVal < 0 || c.PercentVal > 100 {
		return &ConfigError{Key: "percent_val", Reason: "must be between 0 and 100"}
	}
	if _, ok := ParseLang(string(c.Lang)); !ok {
		return &ConfigError{Key: "lang", Reason: "must be en or ru"}
	}
	switch c.MultiPolygon {
	case RejectMultiPolygons, LargestMultiPolygons:
	default:
		return &ConfigError{Key: "multipolygon", Reason: "must be reject or largest"}
	}
	if c.ImageMaxSide < 0 {
		return &ConfigError{Key: "image_max_side", Reason: "must not be negative"}
	}
	if c.JPEGQuality < 1 || c.JPEGQuality > 100 {
		return &ConfigError{Key: "jpeg_quality", Reason: "must be between 1 and 100"}
	}
	if c.Workers < 1 {
		return &ConfigError{Key: "workers", Reason: "must be at least 1"}
	}
	return nil
}

// Summary describes a finished conversion.
type Summary struct {
	Output          string
	AnnotationFiles int
	Records         int
	Instances       int
	Partitions      map[Partition]int // Records per partition.
	OrientedBoxes   int               // Rewritten OBB annotations.
	Classes         []string
	Discrepancy     Discrepancy
	DimMismatches   int
}

// cocoSource is a loaded annotation file.
type cocoSource struct {
	name      string // File name within the annotations directory.
	path      string
	file      *COCOFile
	partition Partition // Only set in manual mode.
}

// Convert converts the COCO dataset at cfg.COCODataset to a YOLO segmentation dataset at
// cfg.YOLODataset.
//
// All inputs are validated before the first annotation file is touched. The output is built in a
// staging directory next to the output root and moved into place only after every record was
// written, so a failed run leaves a previous output untouched.
func Convert(fs afero.Fs, cfg Config) (*Summary, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	lang := cfg.Lang

	imagesDir := filepath.Join(cfg.COCODataset, "images")
	annotationsDir := filepath.Join(cfg.COCODataset, "annotations")
	for _, p := range []struct{ kind, path string }{
		{"dataset", cfg.COCODataset}, {"images", imagesDir}, {"annotations", annotationsDir},
	} {
		if !isDir(fs, p.path) {
			return nil, &MissingPathError{Kind: p.kind, Path: p.path}
		}
	}

	sources, available, err := loadSources(fs, annotationsDir, imagesDir, cfg.Autosplit)
	if err != nil {
		return nil, err
	}

	var assigner Assigner = ManualAssigner{}
	if cfg.Autosplit {
		seed := cfg.Seed
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		assigner = NewAutosplitAssigner(cfg.PercentVal, seed)
	}

	summary := &Summary{
		Output:          cfg.YOLODataset,
		AnnotationFiles: len(sources),
		Partitions:      make(map[Partition]int),
	}

	// Normalize and convert each annotation file.
	categories := make(CategoryTable)
	var records []Record
	for _, src := range sources {
		log.Debug().Msg(lang.Msg(MsgProcessing, src.name))

		n, err := RewriteOrientedBoxesFile(fs, src.path)
		if err != nil {
			return nil, err
		}
		if n > 0 {
			log.Info().Msg(lang.Msg(MsgFoundOBB, n, src.path))
			if src.file, err = ReadCOCO(fs, src.path); err != nil {
				return nil, err
			}
			summary.OrientedBoxes += n
		}

		table, err := NewCategoryTable(src.path, src.file.Categories)
		if err != nil {
			return nil, err
		}
		log.Debug().Interface("classes", table).Msg(lang.Msg(MsgClasses, src.name))
		if err := categories.Merge(src.path, table); err != nil {
			return nil, err
		}

		fileRecords, err := BuildRecords(src.path, src.file, imagesDir, table, assigner,
			cfg.MultiPolygon)
		if err != nil {
			return nil, err
		}
		records = append(records, fileRecords...)
	}

	// Compare what was converted with the image directory.
	converted := make([]string, len(records))
	for i, r := range records {
		converted[i] = filepath.Base(r.Source().ImagePath)
		summary.Instances += r.Len()
		summary.Partitions[r.Partition()]++
	}
	summary.Records = len(records)
	if err := CheckOutputPaths(records); err != nil {
		return nil, err
	}
	summary.Discrepancy = CompareConverted(converted, available)
	if len(summary.Discrepancy.Missing) > 0 {
		log.Warn().Strs("files", summary.Discrepancy.Missing).Msg(lang.Msg(MsgMissingFiles, imagesDir))
	}
	if len(summary.Discrepancy.Extra) > 0 {
		log.Warn().Strs("files", summary.Discrepancy.Extra).Msg(lang.Msg(MsgExtraFiles, imagesDir))
	}
	if cfg.VerifyDims {
		summary.DimMismatches = verifyDims(fs, records)
	}

	names, gaps := categories.Names()
	if len(gaps) > 0 {
		log.Warn().Ints("ids", gaps).Msg("No category declared for some class ids, using placeholder names")
	}
	summary.Classes = names

	// Partition directories are created for every partition an input maps to, even empty ones.
	partitions := assigner.Partitions()
	if partitions == nil {
		partitions = sourcePartitions(sources)
	}

	err = writeStaged(fs, cfg.YOLODataset, func(root string) error {
		if err := createPartitionDirs(fs, root, partitions); err != nil {
			return err
		}
		manifest := NewManifest(names, cfg.Autosplit)
		if err := WriteManifest(fs, filepath.Join(root, ManifestFile), manifest); err != nil {
			return err
		}

		opts := ImageOptions{MaxSide: cfg.ImageMaxSide, JPEGQuality: cfg.JPEGQuality}
		if err := emitRecords(fs, root, records, opts, cfg.Workers); err != nil {
			return err
		}

		if cfg.TFRecord {
			return WriteTFRecords(fs, root, records)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().Msg(lang.Msg(MsgDone, cfg.YOLODataset))
	return summary, nil
}

// emitRecords writes every record below root on a pool of workers. Records never share an
// output file, so the result does not depend on the order the workers run in.
func emitRecords(fs afero.Fs, root string, records []Record, opts ImageOptions, workers int) error {
	pool, err := ants.NewPool(workers, ants.WithPreAlloc(false))
	if err != nil {
		return errors.Wrap(err, "failed to create the worker pool")
	}
	defer pool.Release()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	for _, r := range records {
		r := r
		wg.Add(1)
		err := pool.Submit(func() {
			defer wg.Done()
			if err := EmitRecord(fs, root, r, opts); err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
			}
		})
		if err != nil {
			wg.Done()
			wg.Wait()
			return errors.Wrap(err, "failed to submit a record")
		}
	}
	wg.Wait()

	return firstErr
}

// loadSources reads every annotation file and runs the integrity checks that must pass before
// any file is modified: no image is listed twice, every listed image exists, and in manual mode
// every file name carries a partition.
//
// Returns the sources in file name order and the set of file names in the images directory.
func loadSources(fs afero.Fs, annotationsDir, imagesDir string, autosplit bool) (
	[]*cocoSource, map[string]struct{}, error) {

	names, err := filesByExtInDir(fs, annotationsDir, ".json")
	if err != nil {
		return nil, nil, err
	}
	imageNames, err := filesByExtInDir(fs, imagesDir, "")
	if err != nil {
		return nil, nil, err
	}
	available := make(map[string]struct{}, len(imageNames))
	for _, name := range imageNames {
		available[name] = struct{}{}
	}

	registry := make(FileNameRegistry)
	sources := make([]*cocoSource, 0, len(names))
	for _, name := range names {
		src := &cocoSource{name: name, path: filepath.Join(annotationsDir, name)}
		if !autosplit {
			if src.partition, err = PartitionFromFileName(name); err != nil {
				return nil, nil, err
			}
		}
		if src.file, err = ReadCOCO(fs, src.path); err != nil {
			return nil, nil, err
		}
		registry.Add(name, src.file.FileNames())
		sources = append(sources, src)
	}

	if err := registry.CheckDuplicates(); err != nil {
		return nil, nil, err
	}
	for _, src := range sources {
		if err := CheckMissingImages(src.path, src.file.FileNames(), available); err != nil {
			return nil, nil, err
		}
	}

	return sources, available, nil
}

// sourcePartitions returns the distinct partitions of the sources, in enum order.
func sourcePartitions(sources []*cocoSource) []Partition {
	seen := make(map[Partition]bool)
	var partitions []Partition
	for _, src := range sources {
		if !seen[src.partition] {
			seen[src.partition] = true
			partitions = append(partitions, src.partition)
		}
	}
	sort.Slice(partitions, func(i, j int) bool { return partitions[i] < partitions[j] })
	return partitions
}

// writeStaged calls build with a fresh staging directory next to root and then replaces root
// with it. On failure the staging directory is removed and root is left as it was.
func writeStaged(fs afero.Fs, root string, build func(staging string) error) (err error) {
	root = filepath.Clean(root)
	parent, base := filepath.Dir(root), filepath.Base(root)
	if err := fs.MkdirAll(parent, 0755); err != nil {
		return errors.Wrapf(err, "cannot create directory %q", parent)
	}

	staging := filepath.Join(parent, "."+base+".staging-"+uuid.New().String())
	if err := fs.MkdirAll(staging, 0755); err != nil {
		return errors.Wrapf(err, "cannot create staging directory %q", staging)
	}
	defer func() {
		if err != nil {
			if rmErr := fs.RemoveAll(staging); rmErr != nil {
				log.Warn().Err(rmErr).Str("dir", staging).Msg("Failed to remove the staging directory")
			}
		}
	}()

	if err := build(staging); err != nil {
		return err
	}
	return swapDir(fs, staging, root)
}

// swapDir moves staging to root. An existing root is moved aside first and deleted once staging
// is in place; if the final move fails, it is restored.
func swapDir(fs afero.Fs, staging, root string) error {
	var old string
	exists, err := afero.Exists(fs, root)
	if err != nil {
		return errors.Wrapf(err, "cannot access %q", root)
	}
	if exists {
		old = filepath.Join(filepath.Dir(root), "."+filepath.Base(root)+".old-"+uuid.New().String())
		if err := fs.Rename(root, old); err != nil {
			return errors.Wrapf(err, "cannot move the previous output %q aside", root)
		}
	}

	if err := fs.Rename(staging, root); err != nil {
		if old != "" {
			if rbErr := fs.Rename(old, root); rbErr != nil {
				log.Error().Err(rbErr).Str("dir", old).Msg("Failed to restore the previous output")
			}
		}
		return errors.Wrapf(err, "cannot move %q to %q", staging, root)
	}

	if old != "" {
		if err := fs.RemoveAll(old); err != nil {
			log.Warn().Err(err).Str("dir", old).Msg("Failed to remove the previous output")
		}
	}
	return nil
}
