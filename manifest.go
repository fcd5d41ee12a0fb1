package cocoyolo

// The YOLO dataset manifest (data.yaml).

import (
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// ManifestFile is the manifest file name in the output root.
const ManifestFile = "data.yaml"

// Manifest describes the dataset for YOLO training. Field order matches the sorted key order of
// the original tooling.
type Manifest struct {
	Names []string `yaml:"names"`
	NC    int      `yaml:"nc"`
	Test  string   `yaml:"test"`
	Train string   `yaml:"train"`
	Val   string   `yaml:"val"`
}

// NewManifest returns the manifest for the given class names. Without a test partition, as in
// autosplit mode, test points at the validation images.
func NewManifest(names []string, autosplit bool) Manifest {
	m := Manifest{
		Names: names,
		NC:    len(names),
		Test:  Test.String() + "/images",
		Train: Train.String() + "/images",
		Val:   Validation.String() + "/images",
	}
	if autosplit {
		m.Test = m.Val
	}
	return m
}

// Encode serializes m as block style YAML. An empty names list is written as "names: []", the
// only way YAML can express an empty sequence.
func (m Manifest) Encode() ([]byte, error) {
	return yaml.Marshal(m)
}

// WriteManifest writes m to path.
func WriteManifest(fs afero.Fs, path string, m Manifest) error {
	enc, err := m.Encode()
	if err != nil {
		return errors.Wrap(err, "failed to encode the manifest")
	}
	if err := afero.WriteFile(fs, path, enc, 0644); err != nil {
		return errors.Wrapf(err, "cannot write file %q", path)
	}
	return nil
}
