package cocoyolo

import (
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

// filesByExtInDir returns the names of all regular files with file extension ext found directly
// in directory dirPath, sorted by name. All files are returned if ext is empty. The extension
// match is case insensitive.
func filesByExtInDir(fs afero.Fs, dirPath, ext string) ([]string, error) {
	infos, err := afero.ReadDir(fs, dirPath)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read directory %q", dirPath)
	}

	ext = strings.ToLower(ext)
	names := make([]string, 0, len(infos))
	for _, info := range infos {
		// Must be a regular file or a symlink and have the requested extension.
		if !info.Mode().IsRegular() && info.Mode()&os.ModeSymlink == 0 {
			continue
		}
		if !strings.HasSuffix(strings.ToLower(info.Name()), ext) {
			continue
		}
		names = append(names, info.Name())
	}
	sort.Strings(names)

	return names, nil
}

// splitName splits a file name (or path) into its base name without extension and the
// extension including the dot.
func splitName(path string) (baseNoExt, ext string) {
	file := filepath.Base(path)
	ext = filepath.Ext(file)
	return file[0 : len(file)-len(ext)], ext
}

// isDir reports whether path exists in fs and is a directory.
func isDir(fs afero.Fs, path string) bool {
	ok, err := afero.DirExists(fs, path)
	return err == nil && ok
}

// copyFile copies src to dst byte for byte, replacing dst if it exists.
func copyFile(fs afero.Fs, src, dst string) (err error) {
	in, err := fs.Open(src)
	if err != nil {
		return errors.Wrapf(err, "cannot open %q", src)
	}
	defer closeWithErrCheck(in, &err)

	out, err := fs.Create(dst)
	if err != nil {
		return errors.Wrapf(err, "cannot create %q", dst)
	}
	defer closeWithErrCheck(out, &err)

	if _, err := io.Copy(out, in); err != nil {
		return errors.Wrapf(err, "failed to copy %q to %q", src, dst)
	}

	return nil
}

// isWithin reports whether path is dir or lies below it. Both must be clean absolute paths.
func isWithin(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// sortedKeys returns the keys of set in ascending order.
func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// closeWithErrCheck calls c.Close(). If it returns an error, and (*e == nil), e is set to that
// error.
func closeWithErrCheck(c io.Closer, e *error) {
	err := c.Close()
	if err != nil && *e == nil {
		*e = err
	}
}
