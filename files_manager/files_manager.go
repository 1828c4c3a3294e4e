package files_manager

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"tiffmill/contracts"
)

type ProcessingUnit = contracts.ProcessingUnit

// CheckProvidedDirs validates the input/output roots before any work
// starts. The output root is created when missing.
func CheckProvidedDirs(inputRoot string, outputRoot string) error {
	if inputRoot == "" {
		return fmt.Errorf("input directory required")
	}
	if stat, err := os.Stat(inputRoot); err != nil || !stat.IsDir() {
		return fmt.Errorf("input directory does not exist or is not a directory: %s", inputRoot)
	}
	if outputRoot == "" {
		return fmt.Errorf("output directory required")
	}
	if err := os.MkdirAll(outputRoot, 0o755); err != nil {
		return fmt.Errorf("cannot create output directory %s: %w", outputRoot, err)
	}
	return nil
}

// FindUnits walks the input root for directories literally named "TIFF"
// (any case). Each TIFF directory marks its parent as one processing unit.
// A TIFF directory at the root itself makes the root a unit of its own
// base name. Units come back sorted by name; units whose TIFF directory
// holds no TIFF files are dropped.
func FindUnits(inputRoot string) ([]ProcessingUnit, error) {
	var units []ProcessingUnit

	err := filepath.WalkDir(inputRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() || !strings.EqualFold(d.Name(), "TIFF") {
			return nil
		}
		parent := filepath.Dir(path)
		files, size, lerr := ListTIFFFiles(path)
		if lerr != nil || len(files) == 0 {
			// an unreadable or empty TIFF dir is not a unit; the rest of
			// the tree is still scanned
			return filepath.SkipDir
		}
		units = append(units, ProcessingUnit{
			Name:          filepath.Base(filepath.Clean(parent)),
			Path:          parent,
			TIFFDir:       path,
			TIFFFiles:     files,
			TIFFFilesSize: size,
		})
		return filepath.SkipDir
	})
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", inputRoot, err)
	}

	sort.Slice(units, func(i, j int) bool { return units[i].Name < units[j].Name })
	return units, nil
}

// ListTIFFFiles returns the .tif/.tiff files directly inside dir, sorted by
// lowercased name so page order is stable regardless of what the
// filesystem returns. AppleDouble droppings ("._") are ignored.
func ListTIFFFiles(dir string) ([]string, int64, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, 0, err
	}
	files := make([]string, 0, len(entries))
	var size int64
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), "._") {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".tiff" && ext != ".tif" {
			continue
		}
		files = append(files, filepath.Join(dir, entry.Name()))
		if info, err := entry.Info(); err == nil {
			size += info.Size()
		}
	}
	sort.Slice(files, func(i, j int) bool {
		return strings.ToLower(filepath.Base(files[i])) < strings.ToLower(filepath.Base(files[j]))
	})
	return files, size, nil
}

// EnsureUnitDir creates the output directory for one unit and returns it.
func EnsureUnitDir(outputRoot string, unit ProcessingUnit) (string, error) {
	dir := filepath.Join(outputRoot, unit.Name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating unit output dir %s: %w", dir, err)
	}
	return dir, nil
}

// ShouldWrite applies the overwrite policy: when overwrite is off, an
// existing output means the conversion is skipped. The parent directory is
// created as a side effect.
func ShouldWrite(outputPath string, overwrite bool) (bool, error) {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return false, fmt.Errorf("creating output dir for %s: %w", outputPath, err)
	}
	if _, err := os.Stat(outputPath); err == nil && !overwrite {
		return false, nil
	}
	return true, nil
}

// BaseName strips the directory and extension from a path.
func BaseName(path string) string {
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}
