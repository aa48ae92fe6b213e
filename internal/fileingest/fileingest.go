// Package fileingest discovers translatable documents on the local
// filesystem for batch CLI runs.
package fileingest

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// FileMeta holds metadata about a discovered document.
type FileMeta struct {
	Path    string
	Name    string
	Size    int64
	ModTime time.Time
}

// DiscoverDocuments walks rootDir and returns every file whose extension is
// in exts (lower-case, dot included), sorted by path. Files that cannot be
// stat'd are skipped.
func DiscoverDocuments(rootDir string, exts []string) ([]FileMeta, error) {
	allowed := make(map[string]bool, len(exts))
	for _, ext := range exts {
		allowed[strings.ToLower(ext)] = true
	}

	var files []FileMeta
	err := filepath.WalkDir(rootDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if !allowed[strings.ToLower(filepath.Ext(d.Name()))] {
			return nil
		}
		meta, metaErr := ExtractFileMeta(path)
		if metaErr != nil {
			return nil
		}
		files = append(files, meta)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

// ExtractFileMeta stats one file into a FileMeta.
func ExtractFileMeta(path string) (FileMeta, error) {
	info, err := os.Stat(path)
	if err != nil {
		return FileMeta{}, err
	}
	return FileMeta{
		Path:    path,
		Name:    info.Name(),
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}, nil
}
