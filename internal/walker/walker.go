package walker

import (
	"io/fs"
	"path/filepath"
	"strings"
)

// FileInfo holds metadata about a discovered document.
type FileInfo struct {
	Path string
	Name string
	Size int64
}

// maxFileSize is the largest document we'll consider (100 MB). Scanned PDFs
// run large, so the cap is generous.
const maxFileSize = 100 << 20

// Walk traverses the directory tree rooted at root and sends discovered PDF
// files on the returned channel in a deterministic order. Unreadable entries
// and symlinks are skipped; the batch is best-effort by design.
func Walk(root string) (<-chan FileInfo, <-chan error) {
	files := make(chan FileInfo, 16)
	errs := make(chan error, 1)

	go func() {
		defer close(files)
		defer close(errs)

		absRoot, err := filepath.Abs(root)
		if err != nil {
			errs <- err
			return
		}

		err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil // skip unreadable entries, keep walking
			}
			if d.IsDir() {
				if strings.HasPrefix(d.Name(), ".") && path != absRoot {
					return filepath.SkipDir
				}
				return nil
			}
			if d.Type()&fs.ModeSymlink != 0 {
				return nil
			}
			if !strings.EqualFold(filepath.Ext(path), ".pdf") {
				return nil
			}

			info, err := d.Info()
			if err != nil {
				return nil
			}
			if info.Size() > maxFileSize || info.Size() == 0 {
				return nil
			}

			files <- FileInfo{
				Path: path,
				Name: d.Name(),
				Size: info.Size(),
			}
			return nil
		})
		if err != nil {
			errs <- err
		}
	}()

	return files, errs
}
