package textpack

import (
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Candidate is a file found under root.  Rel is slash-separated and is
// what gets filtered and written into records; Abs is what gets read.
type Candidate struct {
	Rel  string
	Abs  string
	Size int64
}

// SizeMB returns the candidate's size in megabytes.
func (c Candidate) SizeMB() float64 {
	return float64(c.Size) / miB
}

// Enumerate walks root and returns every regular file below it, in
// lexical order within each directory.  All directories are descended;
// filtering is the caller's job.  Symlinked directories are not
// followed.  A symlink to a regular file is returned with the target's
// size.  Unreadable subdirectories are logged and skipped; only an
// unusable root is an error.
func Enumerate(root string) (candidates []Candidate, err error) {
	absroot, err := filepath.Abs(root)
	if err != nil {
		return nil, errors.Wrapf(err, "resolve root %s", root)
	}
	// WalkDir does not follow a symlinked root, so walk its target
	absroot, err = filepath.EvalSymlinks(absroot)
	if err != nil {
		return nil, errors.Wrapf(err, "resolve root %s", root)
	}
	info, err := os.Stat(absroot)
	if err != nil {
		return nil, errors.Wrapf(err, "stat root %s", root)
	}
	if !info.IsDir() {
		return nil, errors.Errorf("root is not a directory: %s", root)
	}

	err = filepath.WalkDir(absroot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == absroot {
				return err
			}
			log.Errorf("skipping %s: %v", path, err)
			return nil
		}
		if d.IsDir() {
			return nil
		}

		var size int64
		switch {
		case d.Type().IsRegular():
			info, err := d.Info()
			if err != nil {
				log.Errorf("skipping %s: %v", path, err)
				return nil
			}
			size = info.Size()
		case d.Type()&fs.ModeSymlink != 0:
			info, err := os.Stat(path)
			if err != nil {
				log.Errorf("skipping dangling symlink %s: %v", path, err)
				return nil
			}
			if !info.Mode().IsRegular() {
				log.Debugf("not following symlink %s", path)
				return nil
			}
			size = info.Size()
		default:
			log.Debugf("skipping special file %s", path)
			return nil
		}

		rel, err := filepath.Rel(absroot, path)
		if err != nil {
			log.Errorf("skipping %s: %v", path, err)
			return nil
		}
		candidates = append(candidates, Candidate{
			Rel:  filepath.ToSlash(rel),
			Abs:  path,
			Size: size,
		})
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "walk %s", root)
	}
	return
}
