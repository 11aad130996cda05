package file

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"bitcaskd/internal/logging"
)

var log = logging.For("util/file")

// EnsureDir makes sure dir exists, creating it (and any parents) if not. If
// clean is true and dir already existed, every entry under it is removed
// first, leaving dir itself in place.
func EnsureDir(dir string, clean bool) error {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		err = os.MkdirAll(dir, 0755)
		if err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
		log.WithField("dir", dir).Info("directory created")
		return nil
	} else if err != nil {
		return fmt.Errorf("failed to stat directory: %w", err)
	} else if !info.IsDir() {
		return fmt.Errorf("path exists but is not a directory: %s", dir)
	}

	log.WithFields(map[string]interface{}{"dir": dir, "clean": clean}).Debug("directory already exists")
	if clean {
		err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if path == dir {
				return nil
			}

			if err != nil {
				log.WithError(err).WithField("path", path).Error("walk failed")
				return err
			}

			if d.IsDir() {
				err = os.RemoveAll(path)
				if err != nil {
					log.WithError(err).WithField("path", path).Error("remove all failed")
					return err
				}
				// Already removed with its contents; do not descend into it.
				return filepath.SkipDir
			}

			err = os.Remove(path)
			if err != nil {
				log.WithError(err).WithField("path", path).Error("remove failed")
			}
			return err
		})
		if err != nil {
			return fmt.Errorf("walk dir error: %s", err.Error())
		}
	}

	return nil
}
