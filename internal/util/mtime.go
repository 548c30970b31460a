package util

import (
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// LatestMtime reports the freshness of a save directory: the maximum
// modification time of any regular file under dir. A directory with no files
// falls back to its own modification time so freshness is never understated;
// a missing directory reports the zero time.
func LatestMtime(dir string) (time.Time, error) {
	stat, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}

	var latest time.Time
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if info.ModTime().After(latest) {
			latest = info.ModTime()
		}
		return nil
	})
	if err != nil {
		return time.Time{}, err
	}
	if latest.IsZero() {
		return stat.ModTime(), nil
	}
	return latest, nil
}
