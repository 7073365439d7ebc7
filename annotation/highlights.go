package annotation

import (
	"context"
	"encoding/json"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/autohighlight/autohighlight/dataset"
	"github.com/gofrs/flock"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// HighlightFile is the JSON file of submitted highlights. Writers from several processes are
// serialized with a lock file next to it.
type HighlightFile struct {
	Path string
}

// Load reads the file. A missing file holds no highlights.
func (f *HighlightFile) Load() (dataset.Highlights, error) {
	data, err := os.ReadFile(f.Path)
	if errors.Is(err, os.ErrNotExist) {
		return dataset.Highlights{}, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", f.Path)
	}
	return dataset.ParseHighlights(data)
}

// Merge adds update to the file: ids in update replace their previous highlights, the others
// are kept. The read-modify-write runs under the file lock.
func (f *HighlightFile) Merge(ctx context.Context, update dataset.Highlights) error {
	var mergeErr error
	lockErr := execOnFileLock(ctx, f.Path+".lock", func() {
		var existing dataset.Highlights
		existing, mergeErr = f.Load()
		if mergeErr != nil {
			return
		}
		for id, indices := range update {
			existing[id] = indices
		}
		mergeErr = f.write(existing)
	})
	if mergeErr != nil {
		return mergeErr
	}
	return errors.WithMessagef(lockErr, "while locking highlights file %q", f.Path)
}

// write replaces the file atomically.
func (f *HighlightFile) write(h dataset.Highlights) error {
	data, err := json.MarshalIndent(h, "", "    ")
	if err != nil {
		return errors.Wrap(err, "failed to encode highlights")
	}
	tmp, err := os.CreateTemp(filepath.Dir(f.Path), filepath.Base(f.Path)+".*.tmp")
	if err != nil {
		return errors.Wrapf(err, "failed to create temporary file for %s", f.Path)
	}
	if _, err = tmp.Write(data); err == nil {
		err = tmp.Close()
	} else {
		_ = tmp.Close()
	}
	if err == nil {
		err = os.Rename(tmp.Name(), f.Path)
	}
	if err != nil {
		_ = os.Remove(tmp.Name())
		return errors.Wrapf(err, "failed to write %s", f.Path)
	}
	return nil
}

// execOnFileLock locks lockPath (creating it if needed), runs fn and unlocks. While the lock is
// held elsewhere it polls every 50 to 100 milliseconds until ctx is done.
func execOnFileLock(ctx context.Context, lockPath string, fn func()) (err error) {
	fileLock := flock.New(lockPath)
	for {
		locked, err := fileLock.TryLock()
		if err != nil {
			return errors.Wrapf(err, "while trying to lock %q", lockPath)
		}
		if locked {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Millisecond * time.Duration(50+rand.Intn(50))):
		}
	}

	defer func() {
		unlockErr := fileLock.Unlock()
		if unlockErr != nil {
			if err == nil {
				err = errors.Wrapf(unlockErr, "unlocking file %q", lockPath)
			} else {
				klog.Errorf("Error unlocking file %q: %v", lockPath, unlockErr)
			}
		}
	}()
	fn()
	return
}
