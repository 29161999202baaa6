package runner

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"
)

// ErrRunInProgress is returned when another run holds one of the directories.
var ErrRunInProgress = errors.New("a run is already in progress")

// dirLock records who holds a directory.
type dirLock struct {
	owner    string
	lockedAt time.Time
}

// dirLocks serializes operations per directory within this process.
type dirLocks struct {
	mu    sync.Mutex
	locks map[string]dirLock
}

func newDirLocks() *dirLocks {
	return &dirLocks{locks: make(map[string]dirLock)}
}

// acquire locks every dir for owner, or none of them. The returned function
// releases the locks.
func (dl *dirLocks) acquire(owner string, dirs ...string) (func(), error) {
	keys := make([]string, 0, len(dirs))
	for _, d := range dirs {
		keys = append(keys, lockKey(d))
	}

	dl.mu.Lock()
	defer dl.mu.Unlock()

	for i, k := range keys {
		if held, ok := dl.locks[k]; ok {
			return nil, fmt.Errorf("%w: %s is used by run %s since %s",
				ErrRunInProgress, dirs[i], held.owner, held.lockedAt.Format(time.RFC3339))
		}
	}

	now := time.Now()
	for _, k := range keys {
		dl.locks[k] = dirLock{owner: owner, lockedAt: now}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			dl.mu.Lock()
			defer dl.mu.Unlock()
			for _, k := range keys {
				if dl.locks[k].owner == owner {
					delete(dl.locks, k)
				}
			}
		})
	}, nil
}

// lockKey normalizes a directory so that different spellings of one path
// share a lock.
func lockKey(dir string) string {
	if abs, err := filepath.Abs(dir); err == nil {
		return abs
	}
	return filepath.Clean(dir)
}
