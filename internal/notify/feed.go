package notify

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"github.com/your-org/facewatch/internal/models"
)

const DefaultFeedCapacity = 100

// Feed is the bounded, newest-first notification list the dashboard shows.
// The file is the source of truth so the monitor and dashboard processes
// see each other's writes. Every read-modify-write holds an advisory lock on
// a sidecar <path>.lock file, so a Clear in one process cannot be undone by
// an Add in another.
type Feed struct {
	mu       sync.Mutex
	lock     *flock.Flock
	path     string
	capacity int
}

func NewFeed(path string, capacity int) (*Feed, error) {
	if capacity <= 0 {
		capacity = DefaultFeedCapacity
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create feed dir: %w", err)
	}
	return &Feed{lock: flock.New(path + ".lock"), path: path, capacity: capacity}, nil
}

// locked runs fn holding the file lock. mu guards the shared flock handle.
func (f *Feed) locked(shared bool, fn func() error) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	lock := f.lock.Lock
	if shared {
		lock = f.lock.RLock
	}
	if err := lock(); err != nil {
		return fmt.Errorf("lock feed: %w", err)
	}
	defer func() { _ = f.lock.Unlock() }()
	return fn()
}

func (f *Feed) Add(n *models.Notification) error {
	return f.locked(false, func() error {
		items, err := f.load()
		if err != nil {
			return err
		}
		items = append([]models.Notification{*n}, items...)
		if len(items) > f.capacity {
			items = items[:f.capacity]
		}
		return f.write(items)
	})
}

// Recent returns up to limit entries, newest first. limit <= 0 means all.
func (f *Feed) Recent(limit int) ([]models.Notification, error) {
	var items []models.Notification
	err := f.locked(true, func() error {
		var err error
		items, err = f.load()
		return err
	})
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (f *Feed) Clear() error {
	return f.locked(false, func() error {
		return f.write([]models.Notification{})
	})
}

func (f *Feed) load() ([]models.Notification, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []models.Notification{}, nil
		}
		return nil, fmt.Errorf("read feed: %w", err)
	}
	if len(data) == 0 {
		return []models.Notification{}, nil
	}
	var items []models.Notification
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", f.path, err)
	}
	return items, nil
}

func (f *Feed) write(items []models.Notification) error {
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal feed: %w", err)
	}
	tmp := f.path + "." + uuid.NewString() + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write feed: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace feed: %w", err)
	}
	return nil
}
