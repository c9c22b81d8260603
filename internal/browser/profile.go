package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ErrProfileLocked reports that the on-disk browser profile is held by
// another live browser process. Two processes sharing one profile
// directory is invalid; the condition must be resolved externally
// (close the other browser, or point this one at a different profile).
var ErrProfileLocked = errors.New("browser profile locked by another process")

// singletonLock is the lock marker Chromium places in a profile
// directory while a process owns it.
const singletonLock = "SingletonLock"

// metaFile holds evidencer's own session metadata inside the profile
// directory. Chromium ignores files it does not recognize.
const metaFile = "evidencer-session.json"

// Profile is the persistent session store: a Chromium user-data
// directory holding cookies and local storage, plus a small metadata
// sidecar. An authenticated console session survives process restarts
// through it.
type Profile struct {
	Dir string
}

// SessionMeta is the persisted session metadata.
type SessionMeta struct {
	ID         string    `json:"id"`
	URL        string    `json:"url,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	LastActive time.Time `json:"last_active"`
}

// OpenProfile ensures the profile directory exists and returns it.
func OpenProfile(dir string) (*Profile, error) {
	if dir == "" {
		return nil, errors.New("profile directory required")
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create profile directory: %w", err)
	}
	return &Profile{Dir: dir}, nil
}

// Locked reports whether another browser process currently owns the
// profile. Chromium's lock marker is a symlink, so Lstat is required.
func (p *Profile) Locked() bool {
	_, err := os.Lstat(filepath.Join(p.Dir, singletonLock))
	return err == nil
}

// WaitUnlocked blocks until the profile lock is released or the context
// expires. It watches the directory rather than polling so release is
// observed promptly.
func (p *Profile) WaitUnlocked(ctx context.Context) error {
	if !p.Locked() {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch profile directory: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(p.Dir); err != nil {
		return fmt.Errorf("watch profile directory: %w", err)
	}

	// Re-check after the watch is installed; the lock may have been
	// released between Locked() and watcher.Add().
	if !p.Locked() {
		return nil
	}

	lockPath := filepath.Join(p.Dir, singletonLock)
	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %s", ErrProfileLocked, p.Dir)
		case ev, ok := <-watcher.Events:
			if !ok {
				return fmt.Errorf("%w: %s", ErrProfileLocked, p.Dir)
			}
			if ev.Name == lockPath && ev.Op.Has(fsnotify.Remove) {
				return nil
			}
		case <-watcher.Errors:
			if !p.Locked() {
				return nil
			}
		}
	}
}

// LoadMeta reads the persisted session metadata. A missing file returns
// an empty SessionMeta and no error.
func (p *Profile) LoadMeta() (SessionMeta, error) {
	var meta SessionMeta
	data, err := os.ReadFile(filepath.Join(p.Dir, metaFile))
	if err != nil {
		if os.IsNotExist(err) {
			return meta, nil
		}
		return meta, fmt.Errorf("read session metadata: %w", err)
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return meta, fmt.Errorf("decode session metadata: %w", err)
	}
	return meta, nil
}

// SaveMeta persists the session metadata. Written only at controlled
// points (browser shutdown or explicit persist), never concurrently
// with another writer.
func (p *Profile) SaveMeta(meta SessionMeta) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session metadata: %w", err)
	}
	return os.WriteFile(filepath.Join(p.Dir, metaFile), data, 0600)
}

// Reset deletes the profile directory entirely. The recovery path for a
// corrupted profile is delete-and-relaunch, never a partial merge.
func (p *Profile) Reset() error {
	if p.Locked() {
		return fmt.Errorf("%w: refusing to delete %s", ErrProfileLocked, p.Dir)
	}
	if err := os.RemoveAll(p.Dir); err != nil {
		return fmt.Errorf("reset profile: %w", err)
	}
	return os.MkdirAll(p.Dir, 0700)
}
