package tail

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Op describes what happened to the watched file.
type Op int

const (
	OpWrite  Op = iota // content changed
	OpCreate           // file (re)appeared
	OpRotate           // file renamed away or removed
)

func (o Op) String() string {
	switch o {
	case OpWrite:
		return "write"
	case OpCreate:
		return "create"
	case OpRotate:
		return "rotate"
	}
	return "unknown"
}

// Change is a single notification about the watched file.
type Change struct {
	Op   Op
	Path string
}

// Watcher produces change notifications for one file. Close releases the
// underlying resources and closes both channels.
type Watcher interface {
	Events() <-chan Change
	Errors() <-chan error
	Close() error
}

// WatcherFactory creates a Watcher for path.
type WatcherFactory func(path string) (Watcher, error)

// NativeWatcher returns a factory that uses the OS file notification
// facility, falling back to polling at interval if it cannot be created.
func NativeWatcher(interval time.Duration) WatcherFactory {
	return func(path string) (Watcher, error) {
		w, err := newFSWatcher(path)
		if err != nil {
			log.Printf("[tail] native watcher unavailable (%v), polling every %s", err, interval)
			return newPollWatcher(path, interval), nil
		}
		return w, nil
	}
}

// PollingWatcher returns a factory for the portable stat-and-compare watcher.
func PollingWatcher(interval time.Duration) WatcherFactory {
	return func(path string) (Watcher, error) {
		return newPollWatcher(path, interval), nil
	}
}

// fsWatcher watches the parent directory so that renames and re-creation
// of the file are observed, and filters events down to the file's name.
type fsWatcher struct {
	w      *fsnotify.Watcher
	name   string
	events chan Change
	errors chan error
	done   chan struct{}
}

func newFSWatcher(path string) (*fsWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	dir := filepath.Dir(path)
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, fmt.Errorf("watching %s: %w", dir, err)
	}

	fw := &fsWatcher{
		w:      w,
		name:   filepath.Clean(path),
		events: make(chan Change, 64),
		errors: make(chan error, 8),
		done:   make(chan struct{}),
	}
	go fw.loop()
	return fw, nil
}

func (fw *fsWatcher) loop() {
	defer close(fw.events)
	defer close(fw.errors)

	for {
		select {
		case ev, ok := <-fw.w.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != fw.name {
				continue
			}
			var op Op
			switch {
			case ev.Has(fsnotify.Rename), ev.Has(fsnotify.Remove):
				op = OpRotate
			case ev.Has(fsnotify.Create):
				op = OpCreate
			case ev.Has(fsnotify.Write):
				op = OpWrite
			default:
				continue
			}
			select {
			case fw.events <- Change{Op: op, Path: fw.name}:
			case <-fw.done:
				return
			}
		case err, ok := <-fw.w.Errors:
			if !ok {
				return
			}
			select {
			case fw.errors <- err:
			default:
			}
		case <-fw.done:
			return
		}
	}
}

func (fw *fsWatcher) Events() <-chan Change { return fw.events }
func (fw *fsWatcher) Errors() <-chan error  { return fw.errors }

func (fw *fsWatcher) Close() error {
	select {
	case <-fw.done:
		return nil
	default:
	}
	close(fw.done)
	return fw.w.Close()
}

// pollWatcher compares size and modification time on a fixed interval.
// It is used where no native facility exists.
type pollWatcher struct {
	path     string
	interval time.Duration
	events   chan Change
	errors   chan error
	done     chan struct{}
}

type fileStamp struct {
	exists  bool
	size    int64
	modTime time.Time
	info    os.FileInfo
}

func stampOf(path string) fileStamp {
	info, err := os.Stat(path)
	if err != nil {
		return fileStamp{}
	}
	return fileStamp{exists: true, size: info.Size(), modTime: info.ModTime(), info: info}
}

func newPollWatcher(path string, interval time.Duration) *pollWatcher {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	pw := &pollWatcher{
		path:     path,
		interval: interval,
		events:   make(chan Change, 16),
		errors:   make(chan error),
		done:     make(chan struct{}),
	}
	go pw.loop(stampOf(path))
	return pw
}

func (pw *pollWatcher) loop(last fileStamp) {
	defer close(pw.events)
	defer close(pw.errors)

	ticker := time.NewTicker(pw.interval)
	defer ticker.Stop()

	for {
		select {
		case <-pw.done:
			return
		case <-ticker.C:
		}

		cur := stampOf(pw.path)
		var ops []Op
		switch {
		case last.exists && !cur.exists:
			ops = []Op{OpRotate}
		case !last.exists && cur.exists:
			ops = []Op{OpCreate, OpWrite}
		case cur.exists && (cur.size != last.size || !cur.modTime.Equal(last.modTime) || !os.SameFile(cur.info, last.info)):
			// The tailer notices a replaced file itself on the next read.
			ops = []Op{OpWrite}
		}
		last = cur

		for _, op := range ops {
			select {
			case pw.events <- Change{Op: op, Path: pw.path}:
			case <-pw.done:
				return
			}
		}
	}
}

func (pw *pollWatcher) Events() <-chan Change { return pw.events }
func (pw *pollWatcher) Errors() <-chan error  { return pw.errors }

func (pw *pollWatcher) Close() error {
	select {
	case <-pw.done:
	default:
		close(pw.done)
	}
	return nil
}
