package tail

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"time"
)

// ErrUnavailable is returned by Start when the file cannot be tailed. It is
// not fatal: callers are expected to switch to another detection mechanism.
var ErrUnavailable = errors.New("log file unavailable")

var errAlreadyStarted = errors.New("tailer already started")

const DefaultRotationGrace = time.Second

type Status int

const (
	StatusStopped Status = iota
	StatusTailing
	StatusRotating
	StatusUnavailable
)

var statusNames = map[Status]string{
	StatusStopped:     "stopped",
	StatusTailing:     "tailing",
	StatusRotating:    "rotating",
	StatusUnavailable: "unavailable",
}

func (s Status) String() string {
	if n, ok := statusNames[s]; ok {
		return n
	}
	return "unknown"
}

func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// Position is the read offset into the file and the size last observed.
// Offset only decreases when a rotation resets it to zero.
type Position struct {
	Offset int64 `json:"offset"`
	Size   int64 `json:"size"`
}

type Options struct {
	// Watcher creates the change notifier. Defaults to PollingWatcher.
	Watcher WatcherFactory
	// RotationGrace is how long to wait for a rotated file to reappear.
	RotationGrace time.Duration
	// OnLine receives every complete line, in file order, without the
	// line terminator. It is called from the tailing goroutine.
	OnLine func(line string)
	// OnUnavailable is called once when the file disappears and does not
	// return within the grace interval. Tailing does not resume on its own.
	OnUnavailable func(path string)
}

// Tailer delivers complete lines appended to a single file. All reads
// happen on one goroutine, so byte ranges are never read concurrently.
type Tailer struct {
	opts Options

	mu     sync.Mutex // guards the fields below for outside readers
	path   string
	pos    Position
	status Status
	stop   chan struct{}
	done   chan struct{}

	// buf holds a trailing partial line and ident the file it was read
	// from; only the loop goroutine uses them.
	buf   []byte
	ident os.FileInfo
}

func New(opts Options) *Tailer {
	if opts.Watcher == nil {
		opts.Watcher = PollingWatcher(500 * time.Millisecond)
	}
	if opts.RotationGrace <= 0 {
		opts.RotationGrace = DefaultRotationGrace
	}
	if opts.OnLine == nil {
		opts.OnLine = func(string) {}
	}
	return &Tailer{opts: opts}
}

// Start begins tailing path from its current end. Content written before
// Start is never delivered. It returns an error wrapping ErrUnavailable if
// the file does not exist.
func (t *Tailer) Start(path string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stop != nil {
		select {
		case <-t.done:
			// Previous run ended on its own (file unavailable).
			t.stop, t.done = nil, nil
		default:
			return errAlreadyStarted
		}
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrUnavailable, path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%w: %s is a directory", ErrUnavailable, path)
	}

	w, err := t.opts.Watcher(path)
	if err != nil {
		return fmt.Errorf("%w: watching %s: %v", ErrUnavailable, path, err)
	}

	t.path = path
	t.pos = Position{Offset: info.Size(), Size: info.Size()}
	t.buf = nil
	t.ident = info
	t.status = StatusTailing
	t.stop = make(chan struct{})
	t.done = make(chan struct{})

	log.Printf("[tail] Tailing %s from offset %d", path, info.Size())
	go t.loop(w, t.stop, t.done)
	return nil
}

// Stop releases the watcher and waits for the tailing goroutine to exit.
// No line is delivered after Stop returns. Calling Stop again is a no-op.
// A tailer that already ended as unavailable keeps that status.
func (t *Tailer) Stop() {
	t.mu.Lock()
	stop, done := t.stop, t.done
	t.stop, t.done = nil, nil
	t.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done

	t.mu.Lock()
	if t.status != StatusUnavailable {
		t.status = StatusStopped
	}
	t.mu.Unlock()
}

func (t *Tailer) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

func (t *Tailer) Position() Position {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pos
}

func (t *Tailer) Path() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.path
}

func (t *Tailer) setStatus(s Status) {
	t.mu.Lock()
	t.status = s
	t.mu.Unlock()
}

func (t *Tailer) setPosition(p Position) {
	t.mu.Lock()
	t.pos = p
	t.mu.Unlock()
}

func stopped(stop <-chan struct{}) bool {
	select {
	case <-stop:
		return true
	default:
		return false
	}
}

func (t *Tailer) loop(w Watcher, stop, done chan struct{}) {
	defer close(done)
	defer w.Close()

	events, errs := w.Events(), w.Errors()
	for {
		select {
		case <-stop:
			return
		case ch, ok := <-events:
			if !ok {
				log.Printf("[tail] watcher for %s closed", t.path)
				t.markUnavailable()
				return
			}
			// A notification may be picked over a pending stop.
			if stopped(stop) {
				return
			}
			var keepGoing bool
			if ch.Op == OpRotate {
				keepGoing = t.rotate(stop)
			} else {
				keepGoing = t.readAvailable(stop)
			}
			if !keepGoing {
				return
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			log.Printf("[tail] watcher error for %s: %v", t.path, err)
		}
	}
}

// readAvailable reads everything between the current offset and the
// current size and delivers the complete lines. It returns false when
// tailing must end.
func (t *Tailer) readAvailable(stop <-chan struct{}) bool {
	info, err := os.Stat(t.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return t.rotate(stop)
		}
		log.Printf("[tail] stat %s: %v", t.path, err)
		return true
	}
	// A different file under the same name (renamed over the old one) is
	// a rotation even when it is larger than the old offset.
	if t.ident != nil && !os.SameFile(t.ident, info) {
		log.Printf("[tail] %s was replaced by a new file", t.path)
		return t.rotate(stop)
	}
	t.ident = info

	pos := t.Position()
	size := info.Size()
	if size < pos.Offset {
		log.Printf("[tail] %s shrank from %d to %d bytes", t.path, pos.Offset, size)
		return t.rotate(stop)
	}
	if size == pos.Offset {
		t.setPosition(Position{Offset: pos.Offset, Size: size})
		return true
	}

	data, err := readRange(t.path, pos.Offset, size)
	if err != nil {
		// Position stays put; the next notification retries the range.
		log.Printf("[tail] read error on %s at offset %d: %v", t.path, pos.Offset, err)
		return true
	}

	t.setPosition(Position{Offset: size, Size: size})
	t.consume(data, stop)
	return true
}

func readRange(path string, from, to int64) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data := make([]byte, to-from)
	if _, err := io.ReadFull(io.NewSectionReader(f, from, to-from), data); err != nil {
		return nil, err
	}
	return data, nil
}

// consume appends data to the partial line buffer and emits every
// complete line. The trailing partial line is kept for the next read.
func (t *Tailer) consume(data []byte, stop <-chan struct{}) {
	t.buf = append(t.buf, data...)

	rest := t.buf
	for {
		i := bytes.IndexByte(rest, '\n')
		if i < 0 {
			break
		}
		line := rest[:i]
		rest = rest[i+1:]
		if n := len(line); n > 0 && line[n-1] == '\r' {
			line = line[:n-1]
		}
		if stopped(stop) {
			return
		}
		t.opts.OnLine(string(line))
	}
	t.buf = append(t.buf[:0:0], rest...)
}

// rotate resets the read state, waits out the grace interval and resumes
// from offset zero if the file is back. It returns false when tailing has
// ended, either because Stop was called or the file did not reappear.
func (t *Tailer) rotate(stop <-chan struct{}) bool {
	log.Printf("[tail] %s rotated, waiting %s", t.path, t.opts.RotationGrace)
	t.buf = nil
	t.ident = nil
	t.mu.Lock()
	t.pos = Position{}
	t.status = StatusRotating
	t.mu.Unlock()

	timer := time.NewTimer(t.opts.RotationGrace)
	select {
	case <-stop:
		timer.Stop()
		return false
	case <-timer.C:
	}

	if _, err := os.Stat(t.path); err != nil {
		t.markUnavailable()
		return false
	}

	t.setStatus(StatusTailing)
	log.Printf("[tail] %s is back, reading from offset 0", t.path)
	return t.readAvailable(stop)
}

func (t *Tailer) markUnavailable() {
	t.setStatus(StatusUnavailable)
	log.Printf("[tail] %s unavailable, tailing stopped", t.path)
	if t.opts.OnUnavailable != nil {
		t.opts.OnUnavailable(t.path)
	}
}
