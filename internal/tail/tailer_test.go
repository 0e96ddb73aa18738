package tail

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"pgregory.net/rapid"
)

// tb is the subset of testing.TB that *rapid.T also satisfies.
type tb interface {
	Helper()
	Fatal(args ...any)
}

func appendFile(t tb, path, s string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0644)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if _, err := f.WriteString(s); err != nil {
		t.Fatal(err)
	}
}

// newManualTailer returns a tailer positioned at the start of an empty
// file, driven by direct readAvailable calls instead of a watcher.
func newManualTailer(t tb, path string, lines *[]string) *Tailer {
	t.Helper()
	if err := os.WriteFile(path, nil, 0644); err != nil {
		t.Fatal(err)
	}
	tl := New(Options{
		RotationGrace: time.Millisecond,
		OnLine:        func(l string) { *lines = append(*lines, l) },
	})
	tl.path = path
	return tl
}

func TestReadAvailableSplitsLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "content_log.txt")
	var got []string
	tl := newManualTailer(t, path, &got)

	appendFile(t, path, "first line\nsecond ")
	tl.readAvailable(nil)
	if len(got) != 1 || got[0] != "first line" {
		t.Fatalf("got %q, want [first line]", got)
	}

	appendFile(t, path, "line\r\nthird\n")
	tl.readAvailable(nil)
	want := []string{"first line", "second line", "third"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("got %q, want %q", got, want)
	}

	pos := tl.Position()
	info, _ := os.Stat(path)
	if pos.Offset != info.Size() || pos.Size != info.Size() {
		t.Errorf("Position = %+v, want offset=size=%d", pos, info.Size())
	}
}

func TestReadAvailableNoNewData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "content_log.txt")
	var got []string
	tl := newManualTailer(t, path, &got)

	appendFile(t, path, "a\n")
	tl.readAvailable(nil)
	tl.readAvailable(nil)
	tl.readAvailable(nil)
	if len(got) != 1 {
		t.Fatalf("got %q, want exactly one line", got)
	}
}

// Arbitrary chunking of appended bytes must yield exactly the lines of the
// assembled file, in order.
func TestChunkBoundariesProperty(t *testing.T) {
	dir := t.TempDir()
	rapid.Check(t, func(rt *rapid.T) {
		lines := rapid.SliceOfN(rapid.StringMatching(`[a-zA-Z0-9 :"(),.\[\]-]{0,40}`), 0, 20).Draw(rt, "lines")
		content := ""
		for _, l := range lines {
			content += l + "\n"
		}
		partial := rapid.StringMatching(`[a-z]{0,10}`).Draw(rt, "partial")
		content += partial

		path := filepath.Join(dir, "prop.log")
		var got []string
		tl := newManualTailer(rt, path, &got)

		rest := content
		for len(rest) > 0 {
			n := rapid.IntRange(1, len(rest)).Draw(rt, "chunk")
			appendFile(rt, path, rest[:n])
			rest = rest[n:]
			if rapid.Bool().Draw(rt, "read") {
				tl.readAvailable(nil)
			}
		}
		tl.readAvailable(nil)

		if len(got) != len(lines) {
			rt.Fatalf("got %d lines, want %d: %q vs %q", len(got), len(lines), got, lines)
		}
		for i := range lines {
			if got[i] != lines[i] {
				rt.Fatalf("line %d = %q, want %q", i, got[i], lines[i])
			}
		}
		if string(tl.buf) != partial {
			rt.Fatalf("partial buffer = %q, want %q", tl.buf, partial)
		}
	})
}

func TestTruncationResetsToZero(t *testing.T) {
	path := filepath.Join(t.TempDir(), "content_log.txt")
	var got []string
	tl := newManualTailer(t, path, &got)

	appendFile(t, path, "gen1 line one with padding\ngen1 line two with padding\npartial")
	tl.readAvailable(nil)

	// Replace with shorter content from a new generation.
	if err := os.WriteFile(path, []byte("gen2 a\ngen2 b\n"), 0644); err != nil {
		t.Fatal(err)
	}
	tl.readAvailable(nil)

	want := []string{
		"gen1 line one with padding",
		"gen1 line two with padding",
		"gen2 a",
		"gen2 b",
	}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("got %q, want %q", got, want)
	}
	if tl.Status() != StatusTailing {
		t.Errorf("Status = %v, want tailing", tl.Status())
	}
}

func TestReplacedFileIsReadFromStart(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "content_log.txt")
	var got []string
	tl := newManualTailer(t, path, &got)

	appendFile(t, path, "old generation line\n")
	tl.readAvailable(nil)

	// The replacement is larger than the old offset, so only its identity
	// tells it apart from an append.
	tmp := filepath.Join(dir, "content_log.tmp")
	if err := os.WriteFile(tmp, []byte("new generation first line\nnew generation second\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.Rename(tmp, path); err != nil {
		t.Fatal(err)
	}
	tl.readAvailable(nil)

	want := []string{"old generation line", "new generation first line", "new generation second"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("got %q, want %q", got, want)
	}
	info, _ := os.Stat(path)
	if pos := tl.Position(); pos.Offset != info.Size() {
		t.Errorf("Position = %+v, want offset %d", pos, info.Size())
	}

	// Later appends to the new file are not mistaken for another replacement.
	appendFile(t, path, "appended\n")
	tl.readAvailable(nil)
	if got[len(got)-1] != "appended" || len(got) != 4 {
		t.Errorf("got %q after append", got)
	}
}

func TestRotationToMissingFileIsUnavailable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "content_log.txt")
	var got []string
	tl := newManualTailer(t, path, &got)
	calls := 0
	tl.opts.OnUnavailable = func(string) { calls++ }

	os.Remove(path)
	if tl.rotate(nil) {
		t.Fatal("rotate should report tailing ended")
	}
	if tl.Status() != StatusUnavailable {
		t.Errorf("Status = %v, want unavailable", tl.Status())
	}
	if calls != 1 {
		t.Errorf("OnUnavailable called %d times, want 1", calls)
	}
	if tl.Position() != (Position{}) {
		t.Errorf("Position = %+v, want zero", tl.Position())
	}
}

func TestStartMissingFile(t *testing.T) {
	tl := New(Options{})
	err := tl.Start(filepath.Join(t.TempDir(), "nope.txt"))
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("Start error = %v, want ErrUnavailable", err)
	}
	if tl.Status() != StatusStopped {
		t.Errorf("Status = %v, want stopped", tl.Status())
	}
}

// lineSink collects lines delivered from the tailing goroutine.
type lineSink struct {
	mu    sync.Mutex
	lines []string
	ch    chan string
}

func newLineSink() *lineSink {
	return &lineSink{ch: make(chan string, 100)}
}

func (s *lineSink) add(l string) {
	s.mu.Lock()
	s.lines = append(s.lines, l)
	s.mu.Unlock()
	s.ch <- l
}

func (s *lineSink) snapshot() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.lines...)
}

func (s *lineSink) expect(t *testing.T, want ...string) {
	t.Helper()
	for _, w := range want {
		select {
		case got := <-s.ch:
			if got != w {
				t.Fatalf("line = %q, want %q", got, w)
			}
		case <-time.After(3 * time.Second):
			t.Fatalf("timed out waiting for %q", w)
		}
	}
}

func TestStartSkipsHistoryAndTails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "content_log.txt")
	appendFile(t, path, "history should not be replayed\n")

	sink := newLineSink()
	tl := New(Options{
		Watcher:       PollingWatcher(10 * time.Millisecond),
		RotationGrace: 20 * time.Millisecond,
		OnLine:        sink.add,
	})
	if err := tl.Start(path); err != nil {
		t.Fatal(err)
	}
	defer tl.Stop()

	appendFile(t, path, "new one\nnew two\n")
	sink.expect(t, "new one", "new two")

	if got := sink.snapshot(); len(got) != 2 {
		t.Errorf("lines = %q, want only the new ones", got)
	}
}

func TestStopIsIdempotentAndRestartResumesAtEOF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "content_log.txt")
	appendFile(t, path, "")

	sink := newLineSink()
	tl := New(Options{
		Watcher: PollingWatcher(10 * time.Millisecond),
		OnLine:  sink.add,
	})
	if err := tl.Start(path); err != nil {
		t.Fatal(err)
	}
	if err := tl.Start(path); err == nil {
		t.Error("second Start while running should fail")
	}

	appendFile(t, path, "before stop\n")
	sink.expect(t, "before stop")

	tl.Stop()
	tl.Stop()
	if tl.Status() != StatusStopped {
		t.Errorf("Status = %v, want stopped", tl.Status())
	}

	appendFile(t, path, "while stopped\n")
	time.Sleep(50 * time.Millisecond)
	if got := sink.snapshot(); len(got) != 1 {
		t.Fatalf("lines after stop = %q", got)
	}

	if err := tl.Start(path); err != nil {
		t.Fatal(err)
	}
	defer tl.Stop()
	appendFile(t, path, "after restart\n")
	sink.expect(t, "after restart")

	for _, l := range sink.snapshot() {
		if l == "while stopped" {
			t.Error("history written while stopped was replayed")
		}
	}
}

func TestRenameRotationResumesOnNewFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "content_log.txt")
	appendFile(t, path, "")

	sink := newLineSink()
	tl := New(Options{
		Watcher:       PollingWatcher(10 * time.Millisecond),
		RotationGrace: 100 * time.Millisecond,
		OnLine:        sink.add,
	})
	if err := tl.Start(path); err != nil {
		t.Fatal(err)
	}
	defer tl.Stop()

	appendFile(t, path, "old generation\n")
	sink.expect(t, "old generation")

	if err := os.Rename(path, filepath.Join(dir, "content_log.previous.txt")); err != nil {
		t.Fatal(err)
	}
	time.Sleep(30 * time.Millisecond)
	// Shorter than the old generation, so a missed rename still reads as a shrink.
	appendFile(t, path, "new gen\n")
	sink.expect(t, "new gen")

	time.Sleep(50 * time.Millisecond)
	got := sink.snapshot()
	if strings.Join(got, "|") != "old generation|new gen" {
		t.Errorf("lines = %q, want each generation exactly once", got)
	}
}

func TestRemovedFileBecomesUnavailable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "content_log.txt")
	appendFile(t, path, "")

	unavailable := make(chan string, 1)
	tl := New(Options{
		Watcher:       PollingWatcher(10 * time.Millisecond),
		RotationGrace: 20 * time.Millisecond,
		OnUnavailable: func(p string) { unavailable <- p },
	})
	if err := tl.Start(path); err != nil {
		t.Fatal(err)
	}
	defer tl.Stop()

	os.Remove(path)
	select {
	case p := <-unavailable:
		if p != path {
			t.Errorf("OnUnavailable path = %q, want %q", p, path)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("OnUnavailable not called")
	}
	if tl.Status() != StatusUnavailable {
		t.Errorf("Status = %v, want unavailable", tl.Status())
	}

	// The file coming back later does not resume tailing on its own.
	appendFile(t, path, "late\n")
	if err := tl.Start(path); err != nil {
		t.Fatalf("Start after unavailable: %v", err)
	}
}

func TestStopAfterUnavailableKeepsStatus(t *testing.T) {
	path := filepath.Join(t.TempDir(), "content_log.txt")
	appendFile(t, path, "")

	unavailable := make(chan struct{}, 1)
	tl := New(Options{
		Watcher:       PollingWatcher(10 * time.Millisecond),
		RotationGrace: 20 * time.Millisecond,
		OnUnavailable: func(string) { unavailable <- struct{}{} },
	})
	if err := tl.Start(path); err != nil {
		t.Fatal(err)
	}

	os.Remove(path)
	select {
	case <-unavailable:
	case <-time.After(3 * time.Second):
		t.Fatal("OnUnavailable not called")
	}

	tl.Stop()
	if tl.Status() != StatusUnavailable {
		t.Errorf("Status after Stop = %v, want unavailable", tl.Status())
	}
	tl.Stop()
	if tl.Status() != StatusUnavailable {
		t.Errorf("Status after second Stop = %v, want unavailable", tl.Status())
	}
}

// startNativeTailer starts a tailer on the fsnotify-backed watcher, skipping
// where the platform has none.
func startNativeTailer(t *testing.T, path string, sink *lineSink) *Tailer {
	t.Helper()
	nw, err := newFSWatcher(path)
	if err != nil {
		t.Skipf("native file notifications unavailable: %v", err)
	}
	nw.Close()

	tl := New(Options{
		Watcher:       NativeWatcher(10 * time.Millisecond),
		RotationGrace: 100 * time.Millisecond,
		OnLine:        sink.add,
	})
	if err := tl.Start(path); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(tl.Stop)
	return tl
}

func expectExactly(t *testing.T, sink *lineSink, want ...string) {
	t.Helper()
	time.Sleep(150 * time.Millisecond)
	if got := sink.snapshot(); strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("lines = %q, want %q", got, want)
	}
}

func TestNativeRenameAwayRotation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "content_log.txt")
	appendFile(t, path, "")

	sink := newLineSink()
	startNativeTailer(t, path, sink)

	appendFile(t, path, "gen1 before rename\n")
	sink.expect(t, "gen1 before rename")

	if err := os.Rename(path, filepath.Join(dir, "content_log.previous.txt")); err != nil {
		t.Fatal(err)
	}
	appendFile(t, path, "gen2 first\ngen2 second\n")
	sink.expect(t, "gen2 first", "gen2 second")

	expectExactly(t, sink, "gen1 before rename", "gen2 first", "gen2 second")
}

func TestNativeTruncateRotation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "content_log.txt")
	appendFile(t, path, "")

	sink := newLineSink()
	startNativeTailer(t, path, sink)

	appendFile(t, path, "gen1 a long line that outgrows the next generation\n")
	sink.expect(t, "gen1 a long line that outgrows the next generation")

	if err := os.WriteFile(path, []byte("gen2 short\n"), 0644); err != nil {
		t.Fatal(err)
	}
	sink.expect(t, "gen2 short")

	expectExactly(t, sink, "gen1 a long line that outgrows the next generation", "gen2 short")
}

func TestNativeRenameOverRotation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "content_log.txt")
	appendFile(t, path, "")

	sink := newLineSink()
	tl := startNativeTailer(t, path, sink)

	appendFile(t, path, "old generation line\n")
	sink.expect(t, "old generation line")

	tmp := filepath.Join(dir, "content_log.tmp")
	if err := os.WriteFile(tmp, []byte("new generation first line\nnew generation second\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.Rename(tmp, path); err != nil {
		t.Fatal(err)
	}
	sink.expect(t, "new generation first line", "new generation second")

	expectExactly(t, sink, "old generation line", "new generation first line", "new generation second")
	if tl.Status() != StatusTailing {
		t.Errorf("Status = %v, want tailing", tl.Status())
	}
}
