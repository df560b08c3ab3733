package watch

import (
	"context"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
)

func TestMain(m *testing.M) {
	if os.Getenv("DEBUG") == "1" {
		log.SetLevel(log.DebugLevel)
	}
	os.Exit(m.Run())
}

// test boolean condition
func tassert(t *testing.T, cond bool, txt string, args ...interface{}) {
	t.Helper() // cause file:line info to show caller
	if !cond {
		t.Fatalf(txt, args...)
	}
}

// start runs w in the background and returns a channel of the change
// sets it reports.
func start(t *testing.T, w *Watcher) (changes chan []string) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	changes = make(chan []string, 10)
	go func() {
		done <- w.Run(ctx, func(changed []string) error {
			changes <- changed
			return nil
		})
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("run: %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Errorf("run did not return")
		}
	})
	return
}

func next(t *testing.T, changes chan []string) []string {
	t.Helper()
	select {
	case changed := <-changes:
		return changed
	case <-time.After(5 * time.Second):
		t.Fatalf("no change reported")
	}
	return nil
}

func write(t *testing.T, fn, content string) {
	t.Helper()
	err := ioutil.WriteFile(fn, []byte(content), 0644)
	tassert(t, err == nil, "%#v", err)
}

func TestDebounce(t *testing.T) {
	dir := t.TempDir()
	w, err := New(dir, nil)
	tassert(t, err == nil, "%#v", err)
	w.Debounce = 200 * time.Millisecond
	changes := start(t, w)

	for _, name := range []string{"a.txt", "b.txt", "c.txt"} {
		write(t, filepath.Join(dir, name), "x")
		time.Sleep(20 * time.Millisecond)
	}
	changed := next(t, changes)
	got := strings.Join(changed, " ")
	for _, name := range []string{"a.txt", "b.txt", "c.txt"} {
		tassert(t, strings.Contains(got, name), "%s missing from %q", name, got)
	}

	select {
	case extra := <-changes:
		t.Fatalf("burst reported twice: %v", extra)
	case <-time.After(400 * time.Millisecond):
	}
}

func TestSkip(t *testing.T) {
	dir := t.TempDir()
	err := os.Mkdir(filepath.Join(dir, "build"), 0755)
	tassert(t, err == nil, "%#v", err)
	skip := func(rel string) bool {
		return rel == "build" || strings.HasPrefix(rel, "combined_")
	}
	w, err := New(dir, skip)
	tassert(t, err == nil, "%#v", err)
	w.Debounce = 100 * time.Millisecond
	changes := start(t, w)

	write(t, filepath.Join(dir, "build", "out.o"), "x")
	write(t, filepath.Join(dir, "combined_1.txt"), "x")
	time.Sleep(300 * time.Millisecond)
	write(t, filepath.Join(dir, "main.go"), "package main")

	changed := next(t, changes)
	got := strings.Join(changed, " ")
	tassert(t, got == "main.go", "%q", got)
}

func TestNewDirectory(t *testing.T) {
	dir := t.TempDir()
	w, err := New(dir, nil)
	tassert(t, err == nil, "%#v", err)
	w.Debounce = 100 * time.Millisecond
	changes := start(t, w)

	err = os.Mkdir(filepath.Join(dir, "sub"), 0755)
	tassert(t, err == nil, "%#v", err)
	got := strings.Join(next(t, changes), " ")
	tassert(t, got == "sub", "%q", got)

	// the new directory is watched too
	write(t, filepath.Join(dir, "sub", "x.go"), "package x")
	got = strings.Join(next(t, changes), " ")
	tassert(t, strings.Contains(got, "sub/x.go"), "%q", got)
}

func TestNewBadRoot(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "missing"), nil)
	tassert(t, err != nil, "expected error")
}
