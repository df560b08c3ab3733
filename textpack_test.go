package textpack

import (
	"fmt"
	"io/fs"
	"io/ioutil"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	log "github.com/sirupsen/logrus"
	. "github.com/stevegt/goadapt"
)

const testDirPrefix = "textpack"

func TestMain(m *testing.M) {
	InitLog()
	if os.Getenv("DEBUG") != "1" {
		log.SetLevel(log.WarnLevel)
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

// setup returns an empty scratch directory.  With DEBUG=1 the
// directory is kept and its name printed.
func setup(t *testing.T) (dir string) {
	var err error
	debug := os.Getenv("DEBUG")
	if debug == "1" {
		dir, err = ioutil.TempDir("", testDirPrefix)
		Ck(err)
		fmt.Println(dir)
		// manual cleanup
	} else {
		dir = t.TempDir()
		// automatic cleanup
	}
	return
}

// mktree creates files under dir; keys are slash-separated relpaths.
func mktree(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		fn := filepath.Join(dir, filepath.FromSlash(rel))
		err := os.MkdirAll(filepath.Dir(fn), 0755)
		tassert(t, err == nil, "%#v", err)
		err = ioutil.WriteFile(fn, []byte(content), 0644)
		tassert(t, err == nil, "%#v", err)
	}
}

// readtree returns every regular file under dir keyed by slash-separated
// relpath, skipping names accepted by skip.
func readtree(t *testing.T, dir string, skip func(rel string) bool) (files map[string]string) {
	t.Helper()
	files = make(map[string]string)
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if skip != nil && skip(rel) {
			return nil
		}
		buf, err := ioutil.ReadFile(path)
		if err != nil {
			return err
		}
		files[rel] = string(buf)
		return nil
	})
	tassert(t, err == nil, "%#v", err)
	return
}

func TestGetGID(t *testing.T) {
	n := GetGID()
	if n == 0 {
		t.Fatalf("oh no n is 0")
	}
}

func TestCaller(t *testing.T) {
	_, file, line, _ := runtime.Caller(0)
	fn, got := caller()(&runtime.Frame{File: file, Line: line})
	expect := fmt.Sprintf("textpack_test.go:%d gid ", line)
	tassert(t, fn == "", "%q", fn)
	tassert(t, strings.HasPrefix(got, expect), "expected prefix %q got %q", expect, got)
}
