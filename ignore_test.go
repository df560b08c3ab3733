package textpack

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadIgnore(t *testing.T) {
	dir := setup(t)
	mktree(t, dir, map[string]string{
		".gitignore": "# build output\n\nbin/\n   *.log  \n  # indented comment\nnode_modules\n",
	})
	patterns, err := LoadIgnore(filepath.Join(dir, ".gitignore"))
	tassert(t, err == nil, "%#v", err)
	got := strings.Join(patterns, ",")
	tassert(t, got == "bin/,*.log,node_modules", "got %q", got)
}

func TestLoadIgnoreMissing(t *testing.T) {
	dir := setup(t)
	patterns, err := LoadIgnore(filepath.Join(dir, ".gitignore"))
	tassert(t, err == nil, "%#v", err)
	tassert(t, len(patterns) == 0, "%#v", patterns)

	rules, err := LoadRules(filepath.Join(dir, ".gitignore"))
	tassert(t, err == nil, "%#v", err)
	tassert(t, rules.Len() == 0, "%d", rules.Len())
	tassert(t, !rules.Match("anything.go"), "empty rules matched")
}

func TestRulesMatch(t *testing.T) {
	rules := CompileRules([]string{"*.log", "build", "a.c", "node_modules/"})
	cases := []struct {
		path  string
		match bool
	}{
		{"debug.log", true},
		{"logs/deep/trace.log", true},
		{"catalog.go", false},
		// unanchored: a pattern matches anywhere in the path
		{"src/rebuild.go", true},
		{"build/out.txt", true},
		// '.' is literal
		{"a.c", true},
		{"src/a.c.orig", true},
		{"abc", false},
		{"web/node_modules/x/index.js", true},
		{"node_modules", false},
		{"main.go", false},
	}
	for _, c := range cases {
		got := rules.Match(c.path)
		tassert(t, got == c.match, "%q: expected %v got %v", c.path, c.match, got)
	}
}

func TestRulesInvalidPattern(t *testing.T) {
	rules := CompileRules([]string{"foo(", "[unclosed"})
	tassert(t, rules.Len() == 2, "%d", rules.Len())
	tassert(t, rules.Match("lib/foo(bar).txt"), "literal fallback did not match")
	tassert(t, rules.Match("x/[unclosed"), "literal fallback did not match")
	tassert(t, !rules.Match("foo.txt"), "unexpected match")
	got := strings.Join(rules.Patterns(), " ")
	tassert(t, got == "foo( [unclosed", "got %q", got)
}

func TestRulesNil(t *testing.T) {
	var rules *Rules
	tassert(t, !rules.Match("x"), "nil rules matched")
	tassert(t, rules.Len() == 0, "nil rules len")
}
