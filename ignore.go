package textpack

import (
	"bufio"
	"os"
	"regexp"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// DefaultIgnoreFile is the name of the ignore file looked up in root.
const DefaultIgnoreFile = ".gitignore"

// LoadIgnore reads the ignore file at path and returns its patterns in
// file order.  Blank lines and lines starting with '#' are dropped.  A
// missing file is not an error; it yields no patterns.
func LoadIgnore(path string) (patterns []string, err error) {
	fh, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "open ignore file %s", path)
	}
	defer fh.Close()

	scanner := bufio.NewScanner(fh)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, line)
	}
	err = scanner.Err()
	if err != nil {
		return nil, errors.Wrapf(err, "read ignore file %s", path)
	}
	return
}

// Rules is a compiled, immutable set of ignore patterns.
type Rules struct {
	patterns []string
	matchers []*regexp.Regexp
}

// CompileRules turns each pattern into a matcher once, so Match can be
// called for every candidate without recompiling.
//
// Only '.' and '*' are translated.  Anything else is passed through to
// the regexp engine as-is, and matches are unanchored, so "build"
// excludes "src/rebuild.go" too.  This is not a gitignore engine.
func CompileRules(patterns []string) *Rules {
	rules := &Rules{}
	for _, pattern := range patterns {
		re, err := regexp.Compile(globToRegexp(pattern))
		if err != nil {
			log.Warnf("ignore pattern %q is not a valid expression, matching it literally: %v", pattern, err)
			re = regexp.MustCompile(regexp.QuoteMeta(pattern))
		}
		rules.patterns = append(rules.patterns, pattern)
		rules.matchers = append(rules.matchers, re)
	}
	return rules
}

// LoadRules is LoadIgnore followed by CompileRules.
func LoadRules(path string) (rules *Rules, err error) {
	patterns, err := LoadIgnore(path)
	if err != nil {
		return
	}
	return CompileRules(patterns), nil
}

func globToRegexp(pattern string) string {
	s := strings.ReplaceAll(pattern, ".", `\.`)
	return strings.ReplaceAll(s, "*", ".*")
}

// Match reports whether any pattern matches anywhere in relpath.
func (rules *Rules) Match(relpath string) bool {
	if rules == nil {
		return false
	}
	for _, re := range rules.matchers {
		if re.MatchString(relpath) {
			return true
		}
	}
	return false
}

// Patterns returns the source patterns in load order.
func (rules *Rules) Patterns() []string {
	if rules == nil {
		return nil
	}
	return append([]string(nil), rules.patterns...)
}

// Len returns the number of patterns.
func (rules *Rules) Len() int {
	if rules == nil {
		return 0
	}
	return len(rules.matchers)
}
