package textpack

import (
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
)

// Delimiters of the record wire format.
const (
	FileStart    = "---FILE START---"
	PathLabel    = "Path: "
	ContentStart = "---CONTENT START---"
	ContentEnd   = "---CONTENT END---"
	FileEnd      = "---FILE END---"
)

// Record is one file as stored in a unit.
type Record struct {
	Path    string
	Content string
}

// WriteTo writes the record in wire format, followed by the blank line
// that separates it from the next record.
func (rec Record) WriteTo(w io.Writer) (n int64, err error) {
	m, err := fmt.Fprintf(w, "%s\n%s%s\n%s\n%s\n%s\n%s\n\n",
		FileStart, PathLabel, rec.Path, ContentStart, rec.Content, ContentEnd, FileEnd)
	return int64(m), err
}

// String returns the record in wire format.
func (rec Record) String() string {
	var sb strings.Builder
	rec.WriteTo(&sb)
	return sb.String()
}

// ParseRecords splits the text of a unit into records.  Anything before
// the first FileStart is ignored.  A chunk that cannot be parsed is
// reported in errs and does not stop the remaining chunks from being
// parsed.
func ParseRecords(txt string) (records []Record, errs []error) {
	chunks := strings.Split(txt, FileStart)
	for i, chunk := range chunks[1:] {
		rec, err := parseRecord(chunk)
		if err != nil {
			errs = append(errs, errors.Wrapf(err, "record %d", i+1))
			continue
		}
		records = append(records, rec)
	}
	return
}

func parseRecord(chunk string) (rec Record, err error) {
	// The chunk starts right after FileStart: a line break, the path
	// line, then ContentStart on a line of its own.
	rest, ok := cutEOL(chunk)
	if !ok {
		return rec, errors.Errorf("missing line break after %s", FileStart)
	}
	line, rest, ok := strings.Cut(rest, "\n")
	if !ok {
		return rec, errors.New("truncated record")
	}
	line = strings.TrimSuffix(line, "\r")
	if !strings.HasPrefix(line, PathLabel) {
		return rec, errors.Errorf("missing %q label", strings.TrimSpace(PathLabel))
	}
	rec.Path = strings.TrimSpace(strings.TrimPrefix(line, PathLabel))
	if rec.Path == "" {
		return rec, errors.New("empty path")
	}
	if !strings.HasPrefix(rest, ContentStart) {
		return rec, errors.Errorf("missing %s for %s", ContentStart, rec.Path)
	}
	body := strings.TrimPrefix(rest, ContentStart)
	content, _, ok := strings.Cut(body, ContentEnd)
	if !ok {
		return rec, errors.Errorf("missing %s for %s", ContentEnd, rec.Path)
	}
	// Only the newlines the writer added around the content are
	// removed, so leading and trailing whitespace in the file survive.
	// A unit that went through CRLF conversion on the way is detected
	// by the line ending right after ContentStart.
	eol := "\n"
	if strings.HasPrefix(content, "\r\n") {
		eol = "\r\n"
	}
	content = strings.TrimPrefix(content, eol)
	content = strings.TrimSuffix(content, eol)
	rec.Content = content
	return
}

// cutEOL removes one leading line break from s.
func cutEOL(s string) (rest string, ok bool) {
	rest, ok = strings.CutPrefix(s, "\r\n")
	if ok {
		return
	}
	return strings.CutPrefix(s, "\n")
}

// validPath reports whether relpath can be written as a path line.
func validPath(relpath string) bool {
	return relpath != "" && !strings.ContainsAny(relpath, "\r\n")
}
