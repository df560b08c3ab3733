package textpack

import (
	"strings"
	"testing"
)

func TestRecordWireFormat(t *testing.T) {
	rec := Record{Path: "src/main.go", Content: "package main\n"}
	expect := "---FILE START---\n" +
		"Path: src/main.go\n" +
		"---CONTENT START---\n" +
		"package main\n\n" +
		"---CONTENT END---\n" +
		"---FILE END---\n\n"
	got := rec.String()
	tassert(t, got == expect, "expected %q got %q", expect, got)
}

func TestParseRecordsLossless(t *testing.T) {
	recs := []Record{
		{Path: "a.txt", Content: "plain"},
		{Path: "b.txt", Content: "\n\n  leading and trailing  \n\n"},
		{Path: "c.txt", Content: ""},
		{Path: "d/e.txt", Content: "crlf\r\nlines\r\n"},
		{Path: "f.txt", Content: "\t"},
	}
	var sb strings.Builder
	for _, rec := range recs {
		_, err := rec.WriteTo(&sb)
		tassert(t, err == nil, "%#v", err)
	}
	got, errs := ParseRecords(sb.String())
	tassert(t, len(errs) == 0, "%v", errs)
	tassert(t, len(got) == len(recs), "expected %d records got %d", len(recs), len(got))
	for i := range recs {
		tassert(t, got[i] == recs[i], "record %d: expected %#v got %#v", i, recs[i], got[i])
	}
}

func TestParseRecordsCRLFUnit(t *testing.T) {
	// a unit that was pasted through something that rewrote newlines
	txt := strings.ReplaceAll(Record{Path: "x.txt", Content: "one\ntwo"}.String(), "\n", "\r\n")
	got, errs := ParseRecords(txt)
	tassert(t, len(errs) == 0, "%v", errs)
	tassert(t, len(got) == 1, "%#v", got)
	tassert(t, got[0].Path == "x.txt", "%q", got[0].Path)
	tassert(t, got[0].Content == "one\r\ntwo", "%q", got[0].Content)
}

func TestParseRecordsMalformed(t *testing.T) {
	txt := "preamble that is ignored\n" +
		Record{Path: "good1.txt", Content: "1"}.String() +
		"---FILE START---\nPath: nocontent.txt\n---FILE END---\n\n" +
		"---FILE START---\nno label here\n---CONTENT START---\nx\n---CONTENT END---\n" +
		"---FILE START---\nPath: unterminated.txt\n---CONTENT START---\nx\n" +
		"---FILE START---\nPath:    \n---CONTENT START---\nx\n---CONTENT END---\n" +
		Record{Path: "good2.txt", Content: "2"}.String()
	got, errs := ParseRecords(txt)
	tassert(t, len(errs) == 4, "expected 4 errors got %v", errs)
	tassert(t, len(got) == 2, "%#v", got)
	tassert(t, got[0].Path == "good1.txt" && got[1].Path == "good2.txt", "%#v", got)
}

func TestParseRecordsEmpty(t *testing.T) {
	got, errs := ParseRecords("")
	tassert(t, len(got) == 0 && len(errs) == 0, "%#v %v", got, errs)
}

func TestParseRecordsPathLine(t *testing.T) {
	// the path is the rest of the line after the label, nothing more
	txt := "---FILE START---\nPath: a.txt\nextra\n---CONTENT START---\nx\n---CONTENT END---\n---FILE END---\n\n" +
		"---FILE START---\nnoise\nPath: b.txt\n---CONTENT START---\nx\n---CONTENT END---\n---FILE END---\n\n"
	got, errs := ParseRecords(txt)
	tassert(t, len(got) == 0, "%#v", got)
	tassert(t, len(errs) == 2, "%v", errs)
}
