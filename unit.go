package textpack

import (
	"bufio"
	"fmt"
	"io/ioutil"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/google/renameio"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// DefaultPrefix is the unit name prefix used when none is given.
const DefaultPrefix = "combined"

// UnitName returns the file name of unit seq.
func UnitName(prefix string, seq int) string {
	return fmt.Sprintf("%s_%d.txt", prefix, seq)
}

// UnitSeq parses name as {prefix}_{seq}.txt and returns seq.  ok is
// false for any other name, including a zero or padded sequence.
func UnitSeq(prefix, name string) (seq int, ok bool) {
	s := strings.TrimPrefix(name, prefix+"_")
	if len(s) == len(name) || !strings.HasSuffix(s, ".txt") {
		return 0, false
	}
	s = strings.TrimSuffix(s, ".txt")
	if s == "" || s[0] == '0' {
		return 0, false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	seq, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return seq, true
}

// IsUnitName reports whether name is a unit of prefix.
func IsUnitName(prefix, name string) bool {
	_, ok := UnitSeq(prefix, name)
	return ok
}

// IsPendingUnit reports whether name is the temporary file a unit of
// prefix is written to before it is published.
func IsPendingUnit(prefix, name string) bool {
	return strings.HasPrefix(name, "."+prefix+"_")
}

// FindUnits returns the names of the files in dir that start with
// prefix and end with ".txt".  {prefix}_{seq}.txt names come first, in
// numeric order, so that unit 10 follows unit 9; any other matching
// names follow in lexical order.
func FindUnits(dir, prefix string) (names []string, err error) {
	infos, err := ioutil.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "list %s", dir)
	}
	for _, info := range infos {
		name := info.Name()
		if info.IsDir() {
			continue
		}
		if strings.HasPrefix(name, prefix) && strings.HasSuffix(name, ".txt") {
			names = append(names, name)
		}
	}
	SortUnits(prefix, names)
	return
}

// SortUnits sorts unit names in place; see FindUnits.
func SortUnits(prefix string, names []string) {
	sort.SliceStable(names, func(i, j int) bool {
		a, aok := UnitSeq(prefix, names[i])
		b, bok := UnitSeq(prefix, names[j])
		switch {
		case aok && bok:
			return a < b
		case aok != bok:
			return aok
		default:
			return names[i] < names[j]
		}
	})
}

// Unit is an archive unit being written.  Nothing is visible at Path
// until Close publishes the unit atomically.
type Unit struct {
	Name    string
	Path    string
	Seq     int
	Records int
	Bytes   int64 // source bytes of the records written so far
	pending *renameio.PendingFile
	wr      *bufio.Writer
}

// CreateUnit opens unit seq of prefix in dir for writing.
func CreateUnit(dir, prefix string, seq int) (unit *Unit, err error) {
	name := UnitName(prefix, seq)
	path := filepath.Join(dir, name)
	pending, err := renameio.TempFile("", path)
	if err != nil {
		return nil, errors.Wrapf(err, "create %s", name)
	}
	unit = &Unit{
		Name:    name,
		Path:    path,
		Seq:     seq,
		pending: pending,
		wr:      bufio.NewWriter(pending),
	}
	return
}

// Add appends rec to the unit.  size is the source file size, used for
// accounting only.
func (unit *Unit) Add(rec Record, size int64) (err error) {
	_, err = rec.WriteTo(unit.wr)
	if err != nil {
		return errors.Wrapf(err, "write %s to %s", rec.Path, unit.Name)
	}
	unit.Records++
	unit.Bytes += size
	return
}

// Close flushes the unit and moves it into place.  It is safe to call
// more than once; only the first call has any effect.
func (unit *Unit) Close() (err error) {
	if unit.pending == nil {
		return
	}
	pending := unit.pending
	unit.pending = nil
	defer pending.Cleanup()

	err = unit.wr.Flush()
	if err != nil {
		return errors.Wrapf(err, "flush %s", unit.Name)
	}
	err = pending.CloseAtomicallyReplace()
	if err != nil {
		return errors.Wrapf(err, "publish %s", unit.Name)
	}
	log.Debugf("closed %s with %d records", unit.Name, unit.Records)
	return
}

// Discard drops the unit without publishing it.
func (unit *Unit) Discard() {
	if unit.pending == nil {
		return
	}
	err := unit.pending.Cleanup()
	if err != nil {
		log.Debugf("discard %s: %v", unit.Name, err)
	}
	unit.pending = nil
}
