package textpack

import (
	"io/ioutil"
	"os"
	"path"
	"path/filepath"
	"unicode/utf8"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	. "github.com/stevegt/goadapt"
)

// DefaultBudgetMB is the unit size budget used when none is given.
const DefaultBudgetMB = 30

// Packer packs the files under Dir into units written to OutDir.
type Packer struct {
	Dir        string  // root of the tree to pack
	OutDir     string  // where units go; defaults to Dir
	Prefix     string  // unit name prefix; defaults to DefaultPrefix
	BudgetMB   float64 // per-unit budget; defaults to DefaultBudgetMB
	IgnoreFile string  // path of the ignore file; defaults to Dir/.gitignore
	Blocks     BlockSet
	// OnUnit, if set, is called as each unit is opened.
	OnUnit func(name string)

	// rotation state; owned by one Pack call
	unit    *Unit
	seq     int
	current float64
}

// PackResult counts what a Pack call did.
type PackResult struct {
	Units   []string // unit names, in creation order
	Files   int      // records written
	Skipped int      // candidates that passed the filter but could not be packed
	Bytes   int64    // source bytes packed
}

// New returns a copy of p that packs dir.  Unset fields take their
// defaults when packing starts.
func (p Packer) New(dir string) *Packer {
	p.Dir = dir
	return &p
}

func (p *Packer) defaults() {
	if p.Dir == "" {
		p.Dir = "."
	}
	if p.OutDir == "" {
		p.OutDir = p.Dir
	}
	if p.Prefix == "" {
		p.Prefix = DefaultPrefix
	}
	if p.BudgetMB <= 0 {
		p.BudgetMB = DefaultBudgetMB
	}
	if p.IgnoreFile == "" {
		p.IgnoreFile = filepath.Join(p.Dir, DefaultIgnoreFile)
	}
	if p.Blocks == nil {
		p.Blocks = DefaultBlockSet
	}
}

// Filter returns the filter Pack applies: the ignore rules, the block
// set, and a check that keeps this packer's own units out of the
// archive when they live inside Dir.
func (p *Packer) Filter() (f *Filter) {
	p.defaults()
	rules, err := LoadRules(p.IgnoreFile)
	if err != nil {
		log.Warnf("ignoring %s: %v", p.IgnoreFile, err)
		rules = CompileRules(nil)
	}
	log.Debugf("loaded %d ignore patterns from %s", rules.Len(), p.IgnoreFile)
	f = &Filter{Rules: rules, Blocks: p.Blocks}

	outrel, ok := relDir(p.Dir, p.OutDir)
	if ok {
		prefix := p.Prefix
		f.Skip = func(relpath string) bool {
			return path.Dir(relpath) == outrel && IsUnitName(prefix, path.Base(relpath))
		}
	}
	return
}

// Quiet returns a predicate for paths whose changes cannot alter the
// next Pack: ignored paths, this packer's own units, and units that
// are still being written.  Watch mode drops events for them.
func (p *Packer) Quiet() func(relpath string) bool {
	f := p.Filter()
	prefix := p.Prefix
	return func(relpath string) bool {
		if IsPendingUnit(prefix, path.Base(relpath)) {
			return true
		}
		if f.Skip != nil && f.Skip(relpath) {
			return true
		}
		return f.Rules.Match(relpath)
	}
}

// relDir returns dir relative to root, slash-separated, if dir is root
// or below it.  Symlinks are resolved on both sides, the same way
// Enumerate resolves its root.
func relDir(root, dir string) (rel string, ok bool) {
	absroot, err := resolveDir(root)
	if err != nil {
		return
	}
	absdir, err := resolveDir(dir)
	if err != nil {
		return
	}
	rel, err = filepath.Rel(absroot, absdir)
	if err != nil || !filepath.IsLocal(rel) {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

func resolveDir(dir string) (abs string, err error) {
	abs, err = filepath.Abs(dir)
	if err != nil {
		return
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		// not there yet; compare it unresolved
		return abs, nil
	}
	return resolved, nil
}

// Pack enumerates Dir, filters the candidates, and packs the rest.
// Only setup failures (unusable root, unit creation) are returned as
// errors; per-file failures are logged and counted.
func (p *Packer) Pack() (res *PackResult, err error) {
	p.defaults()
	filter := p.Filter()
	candidates, err := Enumerate(p.Dir)
	if err != nil {
		return
	}
	kept := filter.Apply(candidates)
	log.Debugf("%d of %d files pass the filter", len(kept), len(candidates))
	return p.PackCandidates(kept)
}

// PackCandidates packs candidates in order.  The rotation check runs
// before each file against the size accumulated so far, so the first
// file of a unit is always accepted and a file is never split.
func (p *Packer) PackCandidates(candidates []Candidate) (res *PackResult, err error) {
	p.defaults()
	p.unit = nil
	p.seq = 0
	p.current = 0
	res = &PackResult{}

	defer func() {
		p.closeUnit(res)
		log.Infof("All files have been combined: %d files, %s, %d units",
			res.Files, humanize.IBytes(uint64(res.Bytes)), len(res.Units))
	}()

	for _, c := range candidates {
		sizeMB := c.SizeMB()
		if p.unit == nil || p.current+sizeMB > p.BudgetMB {
			err = p.rotate(res)
			if err != nil {
				return
			}
			res.Units = append(res.Units, p.unit.Name)
		}

		rec, rerr := readRecord(c)
		if rerr != nil {
			log.Errorf("Error reading file %s: %v", c.Rel, rerr)
			res.Skipped++
			continue
		}
		werr := p.unit.Add(rec, c.Size)
		if werr != nil {
			// the unit is in an unknown state; drop it, records and
			// all, and carry on in a fresh one
			unit := p.unit
			log.Errorf("discarding %s and its %d records: %v", unit.Name, unit.Records, werr)
			unit.Discard()
			p.unit = nil
			dropUnit(res, unit)
			res.Skipped++
			continue
		}
		p.current += sizeMB
		res.Files++
		res.Bytes += c.Size
	}
	return res, nil
}

func (p *Packer) rotate(res *PackResult) (err error) {
	p.closeUnit(res)
	p.seq++
	p.unit, err = CreateUnit(p.OutDir, p.Prefix, p.seq)
	if err != nil {
		return
	}
	p.current = 0
	log.Infof("Creating combined file: %s", p.unit.Name)
	if p.OnUnit != nil {
		p.OnUnit(p.unit.Name)
	}
	return
}

// closeUnit publishes the open unit.  A unit that fails to publish is
// taken back out of res.
func (p *Packer) closeUnit(res *PackResult) {
	if p.unit == nil {
		return
	}
	unit := p.unit
	p.unit = nil
	err := unit.Close()
	if err != nil {
		log.Errorf("dropping %s and its %d records: %v", unit.Name, unit.Records, err)
		dropUnit(res, unit)
	}
}

// dropUnit removes unit from res and counts its records as skipped.
func dropUnit(res *PackResult, unit *Unit) {
	for i, name := range res.Units {
		if name == unit.Name {
			res.Units = append(res.Units[:i], res.Units[i+1:]...)
			break
		}
	}
	res.Files -= unit.Records
	res.Bytes -= unit.Bytes
	res.Skipped += unit.Records
}

func readRecord(c Candidate) (rec Record, err error) {
	defer Return(&err)
	if !validPath(c.Rel) {
		return rec, errors.Errorf("path cannot be stored on one line: %q", c.Rel)
	}
	buf, err := ioutil.ReadFile(c.Abs)
	Ck(err)
	if !utf8.Valid(buf) {
		return rec, errors.Errorf("not valid UTF-8 text")
	}
	return Record{Path: c.Rel, Content: string(buf)}, nil
}

// PruneStale removes numbered units of Prefix in OutDir that res did
// not produce, so a tree that shrank between runs does not leave an
// older tail behind for the unpacker to apply on top.
func (p *Packer) PruneStale(res *PackResult) (removed []string, err error) {
	p.defaults()
	names, err := FindUnits(p.OutDir, p.Prefix)
	if err != nil {
		return
	}
	current := make(map[string]bool)
	for _, name := range res.Units {
		current[name] = true
	}
	for _, name := range names {
		if current[name] || !IsUnitName(p.Prefix, name) {
			continue
		}
		err = os.Remove(filepath.Join(p.OutDir, name))
		if err != nil {
			return removed, errors.Wrapf(err, "remove stale %s", name)
		}
		log.Infof("Removed stale combined file: %s", name)
		removed = append(removed, name)
	}
	return
}
