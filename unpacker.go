package textpack

import (
	"io/ioutil"
	"os"
	"path"
	"path/filepath"

	"github.com/google/renameio"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Unpacker restores the records found in the units of Prefix in Dir
// into the tree at Root.
type Unpacker struct {
	Dir    string // where the units are; defaults to "."
	Root   string // where files are restored; defaults to Dir
	Prefix string // defaults to DefaultPrefix
	// OnRestore, if set, is called after each file is written.
	OnRestore func(relpath string)
}

// UnpackResult counts what an Unpack call did.
type UnpackResult struct {
	Units       []string // units found, in processing order
	UnitsFailed int      // units that could not be read
	Restored    int      // files written
	Failed      int      // records that could not be parsed or written
}

// New returns a copy of u that reads units from dir.
func (u Unpacker) New(dir string) *Unpacker {
	u.Dir = dir
	return &u
}

func (u *Unpacker) defaults() {
	if u.Dir == "" {
		u.Dir = "."
	}
	if u.Root == "" {
		u.Root = u.Dir
	}
	if u.Prefix == "" {
		u.Prefix = DefaultPrefix
	}
}

// Unpack restores every record of every unit, in unit order and then
// record order, so the last copy of a duplicated path wins.  Failures
// are logged and counted at the smallest granularity; the only error
// returned is failing to list Dir.
func (u *Unpacker) Unpack() (res *UnpackResult, err error) {
	res, err = u.each(func(rec Record) (err error) {
		err = u.Restore(rec)
		if err != nil {
			return
		}
		if u.OnRestore != nil {
			u.OnRestore(rec.Path)
		}
		return
	})
	if err != nil || len(res.Units) == 0 {
		return
	}
	log.Infof("Restored %d files from %d units (%d failed)", res.Restored, len(res.Units), res.Failed)
	return
}

// Collect resolves the archive set in memory the way Unpack would
// restore it: one record per path, holding the last copy of that path,
// in order of first appearance.  Records Unpack would refuse are
// dropped and counted as failed.
func (u *Unpacker) Collect() (records []Record, res *UnpackResult, err error) {
	index := make(map[string]int)
	res, err = u.each(func(rec Record) (err error) {
		if !filepath.IsLocal(filepath.FromSlash(rec.Path)) {
			return errors.Errorf("refusing path outside of archive: %s", rec.Path)
		}
		rec.Path = path.Clean(rec.Path)
		i, ok := index[rec.Path]
		if ok {
			records[i] = rec
			return
		}
		index[rec.Path] = len(records)
		records = append(records, rec)
		return
	})
	return
}

// each feeds every record of every unit to apply, in order, counting
// successes as restored.
func (u *Unpacker) each(apply func(Record) error) (res *UnpackResult, err error) {
	u.defaults()
	res = &UnpackResult{}

	names, err := FindUnits(u.Dir, u.Prefix)
	if err != nil {
		return
	}
	if len(names) == 0 {
		log.Infof("No combined files found for prefix %q in %s", u.Prefix, u.Dir)
		return res, nil
	}
	res.Units = names

	for _, name := range names {
		u.eachInUnit(name, res, apply)
	}
	return res, nil
}

func (u *Unpacker) eachInUnit(name string, res *UnpackResult, apply func(Record) error) {
	log.Infof("Processing %s...", name)
	buf, err := ioutil.ReadFile(filepath.Join(u.Dir, name))
	if err != nil {
		log.Errorf("Error reading file %s: %v", name, err)
		res.UnitsFailed++
		return
	}

	records, errs := ParseRecords(string(buf))
	for _, err := range errs {
		log.Errorf("Error processing file in %s: %v", name, err)
		res.Failed++
	}
	for _, rec := range records {
		err = apply(rec)
		if err != nil {
			log.Errorf("Error processing file in %s: %v", name, err)
			res.Failed++
			continue
		}
		res.Restored++
	}
}

// Restore writes one record under Root, creating parent directories
// and replacing whatever is at the target.
func (u *Unpacker) Restore(rec Record) (err error) {
	u.defaults()
	abspath, err := RestorePath(u.Root, rec.Path)
	if err != nil {
		return
	}
	err = os.MkdirAll(filepath.Dir(abspath), 0755)
	if err != nil {
		return errors.Wrapf(err, "create parent of %s", rec.Path)
	}
	err = renameio.WriteFile(abspath, []byte(rec.Content), 0644)
	if err != nil {
		return errors.Wrapf(err, "write %s", rec.Path)
	}
	log.Infof("Restored: %s", abspath)
	return
}

// RestorePath resolves a record path against root.  Paths that are
// absolute or climb out of root are refused.
func RestorePath(root, relpath string) (abspath string, err error) {
	local := filepath.FromSlash(relpath)
	if !filepath.IsLocal(local) {
		return "", errors.Errorf("refusing path outside of %s: %s", root, relpath)
	}
	absroot, err := filepath.Abs(root)
	if err != nil {
		return "", errors.Wrapf(err, "resolve %s", root)
	}
	return filepath.Join(absroot, local), nil
}
