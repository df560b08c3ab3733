package textpack

import (
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
)

// BlockSet is a set of lower-cased file extensions, including the dot.
type BlockSet map[string]bool

// DefaultBlockSet lists the binary media formats that are never packed.
var DefaultBlockSet = NewBlockSet(
	".jpg", ".jpeg", ".png", ".gif", ".bmp", ".tiff", ".svg", // images
	".pdf",
	".mp3", ".wav", ".aac", ".flac", ".ogg", // audio
	".mp4", ".avi", ".mkv", ".mov", ".wmv", ".flv", // video
)

// NewBlockSet returns a set of the given extensions, lower-cased.
func NewBlockSet(exts ...string) BlockSet {
	set := make(BlockSet, len(exts))
	for _, ext := range exts {
		set[strings.ToLower(ext)] = true
	}
	return set
}

// Has reports whether the extension of relpath is blocked.
func (set BlockSet) Has(relpath string) bool {
	ext := strings.ToLower(filepath.Ext(relpath))
	if ext == "" {
		return false
	}
	return set[ext]
}

// ShouldExclude applies the ignore rules first and the block set
// second.  Neither is a security boundary.
func ShouldExclude(relpath string, rules *Rules, blocks BlockSet) bool {
	if rules.Match(relpath) {
		return true
	}
	if blocks.Has(relpath) {
		return true
	}
	return false
}

// Filter bundles everything the packer consults before reading a
// candidate.  Skip, if set, is checked after the rules and the block
// set.
type Filter struct {
	Rules  *Rules
	Blocks BlockSet
	Skip   func(relpath string) bool
}

// Exclude reports whether relpath is left out of the archive.
func (f *Filter) Exclude(relpath string) bool {
	if ShouldExclude(relpath, f.Rules, f.Blocks) {
		return true
	}
	return f.Skip != nil && f.Skip(relpath)
}

// Apply returns the candidates that pass the filter, in their
// original order.
func (f *Filter) Apply(candidates []Candidate) (kept []Candidate) {
	for _, c := range candidates {
		if f.Exclude(c.Rel) {
			log.Debugf("excluded %s", c.Rel)
			continue
		}
		kept = append(kept, c)
	}
	return
}
