// Package fuse serves a resolved archive set as a read-only filesystem,
// so a packed tree can be browsed without unpacking it.
package fuse

import (
	"context"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	. "github.com/stevegt/goadapt"
	"github.com/t7a/textpack"
)

type DirNode struct {
	fs.Inode
}

var _ = (fs.NodeGetattrer)((*DirNode)(nil))

func (n *DirNode) Getattr(ctx context.Context, fh fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	out.Mode = 0555
	return 0
}

var _ = (fs.NodeReaddirer)((*DirNode)(nil))

// Readdir lists children by name so listings are stable across calls.
func (n *DirNode) Readdir(ctx context.Context) (stream fs.DirStream, errno syscall.Errno) {
	children := n.Children()
	names := make([]string, 0, len(children))
	for name := range children {
		names = append(names, name)
	}
	sort.Strings(names)
	entries := make([]fuse.DirEntry, 0, len(names))
	for _, name := range names {
		child := children[name]
		entries = append(entries, fuse.DirEntry{
			Mode: child.Mode(),
			Name: name,
			Ino:  child.StableAttr().Ino,
		})
	}
	return fs.NewListDirStream(entries), 0
}

// root

type archiveRoot struct {
	DirNode
	records []textpack.Record
	mtime   uint64
}

var _ = (fs.NodeOnAdder)((*archiveRoot)(nil))

// OnAdd builds the whole tree up front; directories are implied by
// record paths.
func (root *archiveRoot) OnAdd(ctx context.Context) {
	for _, rec := range root.records {
		err := root.addRecord(ctx, rec)
		if err != nil {
			log.Warn(err)
		}
	}
}

func (root *archiveRoot) addRecord(ctx context.Context, rec textpack.Record) (err error) {
	parts := strings.Split(rec.Path, "/")
	dir := &root.Inode
	for _, name := range parts[:len(parts)-1] {
		child := dir.GetChild(name)
		if child == nil {
			child = dir.NewPersistentInode(ctx, &DirNode{}, fs.StableAttr{Mode: syscall.S_IFDIR})
			dir.AddChild(name, child, false)
		}
		if !child.IsDir() {
			return errors.Errorf("%s: %s is a file", rec.Path, name)
		}
		dir = child
	}
	name := parts[len(parts)-1]
	if dir.GetChild(name) != nil {
		return errors.Errorf("%s: already present", rec.Path)
	}
	file := &fileNode{
		MemRegularFile: fs.MemRegularFile{
			Data: []byte(rec.Content),
			Attr: fuse.Attr{
				Mode:  0444,
				Mtime: root.mtime,
			},
		},
	}
	dir.AddChild(name, dir.NewPersistentInode(ctx, file, fs.StableAttr{}), false)
	log.Debugf("added %s", rec.Path)
	return
}

// file

type fileNode struct {
	fs.MemRegularFile
}

var _ = (fs.NodeOpener)((*fileNode)(nil))

func (n *fileNode) Open(ctx context.Context, flags uint32) (fh fs.FileHandle, outflags uint32, errno syscall.Errno) {
	// disallow writes
	if flags&(syscall.O_RDWR|syscall.O_WRONLY) != 0 {
		return nil, 0, syscall.EROFS
	}
	// The file content is immutable, so ask the kernel to cache the data.
	return nil, fuse.FOPEN_KEEP_CACHE, fs.OK
}

var _ = (fs.NodeGetattrer)((*fileNode)(nil))

func (n *fileNode) Getattr(ctx context.Context, fh fs.FileHandle, out *fuse.AttrOut) (errno syscall.Errno) {
	defer Unpanic(&errno, msglog)
	out.Attr = n.Attr
	out.Size = uint64(len(n.Data))
	return 0
}

// server

// Serve mounts records, as resolved by textpack.Unpacker.Collect, at
// mnt and returns once the mount is live.  Records whose path collides
// with a directory, or with a record already added, are logged and
// left out.
func Serve(records []textpack.Record, mnt string) (server *fuse.Server, err error) {
	defer Return(&err)
	opts := &fs.Options{}
	// be verbose
	opts.Debug = log.IsLevelEnabled(log.DebugLevel)
	// start inode numbers at 2^16
	opts.FirstAutomaticIno = 1 << 16
	root := &archiveRoot{
		records: records,
		mtime:   uint64(time.Now().Unix()),
	}
	server, err = fs.Mount(mnt, root, opts)
	Ck(err)
	server.WaitMount()
	return
}

func msglog(msg string) {
	log.Errorf("unpanic: %v", msg)
}
