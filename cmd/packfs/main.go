package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/docopt/docopt-go"
	gofuse "github.com/hanwen/go-fuse/v2/fuse"
	log "github.com/sirupsen/logrus"
	. "github.com/stevegt/goadapt"
	"github.com/t7a/textpack"
	"github.com/t7a/textpack/fuse"
)

const usage = `packfs

Mount the files packed into <prefix>_N.txt as a read-only tree.

Usage:
  packfs [-C <dir>] <prefix> <mountpoint>
  packfs -h | --help

Options:
  -h --help  Show this screen.
  -C <dir>   Read units from <dir>; default $PACKDIR, else the current directory.
`

type Opts struct {
	Dir        string `docopt:"-C"`
	Prefix     string `docopt:"<prefix>"`
	Mountpoint string `docopt:"<mountpoint>"`
}

func init() {
	textpack.InitLog()
}

func main() {
	rc, msg := Run()
	if len(msg) > 0 {
		fmt.Fprintf(os.Stderr, msg+"\n")
	}
	os.Exit(rc)
}

func Run() (rc int, msg string) {
	defer Halt(&rc, &msg)

	parser := &docopt.Parser{OptionsFirst: false}
	o, _ := parser.ParseArgs(usage, os.Args[1:], "0.0")
	var opts Opts
	err := o.Bind(&opts)
	Ck(err)

	dir := opts.Dir
	if dir == "" {
		dir = os.Getenv("PACKDIR")
	}
	if dir == "" {
		dir, err = os.Getwd()
		Assert(err == nil, "can't get current directory")
	}

	err = serve(dir, opts.Prefix, opts.Mountpoint)
	Ck(err)
	return
}

func serve(dir, prefix, mountpoint string) (err error) {
	defer Return(&err)

	u := &textpack.Unpacker{Dir: dir, Prefix: prefix}
	records, res, err := u.Collect()
	Ck(err)
	log.Infof("serving %d files from %d units", len(records), len(res.Units))

	server, err := fuse.Serve(records, mountpoint)
	Ck(err)

	// unmount on exit
	defer umount(server)

	// unmount on SIGINT or SIGTERM
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		umount(server)
	}()

	server.Wait()
	return
}

func umount(server *gofuse.Server) {
	if server != nil {
		err := server.Unmount()
		if err != nil {
			log.Debugf("unmount: %v", err)
		}
	}
}
