package main

import (
	"fmt"
	"os"

	"github.com/docopt/docopt-go"
	log "github.com/sirupsen/logrus"
	. "github.com/stevegt/goadapt"
	"github.com/t7a/textpack"
)

const usage = `deconstruct

Restore the files packed into <prefix>_N.txt by construct.

Usage:
  deconstruct [options] [<prefix>]
  deconstruct -h | --help

Options:
  -h --help  Show this screen.
  -C <dir>   Read units from and restore into <dir>; default $PACKDIR, else the current directory.
`

type Opts struct {
	Dir    string `docopt:"-C"`
	Prefix string `docopt:"<prefix>"`
}

func init() {
	textpack.InitLog()
	if os.Getenv("DEBUG") != "1" {
		// progress goes to stdout; keep the log for problems
		log.SetLevel(log.WarnLevel)
	}
}

func main() {
	// see https://github.com/google/go-cmdtest
	os.Exit(run())
}

func run() (rc int) {
	var msg string
	defer func() {
		if len(msg) > 0 {
			fmt.Fprintln(os.Stderr, msg)
		}
	}()
	defer Halt(&rc, &msg)

	parser := &docopt.Parser{HelpHandler: docopt.PrintHelpOnly}
	o, err := parser.ParseArgs(usage, os.Args[1:], "0.0")
	if err != nil {
		return 64
	}
	if len(o) == 0 {
		return 0
	}
	var opts Opts
	err = o.Bind(&opts)
	Ck(err)
	log.Debug(opts)

	dir := opts.Dir
	if dir == "" {
		dir = os.Getenv("PACKDIR")
	}
	if dir == "" {
		dir, err = os.Getwd()
		Assert(err == nil, "can't get current directory")
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		msg = fmt.Sprintf("not a directory: %s", dir)
		return 66
	}

	u := textpack.Unpacker{
		Prefix: opts.Prefix,
		OnRestore: func(relpath string) {
			fmt.Printf("Restored: %s\n", relpath)
		},
	}.New(dir)
	res, err := u.Unpack()
	Ck(err)

	if len(res.Units) == 0 {
		fmt.Println("No combined files found.")
		return 0
	}
	fmt.Printf("Restored %d files from %d units", res.Restored, len(res.Units))
	if res.Failed > 0 {
		fmt.Printf(", %d failed", res.Failed)
	}
	if res.UnitsFailed > 0 {
		fmt.Printf(", %d units unreadable", res.UnitsFailed)
	}
	fmt.Println()
	return 0
}
