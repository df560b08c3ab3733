package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/docopt/docopt-go"
	log "github.com/sirupsen/logrus"
	. "github.com/stevegt/goadapt"
	"github.com/t7a/textpack"
	"github.com/t7a/textpack/watch"
)

const usage = `construct

Pack a directory tree into size-bounded text files named <prefix>_N.txt.

Usage:
  construct [options] [<prefix>] [<maxmb>]
  construct -h | --help

Options:
  -h --help        Show this screen.
  -C <dir>         Pack the tree rooted at <dir>; default $PACKDIR, else the current directory.
  --ignore=<file>  Ignore file, relative to the root [default: .gitignore].
  -w --watch       Pack again whenever the tree changes.
`

type Opts struct {
	Dir    string `docopt:"-C"`
	Ignore string `docopt:"--ignore"`
	Watch  bool   `docopt:"--watch"`
	Prefix string `docopt:"<prefix>"`
	Maxmb  string `docopt:"<maxmb>"`
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
	if err != nil || len(o) == 0 {
		// usage was already printed; a bare -h lands here too
		if err != nil {
			return 64
		}
		return 0
	}
	var opts Opts
	err = o.Bind(&opts)
	Ck(err)
	log.Debug(opts)

	dir := packdir(opts.Dir)
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		msg = fmt.Sprintf("not a directory: %s", dir)
		return 66
	}

	p := textpack.Packer{
		Prefix:   opts.Prefix,
		BudgetMB: budget(opts.Maxmb),
		OnUnit: func(name string) {
			fmt.Printf("Creating combined file: %s\n", name)
		},
	}.New(dir)
	if opts.Ignore != "" {
		p.IgnoreFile = filepath.Join(dir, opts.Ignore)
	}

	if !opts.Watch {
		res, err := p.Pack()
		Ck(err)
		summary(res)
		return 0
	}

	err = watchAndPack(p)
	Ck(err)
	return 0
}

// packdir picks the root: -C, then $PACKDIR, then the current
// directory.
func packdir(opt string) (dir string) {
	dir = opt
	if dir == "" {
		dir = os.Getenv("PACKDIR")
	}
	if dir == "" {
		var err error
		dir, err = os.Getwd()
		Assert(err == nil, "can't get current directory")
	}
	return
}

// budget parses <maxmb>.  Anything that is not a positive number means
// the default.
func budget(arg string) float64 {
	if arg == "" {
		return textpack.DefaultBudgetMB
	}
	mb, err := strconv.ParseFloat(arg, 64)
	if err != nil || mb <= 0 {
		log.Warnf("invalid size %q, using %d MB", arg, textpack.DefaultBudgetMB)
		return textpack.DefaultBudgetMB
	}
	return mb
}

func summary(res *textpack.PackResult) {
	fmt.Printf("All files have been combined: %d files, %d units", res.Files, len(res.Units))
	if res.Skipped > 0 {
		fmt.Printf(", %d skipped", res.Skipped)
	}
	fmt.Println()
}

// watchAndPack packs once, then again after every burst of changes,
// until SIGINT or SIGTERM.
func watchAndPack(p *textpack.Packer) (err error) {
	defer Return(&err)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	pack := func() (err error) {
		res, err := p.Pack()
		if err != nil {
			return
		}
		summary(res)
		_, err = p.PruneStale(res)
		return
	}
	err = pack()
	Ck(err)

	w, err := watch.New(p.Dir, p.Quiet())
	Ck(err)
	fmt.Printf("Watching %s\n", p.Dir)
	return w.Run(ctx, func(changed []string) error {
		log.Infof("%d paths changed, packing again", len(changed))
		return pack()
	})
}
