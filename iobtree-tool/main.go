package main

import (
	"fmt"
	"os"
	"path"
	"strconv"
)

import (
	"github.com/timtadh/getopt"
	"go.uber.org/zap"
)

import (
	"github.com/timtadh/iobtree/errors"
)

var ErrorCodes map[string]int = map[string]int{
	"usage":   0,
	"failed":  1,
	"version": 2,
	"opts":    3,
	"badint":  5,
	"badfile": 7,
}

var UsageMessage string = "iobtree-tool [-v] <command> [options] <tree-file>"
var ExtendedMessage string = `
iobtree-tool -- build and inspect tree files of unsigned integers

Both kinds of tree file are understood: serialized trees (written once by
build, the default) and block trees (--blocks). The kind of an existing
file is read from its header.

Global Options
  -h, --help                view this message
  -v, --verbose             log to stderr
  --commands                list the commands

build

  $ iobtree-tool build -o <tree-file> [<input>]

  Reads one unsigned integer per line from <input> (default stdin), sorts
  them and bulk loads a tree.

  Options
    -h, --help                view this message
    -o, --output=<path>       the tree file to write (required)
    --fanout=<min>,<max>      node occupancy (serialized trees)
    --blocks                  write a block tree instead
    --block-size=<int>        block size of a block tree, default 4096
    --meta=<string>           metadata to store with the tree

dump

  $ iobtree-tool dump [--from=<int>] [--to=<int>] <tree-file>

  Prints the values, one per line, optionally only from <= v < to.

  Options
    -h, --help                view this message
    -r, --reverse             largest value first
    --from=<int>
    --to=<int>
    --fanout=<min>,<max>      the fanout a serialized tree was built with

verify

  $ iobtree-tool verify <tree-file>

  Checks order, occupancy, counts and augments of every node.

  Options
    --fanout=<min>,<max>      the fanout a serialized tree was built with

stat

  $ iobtree-tool stat <tree-file>

  Prints the size, height, root fanout, file size and metadata.

  Options
    --fanout=<min>,<max>      the fanout a serialized tree was built with
`

func Usage(code int) {
	fmt.Fprintln(os.Stderr, UsageMessage)
	if code == 0 {
		fmt.Fprintln(os.Stdout, ExtendedMessage)
		code = ErrorCodes["usage"]
	} else {
		fmt.Fprintln(os.Stderr, "Try -h or --help for help")
	}
	os.Exit(code)
}

func ParseInt(str string) int {
	i, err := strconv.Atoi(str)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing '%v' expected an int\n", str)
		Usage(ErrorCodes["badint"])
	}
	return i
}

func ParseUint(str string) uint64 {
	i, err := strconv.ParseUint(str, 10, 64)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing '%v' expected an unsigned int\n", str)
		Usage(ErrorCodes["badint"])
	}
	return i
}

func AssertFile(fname string) string {
	fname = path.Clean(fname)
	fi, err := os.Stat(fname)
	if err != nil && os.IsNotExist(err) {
		return fname
	} else if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		Usage(ErrorCodes["badfile"])
	} else if fi.IsDir() {
		fmt.Fprintf(os.Stderr, "Passed in file was a directory, %s\n", fname)
		Usage(ErrorCodes["badfile"])
	}
	return fname
}

func AssertExists(fname string) string {
	fname = AssertFile(fname)
	if _, err := os.Stat(fname); err != nil {
		fmt.Fprintf(os.Stderr, "No such file, %s\n", fname)
		Usage(ErrorCodes["badfile"])
	}
	return fname
}

// Report is the message Fail prints: the error, with its stack when the
// logger is verbose.
func Report(log *zap.Logger, err error) string {
	if log.Core().Enabled(zap.DebugLevel) {
		return errors.Stack(err)
	}
	return err.Error()
}

// Fail reports an error from a command and exits.
func Fail(log *zap.Logger, err error) {
	log.Error("command failed", zap.Error(err))
	fmt.Fprintln(os.Stderr, Report(log, err))
	os.Exit(ErrorCodes["failed"])
}

func main() {
	args, optargs, err := getopt.GetOpt(
		os.Args[1:],
		"hv",
		[]string{
			"help", "verbose", "commands",
		},
	)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		Usage(ErrorCodes["opts"])
	}

	commands := map[string]func(*zap.Logger, []string){
		"build":  Build,
		"dump":   Dump,
		"verify": Verify,
		"stat":   Stat,
	}

	verbose := false
	for _, oa := range optargs {
		switch oa.Opt() {
		case "-h", "--help":
			Usage(0)
		case "-v", "--verbose":
			verbose = true
		case "--commands":
			fmt.Fprintf(os.Stderr, "Commands\n")
			for name := range commands {
				fmt.Fprintf(os.Stderr, "  %v\n", name)
			}
			os.Exit(0)
		default:
			fmt.Fprintf(os.Stderr, "Unknown flag '%v'\n", oa.Opt())
			Usage(ErrorCodes["opts"])
		}
	}

	if len(args) <= 0 {
		fmt.Fprintln(os.Stderr, "Must supply a command, try --help")
		Usage(ErrorCodes["opts"])
	}

	command, has := commands[args[0]]
	if !has {
		fmt.Fprintf(os.Stderr, "Command '%v' not supported. Try --commands.\n", args[0])
		Usage(ErrorCodes["opts"])
	}

	log := zap.NewNop()
	if verbose {
		log, err = zap.NewDevelopment()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(ErrorCodes["failed"])
		}
		defer log.Sync()
	}

	command(log, args[1:])
}
