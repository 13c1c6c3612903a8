package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
)

import (
	"github.com/dustin/go-humanize"
	"github.com/timtadh/getopt"
	"go.uber.org/zap"
)

import (
	"github.com/timtadh/iobtree"
	"github.com/timtadh/iobtree/btree"
	"github.com/timtadh/iobtree/codec"
	"github.com/timtadh/iobtree/errors"
	"github.com/timtadh/iobtree/extstore"
	"github.com/timtadh/iobtree/serstore"
)

type BuildOptions struct {
	Output    string
	Blocks    bool
	BlockSize uint32
	Min, Max  int
	Meta      string
}

// ReadValues reads one unsigned integer per line. Blank lines are skipped.
func ReadValues(in io.Reader) ([]uint64, error) {
	var values []uint64
	scanner := bufio.NewScanner(in)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		v, err := strconv.ParseUint(text, 10, 64)
		if err != nil {
			return nil, errors.Misusef("line %d: expected an unsigned int, got %q", line, text)
		}
		values = append(values, v)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Storage(err, "read input")
	}
	return values, nil
}

// BuildTree bulk loads the sorted values into a new tree file.
func BuildTree(log *zap.Logger, values []uint64, opts BuildOptions) error {
	sort.Slice(values, func(i, j int) bool { return values[i] < values[j] })
	var store btree.Store[uint64, btree.Aug[uint64, btree.Empty]]
	var closer func() error
	if opts.Blocks {
		size := opts.BlockSize
		if size == 0 {
			size = extstore.DefaultBlockSize
		}
		s, err := extstore.Create(opts.Output, codec.Uint64, augs, extstore.BlockSize(size), extstore.Logger(log))
		if err != nil {
			return err
		}
		store, closer = s, s.Close
	} else {
		sopts := []serstore.Option{serstore.Logger(log)}
		if opts.Max > 0 {
			sopts = append(sopts, serstore.Fanout(opts.Min, opts.Max))
		}
		s, err := serstore.Create(opts.Output, codec.Uint64, augs, sopts...)
		if err != nil {
			return err
		}
		store, closer = s, s.Close
	}
	b, err := btree.NewBuilder(store, withLogger(log), false)
	if err != nil {
		closer()
		return err
	}
	for _, v := range values {
		if err := b.Push(v); err != nil {
			closer()
			return err
		}
	}
	if _, err := b.Build([]byte(opts.Meta)); err != nil {
		closer()
		return err
	}
	return closer()
}

func Build(log *zap.Logger, args []string) {
	args, optargs, err := getopt.GetOpt(
		args,
		"ho:",
		[]string{
			"help", "output=", "fanout=", "blocks", "block-size=", "meta=",
		},
	)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		Usage(ErrorCodes["opts"])
	}
	var opts BuildOptions
	for _, oa := range optargs {
		switch oa.Opt() {
		case "-h", "--help":
			Usage(0)
		case "-o", "--output":
			opts.Output = AssertFile(oa.Arg())
		case "--fanout":
			opts.Min, opts.Max, err = fanout(oa.Arg())
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				Usage(ErrorCodes["opts"])
			}
		case "--blocks":
			opts.Blocks = true
		case "--block-size":
			opts.BlockSize = uint32(ParseInt(oa.Arg()))
		case "--meta":
			opts.Meta = oa.Arg()
		default:
			fmt.Fprintf(os.Stderr, "Unknown flag '%v'\n", oa.Opt())
			Usage(ErrorCodes["opts"])
		}
	}
	if opts.Output == "" {
		fmt.Fprintln(os.Stderr, "Must supply an output file, try --help")
		Usage(ErrorCodes["opts"])
	}

	var in io.Reader = os.Stdin
	if len(args) > 0 {
		f, err := os.Open(AssertExists(args[0]))
		if err != nil {
			Fail(log, err)
		}
		defer f.Close()
		in = f
	}
	values, err := ReadValues(in)
	if err != nil {
		Fail(log, err)
	}
	if err := BuildTree(log, values, opts); err != nil {
		Fail(log, err)
	}
}

type DumpOptions struct {
	From, To   uint64
	HasRange   bool
	Reverse    bool
	SerOptions []serstore.Option
}

func DumpTree(log *zap.Logger, out io.Writer, path string, opts DumpOptions) error {
	t, err := OpenTree(log, path, opts.SerOptions...)
	if err != nil {
		return err
	}
	defer t.Close()
	w := bufio.NewWriter(out)
	emit := func(v uint64) error {
		_, err := fmt.Fprintln(w, v)
		return err
	}
	switch {
	case opts.HasRange:
		err = t.Tree.DoRange(opts.From, opts.To, emit)
	case opts.Reverse:
		err = iobtree.Do(t.Tree.Backward, emit)
	default:
		err = t.Tree.DoIterate(emit)
	}
	if err != nil {
		return err
	}
	return w.Flush()
}

// serOptions parses the flags shared by the read only commands.
func serOptions(opt, arg string, opts []serstore.Option) []serstore.Option {
	switch opt {
	case "--fanout":
		min, max, err := fanout(arg)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			Usage(ErrorCodes["opts"])
		}
		return append(opts, serstore.Fanout(min, max))
	}
	fmt.Fprintf(os.Stderr, "Unknown flag '%v'\n", opt)
	Usage(ErrorCodes["opts"])
	return nil
}

func treeFile(args []string) string {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "Must supply exactly one tree file, try --help")
		Usage(ErrorCodes["opts"])
	}
	return AssertExists(args[0])
}

func Dump(log *zap.Logger, args []string) {
	args, optargs, err := getopt.GetOpt(
		args,
		"hr",
		[]string{"help", "reverse", "from=", "to=", "fanout="},
	)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		Usage(ErrorCodes["opts"])
	}
	opts := DumpOptions{To: ^uint64(0)}
	for _, oa := range optargs {
		switch oa.Opt() {
		case "-h", "--help":
			Usage(0)
		case "-r", "--reverse":
			opts.Reverse = true
		case "--from":
			opts.From = ParseUint(oa.Arg())
			opts.HasRange = true
		case "--to":
			opts.To = ParseUint(oa.Arg())
			opts.HasRange = true
		default:
			opts.SerOptions = serOptions(oa.Opt(), oa.Arg(), opts.SerOptions)
		}
	}
	if opts.HasRange && opts.Reverse {
		fmt.Fprintln(os.Stderr, "--reverse cannot be used with a range")
		Usage(ErrorCodes["opts"])
	}
	if err := DumpTree(log, os.Stdout, treeFile(args), opts); err != nil {
		Fail(log, err)
	}
}

func VerifyTree(log *zap.Logger, out io.Writer, path string, opts ...serstore.Option) error {
	t, err := OpenTree(log, path, opts...)
	if err != nil {
		return err
	}
	defer t.Close()
	if err := t.Tree.Verify(); err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "ok: %d values\n", t.Tree.Size())
	return err
}

func Verify(log *zap.Logger, args []string) {
	args, optargs, err := getopt.GetOpt(args, "h", []string{"help", "fanout="})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		Usage(ErrorCodes["opts"])
	}
	var opts []serstore.Option
	for _, oa := range optargs {
		switch oa.Opt() {
		case "-h", "--help":
			Usage(0)
		default:
			opts = serOptions(oa.Opt(), oa.Arg(), opts)
		}
	}
	if err := VerifyTree(log, os.Stdout, treeFile(args), opts...); err != nil {
		Fail(log, err)
	}
}

func StatTree(log *zap.Logger, out io.Writer, path string, opts ...serstore.Option) error {
	t, err := OpenTree(log, path, opts...)
	if err != nil {
		return err
	}
	defer t.Close()
	tree := t.Tree
	rootFanout := 0
	if !tree.Empty() {
		root, err := tree.Root()
		if err != nil {
			return err
		}
		if rootFanout, err = root.Count(); err != nil {
			return err
		}
	}
	meta, err := tree.Metadata()
	if err != nil {
		return err
	}
	w := bufio.NewWriter(out)
	fmt.Fprintf(w, "kind:        %s\n", t.Kind)
	fmt.Fprintf(w, "values:      %s\n", humanize.Comma(int64(tree.Size())))
	fmt.Fprintf(w, "height:      %d\n", tree.Height())
	fmt.Fprintf(w, "root fanout: %d\n", rootFanout)
	fmt.Fprintf(w, "file size:   %s\n", humanize.IBytes(uint64(t.bytes())))
	if t.block > 0 {
		fmt.Fprintf(w, "block size:  %s\n", humanize.IBytes(uint64(t.block)))
	}
	fmt.Fprintf(w, "metadata:    %s (%q)\n", humanize.IBytes(uint64(len(meta))), meta)
	return w.Flush()
}

func Stat(log *zap.Logger, args []string) {
	args, optargs, err := getopt.GetOpt(args, "h", []string{"help", "fanout="})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		Usage(ErrorCodes["opts"])
	}
	var opts []serstore.Option
	for _, oa := range optargs {
		switch oa.Opt() {
		case "-h", "--help":
			Usage(0)
		default:
			opts = serOptions(oa.Opt(), oa.Arg(), opts)
		}
	}
	if err := StatTree(log, os.Stdout, treeFile(args), opts...); err != nil {
		Fail(log, err)
	}
}
