// Command z7 compresses and decompresses DEFLATE and gzip streams. Files may
// be local, on S3, or an http(s) URL.
//
// Its subcommand/flag-struct layout is grounded on the teacher's
// cmd/pbzip2/main.go: a subcmd.CommandSet dispatching to one function per
// subcommand, each taking a flag struct registered via
// subcmd.MustRegisterFlagStruct.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"cloudeng.io/cmdutil"
	"cloudeng.io/cmdutil/subcmd"
	"cloudeng.io/errors"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/file/s3file"
	"github.com/schollz/progressbar/v2"
	"golang.org/x/crypto/ssh/terminal"
	"golang.org/x/sync/errgroup"

	"github.com/z7codec/z7/deflate"
	"github.com/z7codec/z7/gzip"
	"github.com/z7codec/z7/internal/lz77"
	"github.com/z7codec/z7/internal/remote"
)

type modeFlag struct {
	Mode string `subcmd:"mode,best-size,'compression mode: no-compression, best-speed, or best-size'"`
}

func (m modeFlag) parse() (lz77.Mode, error) {
	switch m.Mode {
	case "no-compression":
		return lz77.NoCompression, nil
	case "best-speed":
		return lz77.BestSpeed, nil
	case "best-size", "":
		return lz77.BestSize, nil
	default:
		return 0, fmt.Errorf("unknown mode %q", m.Mode)
	}
}

type progressFlag struct {
	ProgressBar bool `subcmd:"progress,true,display a progress bar"`
}

type deflateCompressFlags struct {
	modeFlag
	progressFlag
	OutputFile string `subcmd:"output,,'output file or s3 path, omit for stdout'"`
}

type deflateDecompressFlags struct {
	progressFlag
	OutputFile string `subcmd:"output,,'output file or s3 path, omit for stdout'"`
}

type gzipCompressFlags struct {
	modeFlag
	progressFlag
	OutputFile string `subcmd:"output,,'output file or s3 path, omit for stdout'"`
	Name       string `subcmd:"name,,'original filename to record in the gzip header'"`
	Comment    string `subcmd:"comment,,comment to record in the gzip header"`
	HCRC       bool   `subcmd:"hcrc,false,include a header CRC16"`
}

type gzipDecompressFlags struct {
	progressFlag
	OutputFile string `subcmd:"output,,'output file or s3 path, omit for stdout'"`
}

type batchFlags struct {
	modeFlag
	Concurrency int    `subcmd:"concurrency,4,number of files to process concurrently"`
	OutputDir   string `subcmd:"output-dir,,'directory to write outputs to'"`
}

var cmdSet *subcmd.CommandSet

func init() {
	dc := subcmd.NewCommand("deflate-compress",
		subcmd.MustRegisterFlagStruct(&deflateCompressFlags{}, nil, nil),
		deflateCompress, subcmd.AtLeastNArguments(0))
	dc.Document(`compress files or stdin as a raw DEFLATE stream.`)

	dd := subcmd.NewCommand("deflate-decompress",
		subcmd.MustRegisterFlagStruct(&deflateDecompressFlags{}, nil, nil),
		deflateDecompress, subcmd.AtLeastNArguments(0))
	dd.Document(`decompress a raw DEFLATE stream from files or stdin.`)

	gc := subcmd.NewCommand("gzip-compress",
		subcmd.MustRegisterFlagStruct(&gzipCompressFlags{}, nil, nil),
		gzipCompress, subcmd.AtLeastNArguments(0))
	gc.Document(`compress files or stdin into a gzip member.`)

	gd := subcmd.NewCommand("gzip-decompress",
		subcmd.MustRegisterFlagStruct(&gzipDecompressFlags{}, nil, nil),
		gzipDecompress, subcmd.AtLeastNArguments(0))
	gd.Document(`decompress a gzip member from files or stdin.`)

	batch := subcmd.NewCommand("batch",
		subcmd.MustRegisterFlagStruct(&batchFlags{}, nil, nil),
		batchCompress, subcmd.AtLeastNArguments(1))
	batch.Document(`gzip-compress many files concurrently into --output-dir.`)

	cmdSet = subcmd.NewCommandSet(dc, dd, gc, gd, batch)
	cmdSet.Document(`compress and decompress DEFLATE and gzip streams. Files may be local, on S3 or a URL.`)

	file.RegisterImplementation("s3", func() file.Implementation {
		return s3file.NewImplementation(
			s3file.NewDefaultProvider(session.Options{}), s3file.Options{})
	})
}

func main() {
	cmdSet.MustDispatch(context.Background())
}

func openFileOrURL(ctx context.Context, name string) (io.Reader, int64, func(context.Context) error, error) {
	if strings.HasPrefix(name, "http") {
		body, err := remote.Open(ctx, name, nil)
		if err != nil {
			return nil, 0, nil, err
		}
		return body, 0, func(context.Context) error { return body.Close() }, nil
	}
	info, err := file.Stat(ctx, name)
	if err != nil {
		return nil, 0, nil, err
	}
	f, err := file.Open(ctx, name)
	if err != nil {
		return nil, 0, nil, err
	}
	return f.Reader(ctx), info.Size(), f.Close, nil
}

func createFile(ctx context.Context, name string) (io.Writer, func(context.Context) error, error) {
	if len(name) == 0 {
		return os.Stdout, func(context.Context) error { return nil }, nil
	}
	f, err := file.Create(ctx, name)
	if err != nil {
		return nil, nil, err
	}
	return f.Writer(ctx), f.Close, nil
}

// progressReader wraps src so reads drive a progress bar, mirroring the
// teacher's progressBar goroutine but driven by bytes read rather than a
// block-completion channel, since this codec has no natural block-progress
// signal to report.
func progressReader(src io.Reader, size int64, enabled bool) io.Reader {
	if !enabled || size <= 0 {
		return src
	}
	isTTY := terminal.IsTerminal(int(os.Stdout.Fd()))
	w := os.Stdout
	if !isTTY {
		w = os.Stderr
	}
	bar := progressbar.NewOptions64(size,
		progressbar.OptionSetBytes64(size),
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetPredictTime(true))
	return io.TeeReader(src, progressWriter{bar})
}

type progressWriter struct{ bar *progressbar.ProgressBar }

func (p progressWriter) Write(b []byte) (int, error) {
	p.bar.Add(len(b))
	return len(b), nil
}

func inputArgs(args []string) []string {
	if len(args) == 0 {
		return []string{""}
	}
	return args
}

func forEachInput(ctx context.Context, args []string, outputFile string, fn func(src io.Reader, size int64, dst io.Writer) error) error {
	errs := &errors.M{}
	for _, name := range inputArgs(args) {
		err := func() error {
			var rd io.Reader
			var size int64
			if name == "" {
				rd, size = os.Stdin, 0
			} else {
				r, s, cleanup, err := openFileOrURL(ctx, name)
				if err != nil {
					return err
				}
				defer cleanup(ctx)
				rd, size = r, s
			}

			wr, writerCleanup, err := createFile(ctx, outputFile)
			if err != nil {
				return err
			}
			defer writerCleanup(ctx)

			return fn(rd, size, wr)
		}()
		errs.Append(err)
	}
	return errs.Err()
}

func deflateCompress(ctx context.Context, values interface{}, args []string) error {
	cl := values.(*deflateCompressFlags)
	mode, err := cl.modeFlag.parse()
	if err != nil {
		return err
	}
	return forEachInput(ctx, args, cl.OutputFile, func(src io.Reader, size int64, dst io.Writer) error {
		return deflate.Compress(dst, progressReader(src, size, cl.ProgressBar), mode)
	})
}

func deflateDecompress(ctx context.Context, values interface{}, args []string) error {
	cl := values.(*deflateDecompressFlags)
	return forEachInput(ctx, args, cl.OutputFile, func(src io.Reader, size int64, dst io.Writer) error {
		return deflate.Decompress(dst, progressReader(src, size, cl.ProgressBar))
	})
}

func gzipCompress(ctx context.Context, values interface{}, args []string) error {
	cl := values.(*gzipCompressFlags)
	mode, err := cl.modeFlag.parse()
	if err != nil {
		return err
	}
	flags := gzip.Flags{Name: cl.Name, Comment: cl.Comment, HCRC: cl.HCRC}
	return forEachInput(ctx, args, cl.OutputFile, func(src io.Reader, size int64, dst io.Writer) error {
		return gzip.Compress(dst, progressReader(src, size, cl.ProgressBar), mode, flags)
	})
}

func gzipDecompress(ctx context.Context, values interface{}, args []string) error {
	cl := values.(*gzipDecompressFlags)
	return forEachInput(ctx, args, cl.OutputFile, func(src io.Reader, size int64, dst io.Writer) error {
		_, err := gzip.Decompress(dst, progressReader(src, size, cl.ProgressBar))
		return err
	})
}

// batchCompress gzip-compresses each input file concurrently into
// --output-dir, grounded on the teacher's concurrency knob (CommonFlags.
// Concurrency) but using an errgroup-bounded worker pool rather than the
// teacher's internal block-level pipeline, since this codec parallelizes
// across whole files rather than within one.
func batchCompress(ctx context.Context, values interface{}, args []string) error {
	cl := values.(*batchFlags)
	mode, err := cl.modeFlag.parse()
	if err != nil {
		return err
	}
	if cl.OutputDir == "" {
		return fmt.Errorf("batch requires --output-dir")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	cmdutil.HandleSignals(cancel, os.Interrupt)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cl.Concurrency)

	var mu sync.Mutex
	var failures []string

	for _, name := range args {
		name := name
		g.Go(func() error {
			src, _, cleanup, err := openFileOrURL(gctx, name)
			if err != nil {
				mu.Lock()
				failures = append(failures, fmt.Sprintf("%s: %v", name, err))
				mu.Unlock()
				return nil
			}
			defer cleanup(gctx)

			outPath := cl.OutputDir + "/" + baseName(name) + ".gz"
			dst, writerCleanup, err := createFile(gctx, outPath)
			if err != nil {
				mu.Lock()
				failures = append(failures, fmt.Sprintf("%s: %v", name, err))
				mu.Unlock()
				return nil
			}
			defer writerCleanup(gctx)

			if err := gzip.Compress(dst, src, mode, gzip.Flags{Name: baseName(name)}); err != nil {
				mu.Lock()
				failures = append(failures, fmt.Sprintf("%s: %v", name, err))
				mu.Unlock()
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	if len(failures) > 0 {
		return fmt.Errorf("batch: %d failure(s):\n%s", len(failures), strings.Join(failures, "\n"))
	}
	return nil
}

func baseName(path string) string {
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		path = path[i+1:]
	}
	return path
}
