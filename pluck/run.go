// Copyright 2018 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package pluck

import (
	"bufio"
	"context"
	"io"
	"io/ioutil"
	"os"
	"strings"

	"github.com/grailbio/base/compress"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/traverse"
	"github.com/grailbio/clusterpluck/encoding/fastq"
	"github.com/klauspost/compress/gzip"
)

// input is an opened, indexed FASTQ input.
type input struct {
	store *fastq.Indexed
	// r is the uncompressed FASTQ stream that store reads from.
	r       io.ReadSeeker
	closers []func() error
}

func (in *input) close() error {
	var err error
	for i := len(in.closers) - 1; i >= 0; i-- {
		if e := in.closers[i](); e != nil && err == nil {
			err = e
		}
	}
	return err
}

// spool copies r into an uncompressed temporary file so that it can be
// indexed and seeked.
func spool(r io.Reader, scratchDir, path string) (*os.File, error) {
	tmp, err := ioutil.TempFile(scratchDir, "clusterpluck-*.fastq")
	if err != nil {
		return nil, errors.E(err, "creating scratch file for", path)
	}
	if _, err = io.Copy(tmp, r); err == nil {
		_, err = tmp.Seek(0, io.SeekStart)
	}
	if err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return nil, errors.E(err, "decompressing", path)
	}
	log.Printf("decompressed %s into %s", path, tmp.Name())
	return tmp, nil
}

// openInput opens and indexes one FASTQ input. If indexPath is non-empty the
// index is read from there, otherwise the input is scanned.
func openInput(ctx context.Context, path, indexPath, scratchDir string) (_ *input, err error) {
	in := &input{}
	defer func() {
		if err != nil {
			in.close()
		}
	}()
	f, err := file.Open(ctx, path)
	if err != nil {
		return nil, errors.E(err, "open", path)
	}
	in.closers = append(in.closers, func() error { return f.Close(ctx) })
	var r io.ReadSeeker = f.Reader(ctx)
	if u := compress.NewReaderPath(r, path); u != nil {
		tmp, err := spool(u, scratchDir, path)
		if err != nil {
			return nil, err
		}
		in.closers = append(in.closers, func() error {
			tmp.Close()
			return os.Remove(tmp.Name())
		})
		r = tmp
	}
	in.r = r
	if indexPath == "" {
		log.Printf("indexing %s", path)
		if in.store, err = fastq.NewIndexedScan(r); err != nil {
			return nil, errors.E(err, "index", path)
		}
	} else {
		idx, err := file.Open(ctx, indexPath)
		if err != nil {
			return nil, errors.E(err, "open", indexPath)
		}
		in.store, err = fastq.NewIndexed(r, idx.Reader(ctx))
		if e := idx.Close(ctx); e != nil && err == nil {
			err = e
		}
		if err != nil {
			return nil, errors.E(err, "read index", indexPath, "for", path)
		}
	}
	log.Printf("indexed %d reads in %s", in.store.Len(), path)
	return in, nil
}

// checkPairs verifies that r1 and r2 are mates of each other, read by read.
// Indexed seeks before every lookup, so the inputs need not be rewound.
func checkPairs(r1, r2 *input, opts Opts) error {
	for _, in := range []*input{r1, r2} {
		if _, err := in.r.Seek(0, io.SeekStart); err != nil {
			return err
		}
	}
	n, err := fastq.CheckPairs(r1.r, r2.r)
	if err != nil {
		return errors.E(errors.Invalid, err, "checking pairs of", opts.R1Path, "and", opts.R2Path)
	}
	log.Printf("%s and %s hold %d concordant pairs", opts.R1Path, opts.R2Path, n)
	return nil
}

// output is a FASTQ output file, gzip compressed if its path ends in ".gz".
type output struct {
	path string
	f    file.File
	w    io.Writer
	gz   *gzip.Writer
	buf  *bufio.Writer
}

func createOutput(ctx context.Context, path string) (*output, error) {
	f, err := file.Create(ctx, path)
	if err != nil {
		return nil, errors.E(err, "create", path)
	}
	out := &output{path: path, f: f}
	out.buf = bufio.NewWriterSize(f.Writer(ctx), 1<<20)
	out.w = out.buf
	if strings.HasSuffix(path, ".gz") {
		out.gz = gzip.NewWriter(out.buf)
		out.w = out.gz
	}
	return out, nil
}

func (o *output) close(ctx context.Context) error {
	var err error
	if o.gz != nil {
		err = o.gz.Close()
	}
	if e := o.buf.Flush(); e != nil && err == nil {
		err = e
	}
	if e := o.f.Close(ctx); e != nil && err == nil {
		err = e
	}
	if err != nil {
		return errors.E(err, "close", o.path)
	}
	return nil
}

// Run indexes the FASTQ inputs named in opts, picks one representative read
// pair per cluster of opts.ClusterPath and writes the pairs to the outputs.
// Failure to open, parse or write any file is fatal; missing reads and
// malformed cluster lines are not (see Pluck).
func Run(ctx context.Context, opts Opts) (stats Stats, err error) {
	for _, p := range []struct{ name, val string }{
		{"R1 input", opts.R1Path},
		{"R2 input", opts.R2Path},
		{"cluster file", opts.ClusterPath},
		{"R1 output", opts.R1Output},
		{"R2 output", opts.R2Output},
	} {
		if p.val == "" {
			return stats, errors.E(errors.Invalid, "missing path:", p.name)
		}
	}

	var (
		inputs  [2]*input
		paths   = [2]string{opts.R1Path, opts.R2Path}
		indexes = [2]string{opts.R1Index, opts.R2Index}
	)
	defer func() {
		for _, in := range inputs {
			if in == nil {
				continue
			}
			if e := in.close(); e != nil && err == nil {
				err = e
			}
		}
	}()
	if err = traverse.Each(2, func(i int) error {
		var e error
		inputs[i], e = openInput(ctx, paths[i], indexes[i], opts.ScratchDir)
		return e
	}); err != nil {
		return
	}
	if opts.CheckPairs {
		if err = checkPairs(inputs[0], inputs[1], opts); err != nil {
			return
		}
	}

	clusters, err := file.Open(ctx, opts.ClusterPath)
	if err != nil {
		return stats, errors.E(err, "open", opts.ClusterPath)
	}
	defer func() {
		if e := clusters.Close(ctx); e != nil && err == nil {
			err = e
		}
	}()
	var cr io.Reader = clusters.Reader(ctx)
	if u := compress.NewReaderPath(cr, opts.ClusterPath); u != nil {
		cr = u
	}

	out1, err := createOutput(ctx, opts.R1Output)
	if err != nil {
		return
	}
	out2, err := createOutput(ctx, opts.R2Output)
	if err != nil {
		out1.close(ctx)
		return
	}

	log.Printf("processing %s", opts.ClusterPath)
	stats, err = Pluck(ctx, cr, inputs[0].store, inputs[1].store, out1.w, out2.w, opts)
	for _, o := range []*output{out1, out2} {
		if e := o.close(ctx); e != nil && err == nil {
			err = e
		}
	}
	if err != nil {
		return
	}
	if opts.MetricsFile != "" {
		if err = writeMetrics(ctx, opts.MetricsFile, stats); err != nil {
			return
		}
	}
	log.Printf("processing complete: %v", stats)
	return
}
