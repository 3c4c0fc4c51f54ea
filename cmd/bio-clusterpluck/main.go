// Copyright 2018 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package main

/*
bio-clusterpluck reduces clusters of near-duplicate read pairs, as computed
by CD-HIT-EST or a compatible tool, to one representative pair each. See
github.com/grailbio/clusterpluck/pluck/doc.go for the selection rule.

Sample usage:

  bio-clusterpluck pluck -parallelism 8 -metrics stats.tsv \
      in_R1.fastq.gz in_R2.fastq.gz clusters.clstr out_R1.fastq.gz out_R2.fastq.gz

Indexing a FASTQ file once lets repeated runs skip the indexing pass:

  bio-clusterpluck index in_R1.fastq.gz in_R1.fqi
  bio-clusterpluck pluck -r1-index in_R1.fqi ...
*/

import (
	"context"
	"fmt"
	"io"

	"github.com/grailbio/base/cmdutil"
	"github.com/grailbio/base/compress"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/clusterpluck/encoding/fastq"
	"github.com/grailbio/clusterpluck/pluck"
	"v.io/x/lib/cmdline"
)

func newCmdPluck() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "pluck",
		Short:    "Pick one representative read pair per cluster",
		ArgsName: "r1 r2 clusters r1-out r2-out",
		ArgsLong: `
r1 and r2 are the paired FASTQ inputs, optionally compressed. clusters is
the cluster membership (.clstr) file. r1-out and r2-out receive one read
pair per cluster, in cluster order; outputs ending in .gz are compressed.`,
	}
	opts := pluck.DefaultOpts
	cmd.Flags.IntVar(&opts.Parallelism, "parallelism", opts.Parallelism, "Number of clusters to score concurrently")
	cmd.Flags.StringVar(&opts.R1Index, "r1-index", "", "Index of the R1 input written by the index command. By default the input is scanned")
	cmd.Flags.StringVar(&opts.R2Index, "r2-index", "", "Index of the R2 input written by the index command. By default the input is scanned")
	cmd.Flags.StringVar(&opts.MetricsFile, "metrics", "", "Output metrics file")
	cmd.Flags.StringVar(&opts.ScratchDir, "scratch-dir", opts.ScratchDir, "Directory for decompressed copies of compressed inputs (default os.TempDir())")
	cmd.Flags.BoolVar(&opts.CheckPairs, "check-pairs", false, "Verify that r1 and r2 list the same read names in the same order before processing clusters")
	cmd.Flags.IntVar(&opts.ProgressInterval, "progress", opts.ProgressInterval, "Log progress every this many clusters; 0 disables progress logging")
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 5 {
			return env.UsageErrorf("pluck takes five paths (r1 r2 clusters r1-out r2-out), but got %v", argv)
		}
		opts.R1Path, opts.R2Path, opts.ClusterPath = argv[0], argv[1], argv[2]
		opts.R1Output, opts.R2Output = argv[3], argv[4]
		stats, err := pluck.Run(vcontext.Background(), opts)
		if err != nil {
			return err
		}
		fmt.Fprintf(env.Stdout, "%d clusters, %d pairs written, %d empty clusters skipped, %d missing reads, %d malformed lines\n",
			stats.Clusters, stats.Written, stats.EmptyClusters, stats.MissingMembers, stats.MalformedLines)
		return nil
	})
	return cmd
}

func newCmdIndex() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "index",
		Short:    "Write a read name index of a FASTQ file",
		ArgsName: "fastq index",
	}
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 2 {
			return env.UsageErrorf("index takes fastq and index paths, but got %v", argv)
		}
		return writeIndex(vcontext.Background(), argv[0], argv[1])
	})
	return cmd
}

// writeIndex indexes the FASTQ file at inPath. Compressed inputs are
// indexed by their uncompressed offsets, which is what the pluck command
// needs after it decompresses them.
func writeIndex(ctx context.Context, inPath, outPath string) (err error) {
	in, err := file.Open(ctx, inPath)
	if err != nil {
		return errors.E(err, "open", inPath)
	}
	defer func() {
		if e := in.Close(ctx); e != nil && err == nil {
			err = e
		}
	}()
	var r io.Reader = in.Reader(ctx)
	if u := compress.NewReaderPath(r, inPath); u != nil {
		r = u
	}
	out, err := file.Create(ctx, outPath)
	if err != nil {
		return errors.E(err, "create", outPath)
	}
	if err = fastq.GenerateIndex(out.Writer(ctx), r); err != nil {
		out.Discard(ctx)
		return errors.E(err, "index", inPath)
	}
	if err = out.Close(ctx); err != nil {
		return errors.E(err, "close", outPath)
	}
	log.Printf("wrote index of %s to %s", inPath, outPath)
	return nil
}

func main() {
	cmdline.HideGlobalFlagsExcept()
	cmdline.Main(
		&cmdline.Command{
			Name:     "bio-clusterpluck",
			Short:    "Pick representative read pairs from clusters of near-duplicate reads",
			LookPath: false,
			Children: []*cmdline.Command{
				newCmdPluck(),
				newCmdIndex(),
			},
		})
}
