// Copyright 2018 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package pluck

import (
	"context"
	"io"
	"runtime"
	"sync"

	"blainsmith.com/go/seahash"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/syncqueue"
	"github.com/grailbio/clusterpluck/encoding/clstr"
	"github.com/grailbio/clusterpluck/encoding/fastq"
)

// Opts configures Run.
type Opts struct {
	// R1Path and R2Path are the paired FASTQ inputs. Compressed inputs are
	// decompressed into ScratchDir before indexing.
	R1Path, R2Path string
	// R1Index and R2Index optionally name indexes written by
	// fastq.GenerateIndex. If empty, the inputs are scanned.
	R1Index, R2Index string
	// ClusterPath is the cluster membership (.clstr) file.
	ClusterPath string
	// R1Output and R2Output receive one read pair per cluster. Paths ending
	// in ".gz" are gzip compressed.
	R1Output, R2Output string
	// MetricsFile, if set, receives the run statistics as TSV.
	MetricsFile string
	// ScratchDir holds decompressed copies of compressed inputs.
	ScratchDir string
	// Parallelism is the number of clusters resolved and scored
	// concurrently. Output order does not depend on it.
	Parallelism int
	// ProgressInterval is the number of clusters between progress log
	// lines; 0 disables them.
	ProgressInterval int
	// CheckPairs makes Run verify, before processing any cluster, that the
	// R1 and R2 inputs list the same read names in the same order.
	CheckPairs bool
}

// DefaultOpts holds the default values of Opts.
var DefaultOpts = Opts{
	ScratchDir:       "",
	Parallelism:      runtime.NumCPU(),
	ProgressInterval: 1000000,
}

// Store returns reads by name. *fastq.Indexed implements Store.
type Store interface {
	Get(name string) (*fastq.Read, error)
}

type job struct {
	seq     int
	cluster clstr.Cluster
}

type result struct {
	cluster clstr.Cluster
	// pair is the representative, nil if no member was resolved.
	pair     *Pair
	resolved int
	// missing lists members absent from either store, with the lookup error.
	missing []missingMember
}

type missingMember struct {
	name string
	err  error
}

// resolve looks up every member of c in r1 and r2 and selects the
// representative among the pairs found.
func resolve(c clstr.Cluster, r1, r2 Store) result {
	res := result{cluster: c}
	pairs := make([]Pair, 0, len(c.Members))
	for _, name := range c.Members {
		read1, err := r1.Get(name)
		if err != nil {
			res.missing = append(res.missing, missingMember{name, err})
			continue
		}
		read2, err := r2.Get(name)
		if err != nil {
			res.missing = append(res.missing, missingMember{name, err})
			continue
		}
		pairs = append(pairs, Pair{read1, read2})
	}
	res.resolved = len(pairs)
	if len(pairs) > 0 {
		p := pairs[Select(pairs)]
		res.pair = &p
	}
	return res
}

// Pluck reads clusters from the cluster file in clusters, picks the
// representative read pair of every cluster, and writes its reads to w1 and
// w2. Members missing from r1 or r2 are dropped, and clusters left without
// members are skipped; both are logged and counted in the returned Stats.
// Lookup errors other than errors.NotExist abort the run.
//
// The i'th pair written belongs to the i'th cluster that kept a member, in
// cluster file order, regardless of opts.Parallelism.
func Pluck(ctx context.Context, clusters io.Reader, r1, r2 Store, w1, w2 io.Writer, opts Opts) (Stats, error) {
	var (
		stats      Stats
		parallel   = opts.Parallelism
		h1, h2     = seahash.New(), seahash.New()
		out        = fastq.NewPairWriter(io.MultiWriter(w1, h1), io.MultiWriter(w2, h2))
		sc         = clstr.NewScanner(clusters)
		jobCh      = make(chan job, 1024)
		e          errors.Once
		wgScan     sync.WaitGroup
		wgWork     sync.WaitGroup
		nClusters  int
		nMalformed int
		nEmpty     int
	)
	if parallel <= 0 {
		parallel = 1
	}
	oq := syncqueue.NewOrderedQueue(4 * parallel)

	// The scanner thread
	wgScan.Add(1)
	go func() {
		defer wgScan.Done()
		defer close(jobCh)
		for sc.Scan() {
			if err := ctx.Err(); err != nil {
				e.Set(err)
				break
			}
			if e.Err() != nil {
				break
			}
			jobCh <- job{seq: nClusters, cluster: sc.Cluster()}
			nClusters++
		}
		if err := sc.Err(); err != nil {
			e.Set(errors.E(err, "reading clusters"))
		}
		nMalformed, nEmpty = sc.Malformed(), sc.Empty()
	}()

	// The scoring threads
	for i := 0; i < parallel; i++ {
		wgWork.Add(1)
		go func() {
			defer wgWork.Done()
			closed := false
			// Keep draining jobCh after the queue is closed so that the
			// scanner thread never blocks.
			for j := range jobCh {
				if closed {
					continue
				}
				if err := oq.Insert(j.seq, resolve(j.cluster, r1, r2)); err != nil {
					e.Set(err)
					closed = true
				}
			}
		}()
	}
	go func() {
		wgWork.Wait()
		if err := oq.Close(nil); err != nil {
			e.Set(err)
		}
	}()

	// Results are written in cluster order.
	for {
		val, ok, err := oq.Next()
		if err != nil {
			e.Set(err)
			break
		}
		if !ok {
			break
		}
		res := val.(result)
		if err := record(&stats, res, out, opts); err != nil {
			e.Set(err)
			oq.Close(err)
			break
		}
	}
	wgWork.Wait()
	wgScan.Wait()
	stats.Clusters = nClusters
	stats.MalformedLines = nMalformed
	stats.EmptyClusters += nEmpty
	if err := e.Err(); err != nil {
		return stats, err
	}
	if err := out.Flush(); err != nil {
		return stats, err
	}
	stats.R1Digest, stats.R2Digest = h1.Sum64(), h2.Sum64()
	return stats, nil
}

// record logs the diagnostics of one resolved cluster, writes its
// representative and updates stats.
func record(stats *Stats, res result, out *fastq.PairWriter, opts Opts) error {
	c := res.cluster
	stats.Members += len(c.Members)
	for _, m := range res.missing {
		if !errors.Is(errors.NotExist, m.err) {
			return errors.E(m.err, "looking up", m.name)
		}
		stats.MissingMembers++
		log.Error.Printf("read ID %s of cluster %q (line %d) not found in FASTQ files", m.name, c.ID, c.Line)
	}
	n := stats.Written + stats.EmptyClusters + 1
	if opts.ProgressInterval > 0 && n%opts.ProgressInterval == 0 {
		log.Printf("processed %d clusters", n)
	}
	if res.pair == nil {
		stats.EmptyClusters++
		log.Error.Printf("cluster %q (line %d): none of %d members found, skipping", c.ID, c.Line, len(c.Members))
		return nil
	}
	if res.resolved == 1 {
		stats.Singletons++
	}
	if log.At(log.Debug) {
		log.Debug.Printf("cluster %q: %d/%d members, representative %s", c.ID, res.resolved, len(c.Members), res.pair.R1.Name())
	}
	stats.Written++
	return out.Write(res.pair.R1, res.pair.R2)
}
