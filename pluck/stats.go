// Copyright 2018 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package pluck

import (
	"context"
	"fmt"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/tsv"
)

// Stats summarizes one run.
type Stats struct {
	// Clusters is the number of non-empty clusters read from the cluster file.
	Clusters int
	// Written is the number of read pairs written, one per cluster that kept
	// at least one member.
	Written int
	// Singletons counts written clusters that had a single resolved member.
	Singletons int
	// EmptyClusters counts clusters skipped because no member could be
	// resolved, plus headers without any member line.
	EmptyClusters int
	// Members is the number of member identifiers read.
	Members int
	// MissingMembers counts identifiers absent from the R1 or R2 input.
	MissingMembers int
	// MalformedLines counts skipped cluster file lines.
	MalformedLines int
	// R1Digest and R2Digest are seahash digests of the uncompressed output
	// streams. Equal inputs always produce equal digests.
	R1Digest, R2Digest uint64
}

func (s Stats) String() string {
	return fmt.Sprintf("clusters: %d, written: %d, singletons: %d, empty: %d, members: %d, missing: %d, malformed lines: %d, digests: %016x/%016x",
		s.Clusters, s.Written, s.Singletons, s.EmptyClusters, s.Members, s.MissingMembers, s.MalformedLines, s.R1Digest, s.R2Digest)
}

// metricsRow is the layout of the metrics file.
type metricsRow struct {
	Clusters       int    `tsv:"CLUSTERS"`
	Written        int    `tsv:"PAIRS_WRITTEN"`
	Singletons     int    `tsv:"SINGLETONS"`
	EmptyClusters  int    `tsv:"EMPTY_CLUSTERS"`
	Members        int    `tsv:"MEMBERS"`
	MissingMembers int    `tsv:"MISSING_MEMBERS"`
	MalformedLines int    `tsv:"MALFORMED_LINES"`
	R1Digest       string `tsv:"R1_DIGEST"`
	R2Digest       string `tsv:"R2_DIGEST"`
}

// writeMetrics writes stats as a TSV file with a header line and one row.
func writeMetrics(ctx context.Context, path string, s Stats) (err error) {
	out, err := file.Create(ctx, path)
	if err != nil {
		return errors.E(err, "couldn't create metrics file:", path)
	}
	defer func() {
		if err2 := out.Close(ctx); err == nil && err2 != nil {
			err = errors.E(err2, "error writing to metrics file:", path)
		}
	}()
	w := tsv.NewRowWriter(out.Writer(ctx))
	row := metricsRow{
		Clusters:       s.Clusters,
		Written:        s.Written,
		Singletons:     s.Singletons,
		EmptyClusters:  s.EmptyClusters,
		Members:        s.Members,
		MissingMembers: s.MissingMembers,
		MalformedLines: s.MalformedLines,
		R1Digest:       fmt.Sprintf("%016x", s.R1Digest),
		R2Digest:       fmt.Sprintf("%016x", s.R2Digest),
	}
	if err = w.Write(&row); err != nil {
		return errors.E(err, "error writing to metrics file:", path)
	}
	if err = w.Flush(); err != nil {
		return errors.E(err, "error writing to metrics file:", path)
	}
	log.Debug.Printf("wrote metrics to %s", path)
	return nil
}
