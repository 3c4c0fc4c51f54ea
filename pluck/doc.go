// Copyright 2018 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

/*
Package pluck reduces clusters of near-duplicate read pairs to one
representative pair each.

The clusters come from an external sequence clustering tool such as
CD-HIT-EST run on concatenated or R1 reads, and are read with package clstr.
Every member name is looked up in an index of the R1 and of the R2 FASTQ
file (see fastq.Indexed), so the reads never have to fit in memory; only one
cluster per scoring thread is materialized at a time.

Within a cluster, the representative is chosen consensus first, quality
second:

  1. Pairs are grouped by their R1+R2 sequence. The largest group is the
     consensus; among equally large groups, the one whose first member comes
     first in the cluster wins.

  2. Within the consensus group, the pair with the lowest mean base-call
     error probability, 10^(-q/10) averaged over all R1 and R2 Phred
     qualities, is the representative. Equal scores go to the earlier pair.

Members missing from either FASTQ file are logged and dropped. A cluster
without any remaining member produces no output. Output pairs follow
cluster file order, independent of the number of scoring threads, so
repeated runs over the same inputs produce identical files.
*/
package pluck
