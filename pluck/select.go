// Copyright 2018 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package pluck

import (
	"math"

	"github.com/grailbio/clusterpluck/encoding/fastq"
	"github.com/minio/highwayhash"
)

// Pair is the R1 and R2 read of one sequenced fragment.
type Pair struct {
	R1, R2 *fastq.Read
}

// maxPhred is the largest quality value representable in Phred+33.
const maxPhred = '~' - fastq.PhredOffset

// errorProb[q] is the error probability of a base with Phred quality q.
var errorProb [maxPhred + 1]float64

func init() {
	for q := range errorProb {
		errorProb[q] = math.Pow(10, -float64(q)/10)
	}
}

func baseErrorProb(c byte) float64 {
	q := fastq.Phred(c)
	if q < 0 {
		q = 0
	} else if q > maxPhred {
		q = maxPhred
	}
	return errorProb[q]
}

// ErrorScore returns the mean base-call error probability over the R1 and R2
// qualities of p. Lower is better. A pair without bases scores 1.
func ErrorScore(p Pair) float64 {
	n := len(p.R1.Qual) + len(p.R2.Qual)
	if n == 0 {
		return 1
	}
	var sum float64
	for i := 0; i < len(p.R1.Qual); i++ {
		sum += baseErrorProb(p.R1.Qual[i])
	}
	for i := 0; i < len(p.R2.Qual); i++ {
		sum += baseErrorProb(p.R2.Qual[i])
	}
	return sum / float64(n)
}

// sameSequence reports whether the R1+R2 concatenations of a and b are equal.
func sameSequence(a, b Pair) bool {
	a1, a2, b1, b2 := a.R1.Seq, a.R2.Seq, b.R1.Seq, b.R2.Seq
	if len(a1)+len(a2) != len(b1)+len(b2) {
		return false
	}
	// Swap so that a1 is the shorter R1; b1 then covers a1 and spills into
	// the start of a2.
	if len(a1) > len(b1) {
		a1, a2, b1, b2 = b1, b2, a1, a2
	}
	n := len(b1) - len(a1)
	return a1 == b1[:len(a1)] && a2[:n] == b1[len(a1):] && a2[n:] == b2
}

type hashKey = [highwayhash.Size]uint8

var zeroSeed = hashKey{}

// seqGroup is a set of pairs with equal concatenated sequences.
type seqGroup struct {
	first int // cluster position of the first member.
	count int
}

// groupBySequence assigns each pair to a group of pairs with an identical
// R1+R2 sequence. It returns the group of every pair and the groups, in
// order of first appearance.
func groupBySequence(pairs []Pair) (groupOf []int, groups []seqGroup) {
	var (
		buf      []byte
		byDigest = map[hashKey][]int{}
	)
	groupOf = make([]int, len(pairs))
	for i, p := range pairs {
		buf = append(append(buf[:0], p.R1.Seq...), p.R2.Seq...)
		h := highwayhash.Sum(buf, zeroSeed[:])
		g := -1
		for _, cand := range byDigest[h] {
			if sameSequence(pairs[groups[cand].first], p) {
				g = cand
				break
			}
		}
		if g < 0 {
			g = len(groups)
			groups = append(groups, seqGroup{first: i})
			byDigest[h] = append(byDigest[h], g)
		}
		groups[g].count++
		groupOf[i] = g
	}
	return
}

// Select picks the representative of a cluster and returns its index in
// pairs. The representative is the pair with the lowest ErrorScore among
// the pairs sharing the most common R1+R2 sequence. Ties between equally
// common sequences go to the sequence seen first, and ties between equal
// scores go to the earlier pair, so the result depends only on the input
// order.
//
// REQUIRES: len(pairs) > 0.
func Select(pairs []Pair) int {
	if len(pairs) == 0 {
		panic("pluck.Select: empty cluster")
	}
	if len(pairs) == 1 {
		return 0
	}
	groupOf, groups := groupBySequence(pairs)
	consensus := 0
	for g := range groups {
		if groups[g].count > groups[consensus].count {
			consensus = g
		}
	}
	best, bestScore := -1, math.Inf(1)
	for i, p := range pairs {
		if groupOf[i] != consensus {
			continue
		}
		if score := ErrorScore(p); score < bestScore {
			best, bestScore = i, score
		}
	}
	return best
}
