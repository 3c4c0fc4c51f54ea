// Copyright 2018 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package pluck

import (
	"math"
	"math/rand"
	"strings"
	"testing"

	"github.com/grailbio/clusterpluck/encoding/fastq"
	"github.com/stretchr/testify/assert"
)

// qual returns a Phred+33 string of n bases of quality q.
func qual(q, n int) string {
	return strings.Repeat(string(rune(q+fastq.PhredOffset)), n)
}

func newPair(name, r1Seq, r2Seq string, q int) Pair {
	return Pair{
		R1: &fastq.Read{ID: "@" + name + " 1:N:0", Seq: r1Seq, Unk: "+", Qual: qual(q, len(r1Seq))},
		R2: &fastq.Read{ID: "@" + name + " 2:N:0", Seq: r2Seq, Unk: "+", Qual: qual(q, len(r2Seq))},
	}
}

func TestErrorScore(t *testing.T) {
	tests := []struct {
		r1Qual, r2Qual string
		want           float64
	}{
		{qual(10, 4), qual(10, 4), 0.1},
		{qual(20, 2), qual(30, 2), (0.01 + 0.001) / 2},
		{qual(0, 1), "", 1},
		{"", qual(40, 3), 0.0001},
		{"", "", 1},
		// Out of range characters are clamped to Phred 0 and 93.
		{" ", "", 1},
		{"\x7f", "", math.Pow(10, -9.3)},
	}
	for _, test := range tests {
		p := Pair{
			R1: &fastq.Read{Qual: test.r1Qual},
			R2: &fastq.Read{Qual: test.r2Qual},
		}
		assert.InEpsilon(t, test.want, ErrorScore(p), 1e-12, "quals %q %q", test.r1Qual, test.r2Qual)
	}
}

func TestSameSequence(t *testing.T) {
	tests := []struct {
		a1, a2, b1, b2 string
		want           bool
	}{
		{"ACGT", "TT", "ACGT", "TT", true},
		{"AC", "GTTT", "ACGT", "TT", true},
		{"ACGT", "TT", "A", "CGTTT", true},
		{"", "ACGT", "ACGT", "", true},
		{"ACGT", "TT", "ACGT", "TA", false},
		{"ACGT", "TT", "ACGT", "T", false},
		{"AC", "GTTT", "ACGA", "TT", false},
		{"AC", "GTTT", "ACGT", "TA", false},
	}
	for _, test := range tests {
		a := Pair{&fastq.Read{Seq: test.a1}, &fastq.Read{Seq: test.a2}}
		b := Pair{&fastq.Read{Seq: test.b1}, &fastq.Read{Seq: test.b2}}
		assert.Equal(t, test.want, sameSequence(a, b), "%+v", test)
		assert.Equal(t, test.want, sameSequence(b, a), "%+v", test)
	}
}

func TestSelect(t *testing.T) {
	tests := []struct {
		name  string
		pairs []Pair
		want  int
	}{
		{
			name:  "singleton",
			pairs: []Pair{newPair("id1", "ACGT", "GG", 2)},
			want:  0,
		},
		{
			name: "majority then quality",
			pairs: []Pair{
				newPair("id1", "ACGT", "GG", 30),
				newPair("id2", "ACGT", "GG", 10),
				newPair("id3", "TTTT", "GG", 40),
			},
			want: 0,
		},
		{
			name: "best quality last",
			pairs: []Pair{
				newPair("id1", "ACGT", "GG", 10),
				newPair("id2", "TTTT", "GG", 40),
				newPair("id3", "ACGT", "GG", 30),
			},
			want: 2,
		},
		{
			name: "minority quality is ignored",
			pairs: []Pair{
				newPair("id1", "AAAA", "CC", 41),
				newPair("id2", "ACGT", "GG", 2),
				newPair("id3", "ACGT", "GG", 3),
				newPair("id4", "AAAA", "CG", 41),
			},
			want: 2,
		},
		{
			name: "tied groups go to the first seen",
			pairs: []Pair{
				newPair("id1", "TTTT", "GG", 20),
				newPair("id2", "ACGT", "GG", 40),
				newPair("id3", "ACGT", "GG", 40),
				newPair("id4", "TTTT", "GG", 30),
			},
			want: 3,
		},
		{
			name: "tied scores go to the first seen",
			pairs: []Pair{
				newPair("id1", "TTTT", "GG", 40),
				newPair("id2", "ACGT", "GG", 30),
				newPair("id3", "ACGT", "GG", 30),
			},
			want: 1,
		},
		{
			name: "groups use the concatenated sequence",
			pairs: []Pair{
				newPair("id1", "ACGT", "TTTT", 10),
				newPair("id2", "GGGG", "GGGG", 40),
				newPair("id3", "ACGTT", "TTT", 20),
			},
			want: 2,
		},
		{
			name: "all distinct",
			pairs: []Pair{
				newPair("id1", "A", "C", 10),
				newPair("id2", "C", "C", 40),
				newPair("id3", "G", "C", 40),
			},
			want: 0,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.want, Select(test.pairs))
		})
	}
}

func TestSelectEmptyPanics(t *testing.T) {
	assert.Panics(t, func() { Select(nil) })
}

func randomSeq(r *rand.Rand, n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = "ACGT"[r.Intn(4)]
	}
	return string(b)
}

func randomQual(r *rand.Rand, n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(2 + r.Intn(40) + fastq.PhredOffset)
	}
	return string(b)
}

// bruteForceSelect is a direct, quadratic rendition of the selection rule.
func bruteForceSelect(pairs []Pair) int {
	concat := func(p Pair) string { return p.R1.Seq + p.R2.Seq }
	bestCount := 0
	var consensus string
	for _, p := range pairs {
		n := 0
		for _, q := range pairs {
			if concat(p) == concat(q) {
				n++
			}
		}
		if n > bestCount {
			bestCount, consensus = n, concat(p)
		}
	}
	best := -1
	for i, p := range pairs {
		if concat(p) != consensus {
			continue
		}
		if best < 0 || ErrorScore(p) < ErrorScore(pairs[best]) {
			best = i
		}
	}
	return best
}

func TestSelectRandom(t *testing.T) {
	r := rand.New(rand.NewSource(0))
	for iter := 0; iter < 2000; iter++ {
		nSeqs := 1 + r.Intn(4)
		seqs := make([][2]string, nSeqs)
		for i := range seqs {
			seqs[i] = [2]string{randomSeq(r, 1+r.Intn(3)), randomSeq(r, 1+r.Intn(3))}
		}
		pairs := make([]Pair, 1+r.Intn(12))
		for i := range pairs {
			s := seqs[r.Intn(nSeqs)]
			pairs[i] = Pair{
				R1: &fastq.Read{Seq: s[0], Qual: randomQual(r, len(s[0]))},
				R2: &fastq.Read{Seq: s[1], Qual: randomQual(r, len(s[1]))},
			}
		}
		want := bruteForceSelect(pairs)
		got := Select(pairs)
		if !assert.Equal(t, want, got, "iteration %d", iter) {
			break
		}
		if nSeqs == 1 {
			for _, p := range pairs {
				assert.True(t, ErrorScore(pairs[got]) <= ErrorScore(p))
			}
		}
	}
}
