// Copyright 2018 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package clstr

import (
	"strings"
	"testing"

	"github.com/grailbio/testutil/expect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const clstrData = `>Cluster 0
0	150nt, >NB500956:89:HW2FHBGX2:1:11101:25648:1069... *
1	150nt, >NB500956:89:HW2FHBGX2:1:11101:13871:1070... at +/98.67%
>Cluster 1
0	148nt, >read3... *
>Cluster 2
0	150nt, >read4... at -/99.33%
1	150nt, >read5... *
2	149nt, >read6... at +/100.00%
`

func scanAll(t *testing.T, data string) ([]Cluster, *Scanner) {
	s := NewScanner(strings.NewReader(data))
	var clusters []Cluster
	for s.Scan() {
		clusters = append(clusters, s.Cluster())
	}
	require.NoError(t, s.Err())
	return clusters, s
}

func TestClassify(t *testing.T) {
	tests := []struct {
		line string
		kind Kind
		val  string
	}{
		{">Cluster 12", Header, "Cluster 12"},
		{"  >Cluster 3  ", Header, "Cluster 3"},
		{"0\t150nt, >read1... *", Member, "read1"},
		{"1\t150nt, >M0:1:A:1:1101:15589:1332... at +/98.67%", Member, "M0:1:A:1:1101:15589:1332"},
		{"3\t150aa, >sp|P12345|X... at 87.50%", Member, "sp|P12345|X"},
		{"0\t150nt, >a...b... *", Member, "a"},
		{"0\t150nt, >a>b... *", Member, "a>b"},
		{"", Blank, ""},
		{" \t", Blank, ""},
		{"0\t150nt, read1... *", Malformed, ""},
		{"0\t150nt, >read1 *", Malformed, ""},
		{"0\t150nt, >... *", Malformed, ""},
		{"0\t150nt, >read 1... *", Malformed, ""},
		{"garbage", Malformed, ""},
	}
	for _, test := range tests {
		kind, val := Classify(test.line)
		assert.Equal(t, test.kind, kind, "line %q", test.line)
		assert.Equal(t, test.val, val, "line %q", test.line)
	}
}

func TestScan(t *testing.T) {
	clusters, s := scanAll(t, clstrData)
	expect.EQ(t, clusters, []Cluster{
		{ID: "Cluster 0", Line: 1, Members: []string{
			"NB500956:89:HW2FHBGX2:1:11101:25648:1069",
			"NB500956:89:HW2FHBGX2:1:11101:13871:1070",
		}},
		{ID: "Cluster 1", Line: 4, Members: []string{"read3"}},
		{ID: "Cluster 2", Line: 6, Members: []string{"read4", "read5", "read6"}},
	})
	expect.EQ(t, s.Line(), 9)
	expect.EQ(t, s.Malformed(), 0)
	expect.EQ(t, s.Empty(), 0)
	assert.False(t, s.Scan())
}

func TestScanMalformed(t *testing.T) {
	data := `0	150nt, >orphan... *
>Cluster 0
0	150nt, >read1... *
this line is garbage

1	150nt, >read2... *
>Cluster 1
0	150nt read3
0	150nt, >read4... *
`
	clusters, s := scanAll(t, data)
	expect.EQ(t, clusters, []Cluster{
		{ID: "Cluster 0", Line: 2, Members: []string{"read1", "read2"}},
		{ID: "Cluster 1", Line: 7, Members: []string{"read4"}},
	})
	expect.EQ(t, s.Malformed(), 3)
}

func TestScanEmptyClusters(t *testing.T) {
	data := ">Cluster 0\n>Cluster 1\n0\t1nt, >a... *\n>Cluster 2\n>Cluster 3\n"
	clusters, s := scanAll(t, data)
	expect.EQ(t, clusters, []Cluster{{ID: "Cluster 1", Line: 2, Members: []string{"a"}}})
	expect.EQ(t, s.Empty(), 3)
}

func TestScanNoTrailingNewline(t *testing.T) {
	clusters, _ := scanAll(t, ">Cluster 0\n0\t1nt, >a... *\n1\t1nt, >b... at 100%")
	expect.EQ(t, clusters, []Cluster{{ID: "Cluster 0", Line: 1, Members: []string{"a", "b"}}})
}

func TestScanEmptyInput(t *testing.T) {
	clusters, s := scanAll(t, "")
	assert.Empty(t, clusters)
	expect.EQ(t, s.Line(), 0)
}

func TestClustersAreIndependent(t *testing.T) {
	s := NewScanner(strings.NewReader(clstrData))
	require.True(t, s.Scan())
	first := s.Cluster()
	require.True(t, s.Scan())
	expect.EQ(t, first.Members, []string{
		"NB500956:89:HW2FHBGX2:1:11101:25648:1069",
		"NB500956:89:HW2FHBGX2:1:11101:13871:1070",
	})
}

func TestKindString(t *testing.T) {
	expect.EQ(t, Header.String(), "header")
	expect.EQ(t, Malformed.String(), "malformed")
	expect.EQ(t, Kind(17).String(), "unknown")
}
