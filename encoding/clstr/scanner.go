// Copyright 2018 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package clstr reads the cluster membership files written by CD-HIT and
// compatible sequence clustering tools. A file consists of header lines,
// each opening a cluster, followed by one member line per sequence in that
// cluster:
//
//   >Cluster 0
//   0	150nt, >NB500956:89:HW2FHBGX2:1:11101:25648:1069... *
//   1	150nt, >NB500956:89:HW2FHBGX2:1:11101:13871:1070... at +/98.67%
//   >Cluster 1
//   0	150nt, >NB500956:89:HW2FHBGX2:1:11101:9975:1070... *
//
// The member identifier is the text between '>' and the following "...".
package clstr

import (
	"bufio"
	"io"
	"strings"

	"github.com/grailbio/base/log"
)

// Cluster is one group of member identifiers, in file order.
type Cluster struct {
	// ID is the header text after '>', e.g. "Cluster 0".
	ID string
	// Line is the 1-based line number of the header.
	Line int
	// Members lists the member identifiers.
	Members []string
}

// Kind classifies a line of a cluster file.
type Kind int

const (
	// Blank is an empty or all-whitespace line.
	Blank Kind = iota
	// Header opens a new cluster.
	Header
	// Member names one read of the current cluster.
	Member
	// Malformed is any other line.
	Malformed
)

var kindNames = [...]string{"blank", "header", "member", "malformed"}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "unknown"
	}
	return kindNames[k]
}

const memberSuffix = "..."

// Classify determines the kind of a line. For a header it also returns the
// cluster ID; for a member, the member identifier. The identifier runs from
// the first '>' of the line to the first "..." after it, so an identifier
// cannot contain "...".
func Classify(line string) (Kind, string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return Blank, ""
	}
	if line[0] == '>' {
		return Header, strings.TrimSpace(line[1:])
	}
	start := strings.IndexByte(line, '>')
	if start < 0 {
		return Malformed, ""
	}
	rest := line[start+1:]
	end := strings.Index(rest, memberSuffix)
	if end <= 0 {
		return Malformed, ""
	}
	id := rest[:end]
	if strings.ContainsAny(id, " \t") {
		return Malformed, ""
	}
	return Member, id
}

// maxLineSize bounds the length of a single line.
const maxLineSize = 16 << 20

// Scanner reads clusters from a cluster file, one at a time. Only the
// cluster being assembled is held in memory. Malformed lines are logged,
// counted and skipped. Scanners are not threadsafe.
type Scanner struct {
	b    *bufio.Scanner
	line int
	err  error
	done bool

	open      bool // a header has been seen.
	cur       Cluster
	cluster   Cluster
	malformed int
	empty     int
}

// NewScanner creates a Scanner reading from r.
func NewScanner(r io.Reader) *Scanner {
	b := bufio.NewScanner(r)
	b.Buffer(nil, maxLineSize)
	return &Scanner{b: b}
}

// Scan advances to the next non-empty cluster, which is then available
// through Cluster. Scan returns false at the end of the stream or on a read
// error; the caller should then check Err. Once Scan returns false, it
// never returns true again.
func (s *Scanner) Scan() bool {
	for !s.done {
		if !s.b.Scan() {
			s.done = true
			s.err = s.b.Err()
			if s.err == nil && s.emit() {
				return true
			}
			return false
		}
		s.line++
		text := s.b.Text()
		kind, val := Classify(text)
		switch kind {
		case Blank:
		case Header:
			emitted := s.emit()
			s.cur = Cluster{ID: val, Line: s.line}
			s.open = true
			if emitted {
				return true
			}
		case Member:
			if !s.open {
				s.malformedLine(text)
				continue
			}
			s.cur.Members = append(s.cur.Members, val)
		default:
			s.malformedLine(text)
		}
	}
	return false
}

// emit closes the open cluster. It reports whether the cluster had members
// and was made available through Cluster.
func (s *Scanner) emit() bool {
	if !s.open {
		return false
	}
	s.open = false
	if len(s.cur.Members) == 0 {
		log.Error.Printf("clstr: line %d: cluster %q has no members", s.cur.Line, s.cur.ID)
		s.empty++
		return false
	}
	s.cluster = s.cur
	s.cur = Cluster{}
	return true
}

func (s *Scanner) malformedLine(text string) {
	s.malformed++
	log.Error.Printf("clstr: line %d didn't match expected format: %q", s.line, text)
}

// Cluster returns the cluster read by the last successful call to Scan.
func (s *Scanner) Cluster() Cluster {
	return s.cluster
}

// Err returns the first read error, if any.
func (s *Scanner) Err() error {
	return s.err
}

// Line returns the number of lines read so far.
func (s *Scanner) Line() int {
	return s.line
}

// Malformed returns the number of malformed lines skipped so far.
func (s *Scanner) Malformed() int {
	return s.malformed
}

// Empty returns the number of headers seen so far that had no members.
func (s *Scanner) Empty() int {
	return s.empty
}
