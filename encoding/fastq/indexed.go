package fastq

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/dgryski/go-farm"
	"github.com/grailbio/base/errors"
	gunsafe "github.com/grailbio/base/unsafe"
)

type indexEntry struct {
	offset int64
	length int32
}

// Indexed provides random access to the reads of a FASTQ file by read name,
// without holding the reads in memory. Only a 64-bit hash of each name and
// the extent of its record are kept; a lookup seeks to each candidate
// extent, parses the record, and compares the name, so hash collisions are
// resolved exactly.
//
// When a name occurs more than once in the file, the first occurrence wins.
//
// Indexed is safe for concurrent use.
type Indexed struct {
	// seqs maps the hash of a read name to its extent. Names whose hash is
	// already in seqs spill into overflow, in file order.
	seqs     map[uint64]indexEntry
	overflow map[uint64][]indexEntry
	n        int

	mu     sync.Mutex // guards reader and buf.
	reader io.ReadSeeker
	buf    []byte
}

func hashName(name string) uint64 {
	return farm.Hash64(gunsafe.StringToBytes(name))
}

func newIndexed(in io.ReadSeeker) *Indexed {
	return &Indexed{
		seqs:     make(map[uint64]indexEntry),
		overflow: make(map[uint64][]indexEntry),
		reader:   in,
	}
}

func (f *Indexed) add(name string, offset, length int64) error {
	if length > (1<<31)-1 {
		return errors.E(errors.Invalid, "FASTQ record too long:", name)
	}
	ent := indexEntry{offset: offset, length: int32(length)}
	h := hashName(name)
	if _, ok := f.seqs[h]; ok {
		f.overflow[h] = append(f.overflow[h], ent)
	} else {
		f.seqs[h] = ent
	}
	f.n++
	return nil
}

// NewIndexed creates an Indexed that looks up reads in fastq using an index
// previously written by GenerateIndex.
func NewIndexed(fastq io.ReadSeeker, index io.Reader) (*Indexed, error) {
	f := newIndexed(fastq)
	var err error
	if e := readIndex(index, func(row indexRow) {
		if err == nil {
			err = f.add(row.Name, row.Offset, row.Length)
		}
	}); e != nil {
		return nil, e
	}
	if err != nil {
		return nil, err
	}
	return f, nil
}

// NewIndexedScan creates an Indexed by reading fastq once from its current
// position. It returns an errors.Invalid error if fastq is not a FASTQ
// stream. The reader is rewound to the start before NewIndexedScan returns.
func NewIndexedScan(fastq io.ReadSeeker) (*Indexed, error) {
	f := newIndexed(fastq)
	sc := NewScanner(fastq, ID)
	var read Read
	for sc.Scan(&read) {
		off, n := sc.Extent()
		if err := f.add(ReadName(read.ID), off, n); err != nil {
			return nil, err
		}
	}
	if err := sc.Err(); err != nil {
		return nil, errors.E(errors.Invalid, err, fmt.Sprintf("malformed FASTQ file at read %d", f.n))
	}
	if _, err := fastq.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	return f, nil
}

// Len returns the number of indexed reads.
func (f *Indexed) Len() int {
	return f.n
}

// Get returns the read with the given name. It returns an errors.NotExist
// error if no such read is indexed, and an errors.Invalid error if the index
// does not match the file.
func (f *Indexed) Get(name string) (*Read, error) {
	h := hashName(name)
	ent, ok := f.seqs[h]
	if !ok {
		return nil, errors.E(errors.NotExist, "read not found:", name)
	}
	for _, e := range append([]indexEntry{ent}, f.overflow[h]...) {
		r, err := f.readAt(e)
		if err != nil {
			return nil, err
		}
		if r.Name() == name {
			return r, nil
		}
	}
	// The hash of name is indexed, but no indexed record carries the name,
	// so the file changed after it was indexed.
	return nil, errors.E(errors.Invalid, "read", name, "is indexed but not at its indexed offset (stale index?)")
}

func (f *Indexed) readAt(ent indexEntry) (*Read, error) {
	f.mu.Lock()
	if cap(f.buf) < int(ent.length) {
		f.buf = make([]byte, ent.length)
	}
	buf := f.buf[:ent.length]
	if _, err := f.reader.Seek(ent.offset, io.SeekStart); err != nil {
		f.mu.Unlock()
		return nil, errors.E(err, fmt.Sprintf("failed to seek to offset %d", ent.offset))
	}
	if _, err := io.ReadFull(f.reader, buf); err != nil {
		f.mu.Unlock()
		return nil, errors.E(err, fmt.Sprintf("failed to read %d bytes at offset %d (stale index?)", ent.length, ent.offset))
	}
	// The scanner copies every field, so buf may be reused once it is done.
	sc := newScannerSize(bytes.NewReader(buf), All, len(buf)+1)
	r := new(Read)
	ok := sc.Scan(r)
	f.mu.Unlock()
	if !ok {
		err := sc.Err()
		if err == nil {
			err = ErrShort
		}
		return nil, errors.E(errors.Invalid, err, fmt.Sprintf("invalid FASTQ record at offset %d (stale index?)", ent.offset))
	}
	return r, nil
}
