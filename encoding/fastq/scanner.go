package fastq

import (
	"bufio"
	"errors"
	"io"
	"strings"
)

var (
	// ErrShort is returned when a truncated FASTQ file is encountered.
	ErrShort = errors.New("short FASTQ file")
	// ErrInvalid is returned when an invalid FASTQ file is encountered.
	ErrInvalid = errors.New("invalid FASTQ file")
	// ErrDiscordant is returned when two underlying FASTQ files are discordant.
	ErrDiscordant = errors.New("discordant FASTQ pairs")
)

// PhredOffset is the ASCII offset of Phred+33 encoded quality strings.
const PhredOffset = 33

// A Read is a FASTQ read, comprising an ID, sequence, line 3
// ("unknown"), and a quality string.
type Read struct {
	ID, Seq, Unk, Qual string
}

// Name returns the read name: the ID line without its leading '@',
// truncated at the first space or tab.
func (r *Read) Name() string {
	return ReadName(r.ID)
}

// ReadName extracts the read name from a FASTQ ID line. Clustering tools
// and aligners refer to reads by this name, so it is the lookup key of
// Indexed.
func ReadName(id string) string {
	id = strings.TrimPrefix(id, "@")
	if i := strings.IndexAny(id, " \t"); i >= 0 {
		id = id[:i]
	}
	return id
}

// Phred decodes one Phred+33 quality character.
func Phred(q byte) int {
	return int(q) - PhredOffset
}

var errEOF = errors.New("eof")

// Scanner provides a convenient interface for reading FASTQ read
// data. The Scan method returns the next read, returning a boolean
// indicating whether the read succeeded. Scanners are not
// threadsafe.
//
// Scanner performs some validation: it requires ID lines to begin
// with "@" and that line 3 begins with "+", but does not perform
// further validation (e.g., seq/qual being of equal length,
// containing only data in range, etc.)
//
// Scanner tracks the byte extent of every read it returns (see
// Extent), which is what GenerateIndex records.
type Scanner struct {
	b      *bufio.Reader
	err    error
	fields Field

	off   int64 // offset of the next unread byte.
	start int64 // offset of the ID line of the last read.
	line  []byte
}

// Field enumerates FASTQ fields. It is used to specify fields to read in
// NewScanner.
type Field uint

const (
	// ID causes the Read.ID field to be filled
	ID Field = 1 << iota
	// Seq causes the Read.Seq field to be filled
	Seq
	// Unk causes the Read.Unk field to be filled
	Unk
	// Qual causes the Read.Qual field to be filled
	Qual
	// All equals ID|Seq|Unk|Qual.
	All = ID | Seq | Unk | Qual
)

// NewScanner constructs a new Scanner that reads raw FASTQ data from the
// provided reader. Fields is a bitset of the fields to read. A typical value
// would be All or ID|Seq|Qual.
func NewScanner(r io.Reader, fields Field) *Scanner {
	return newScannerSize(r, fields, 64<<10)
}

func newScannerSize(r io.Reader, fields Field, size int) *Scanner {
	return &Scanner{b: bufio.NewReaderSize(r, size), fields: fields}
}

// Scan the next read into the provided read. Scan returns a boolean
// indicating whether the scan succeeded. Once Scan returns false, it
// never returns true again. Upon completion, the user should check
// the Err method to determine whether scanning stopped because of an
// error or because the end of the stream was reached.
func (f *Scanner) Scan(read *Read) bool {
	if f.err != nil {
		return false
	}
	f.start = f.off
	id, ok := f.readLine()
	if !ok {
		if f.err == nil {
			f.err = errEOF
		}
		return false
	}
	if len(id) == 0 || id[0] != '@' {
		f.err = ErrInvalid
		return false
	}
	if f.fields&ID != 0 {
		read.ID = string(id)
	}
	if !f.scan() {
		return false
	}
	if f.fields&Seq != 0 {
		read.Seq = string(f.line)
	}
	if !f.scan() {
		return false
	}
	if len(f.line) == 0 || f.line[0] != '+' {
		f.err = ErrInvalid
		return false
	}
	if f.fields&Unk != 0 {
		read.Unk = string(f.line)
	}
	if !f.scan() {
		return false
	}
	if f.fields&Qual != 0 {
		read.Qual = string(f.line)
	}
	return true
}

// Extent returns the byte offset and length, including line terminators,
// of the read most recently returned by Scan.
func (f *Scanner) Extent() (off, n int64) {
	return f.start, f.off - f.start
}

func (f *Scanner) scan() bool {
	if _, ok := f.readLine(); !ok {
		if f.err == nil {
			f.err = ErrShort
		}
		return false
	}
	return true
}

// readLine reads the next line into f.line, stripped of its "\n" or "\r\n"
// terminator. The returned slice is valid until the next call. A final line
// without a terminator is returned as a regular line.
func (f *Scanner) readLine() ([]byte, bool) {
	f.line = f.line[:0]
	for {
		chunk, err := f.b.ReadSlice('\n')
		f.off += int64(len(chunk))
		f.line = append(f.line, chunk...)
		if err == bufio.ErrBufferFull {
			continue
		}
		if err != nil && err != io.EOF {
			f.err = err
			return nil, false
		}
		if err == io.EOF && len(f.line) == 0 {
			return nil, false
		}
		break
	}
	n := len(f.line)
	if n > 0 && f.line[n-1] == '\n' {
		n--
		if n > 0 && f.line[n-1] == '\r' {
			n--
		}
	}
	f.line = f.line[:n]
	return f.line, true
}

// Err returns the scanning error, if any.
func (f *Scanner) Err() error {
	if f.err == errEOF {
		return nil
	}
	return f.err
}

// PairScanner composes a pair of scanners to scan a pair of FASTQ
// streams.
type PairScanner struct {
	r1, r2 *Scanner
	err    error
}

// NewPairScanner creates a new FASTQ pair scanner from the provided
// R1 and R2 readers.
func NewPairScanner(r1, r2 io.Reader, fields Field) *PairScanner {
	return &PairScanner{
		r1: NewScanner(r1, fields),
		r2: NewScanner(r2, fields),
	}
}

// Scan scans the next read pair into r1, r2. Scan returns a boolean
// indicating whether the scan succeeded. Once Scan returns false, it
// never returns true again. Upon completion, the user should check
// the Err method to determine whether scanning stopped because of an
// error or because the end of the stream was reached.
func (p *PairScanner) Scan(r1, r2 *Read) bool {
	ok1 := p.r1.Scan(r1)
	ok2 := p.r2.Scan(r2)
	if ok1 != ok2 {
		p.err = ErrDiscordant
	}
	return ok1 && ok2
}

// Err returns the scanning error, if any. It should be checked
// after Scan returns false.
func (p *PairScanner) Err() error {
	if err := p.r1.Err(); err != nil {
		return err
	}
	if err := p.r2.Err(); err != nil {
		return err
	}
	return p.err
}
