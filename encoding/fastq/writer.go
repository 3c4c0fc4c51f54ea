package fastq

import (
	"bufio"
	"io"

	"github.com/pkg/errors"
)

// Writer is a buffered FASTQ file writer. Callers must call Flush once all
// reads have been written.
type Writer struct {
	w   *bufio.Writer
	err error
}

// NewWriter constructs a new FASTQ writer
// that writes reads to the underlying writer w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriterSize(w, 256<<10)}
}

// Write writes the read r in FASTQ format.
// An error is returned if the write failed.
func (w *Writer) Write(r *Read) error {
	w.writeln(r.ID)
	w.writeln(r.Seq)
	w.writeln(r.Unk)
	w.writeln(r.Qual)
	return w.err
}

// Flush writes any buffered data to the underlying writer.
func (w *Writer) Flush() error {
	if w.err == nil {
		w.err = w.w.Flush()
	}
	return w.err
}

func (w *Writer) writeln(line string) {
	if w.err != nil {
		return
	}
	_, w.err = w.w.WriteString(line)
	if w.err == nil {
		w.err = w.w.WriteByte('\n')
	}
}

// PairWriter writes R1 and R2 reads to two FASTQ streams in lock step, so
// that the i'th record of one stream is the mate of the i'th record of the
// other.
type PairWriter struct {
	r1, r2 *Writer
}

// NewPairWriter creates a PairWriter writing R1 reads to r1 and R2 reads to r2.
func NewPairWriter(r1, r2 io.Writer) *PairWriter {
	return &PairWriter{r1: NewWriter(r1), r2: NewWriter(r2)}
}

// Write appends one read pair.
func (p *PairWriter) Write(r1, r2 *Read) error {
	if err := p.r1.Write(r1); err != nil {
		return errors.Wrap(err, "error writing R1 output")
	}
	if err := p.r2.Write(r2); err != nil {
		return errors.Wrap(err, "error writing R2 output")
	}
	return nil
}

// Flush flushes both streams.
func (p *PairWriter) Flush() error {
	if err := p.r1.Flush(); err != nil {
		return errors.Wrap(err, "error writing R1 output")
	}
	if err := p.r2.Flush(); err != nil {
		return errors.Wrap(err, "error writing R2 output")
	}
	return nil
}
