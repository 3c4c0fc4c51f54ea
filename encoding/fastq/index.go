package fastq

import (
	"fmt"
	"io"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/tsv"
)

// GenerateIndex generates an index from FASTQ. The index can later be passed
// to NewIndexed() to random-access the FASTQ file without rescanning it.
//
// The index is a headerless TSV file with one line per read:
// "<read name>\t<byte offset>\t<byte length>", where the extent covers all
// four lines of the record including their terminators. For example:
// "NB500956:89:HW2FHBGX2:1:11101:25648:1069\t0\t225".
func GenerateIndex(out io.Writer, in io.Reader) error {
	var (
		tsvOut = tsv.NewWriter(out)
		sc     = NewScanner(in, ID)
		read   Read
		n      int
	)
	for sc.Scan(&read) {
		off, length := sc.Extent()
		tsvOut.WriteString(ReadName(read.ID))
		tsvOut.WriteInt64(off)
		tsvOut.WriteInt64(length)
		if err := tsvOut.EndLine(); err != nil {
			return err
		}
		n++
	}
	if err := sc.Err(); err != nil {
		return errors.E(errors.Invalid, err, fmt.Sprintf("malformed FASTQ file at read %d", n))
	}
	return tsvOut.Flush()
}

// indexRow is one line of an index generated by GenerateIndex.
type indexRow struct {
	Name   string
	Offset int64
	Length int64
}

// readIndex calls fn for every row of the index.
func readIndex(index io.Reader, fn func(row indexRow)) error {
	r := tsv.NewReader(index)
	// Read names may contain quotes, which GenerateIndex writes verbatim.
	r.LazyQuotes = true
	r.FieldsPerRecord = 3
	r.RequireParseAllColumns = true
	for {
		var row indexRow
		if err := r.Read(&row); err != nil {
			if err == io.EOF {
				return nil
			}
			return errors.E(errors.Invalid, err, "invalid FASTQ index")
		}
		if row.Offset < 0 || row.Length <= 0 {
			return errors.E(errors.Invalid, "invalid FASTQ index line for", row.Name)
		}
		fn(row)
	}
}
