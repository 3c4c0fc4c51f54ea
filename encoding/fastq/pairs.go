package fastq

import (
	"io"

	"github.com/pkg/errors"
)

// CheckPairs scans a pair of FASTQ streams and verifies that they hold the
// same number of reads and that the i'th reads of both streams share a
// name. It returns the number of pairs read. For discordant streams,
// errors.Cause of the returned error is ErrDiscordant.
func CheckPairs(r1, r2 io.Reader) (int, error) {
	var (
		sc   = NewPairScanner(r1, r2, ID)
		n    int
		a, b Read
	)
	for sc.Scan(&a, &b) {
		if a.Name() != b.Name() {
			return n, errors.Wrapf(ErrDiscordant, "read %d is named %s in R1 but %s in R2", n, a.Name(), b.Name())
		}
		n++
	}
	if err := sc.Err(); err != nil {
		if err == ErrDiscordant {
			return n, errors.Wrapf(err, "R1 and R2 differ in length after %d reads", n)
		}
		return n, errors.Wrapf(err, "after %d read pairs", n)
	}
	return n, nil
}
