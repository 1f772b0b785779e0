// Package scorefile writes the ranked score table as a JSON object whose
// members appear in rank order.
package scorefile

import (
	"bufio"
	"context"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/okian/walletmatch/internal/adapters/repository"
	"github.com/okian/walletmatch/pkg/metrics"
)

// DefaultPath is the artifact name, relative to the working directory.
const DefaultPath = "score_file.json"

const indent = "     "

// Encode writes entries to w as one JSON object, keeping their order.
func Encode(w io.Writer, entries []repository.Entry) error {
	bw := bufio.NewWriter(w)
	if len(entries) == 0 {
		if _, err := bw.WriteString("{}"); err != nil {
			return err
		}
		return bw.Flush()
	}

	if _, err := bw.WriteString("{\n"); err != nil {
		return err
	}
	for i, e := range entries {
		bw.WriteString(indent)
		writeKey(bw, e.Key)
		bw.WriteString(": ")
		bw.WriteString(FormatScore(e.Score))
		if i < len(entries)-1 {
			bw.WriteByte(',')
		}
		bw.WriteByte('\n')
	}
	if _, err := bw.WriteString("}"); err != nil {
		return err
	}
	return bw.Flush()
}

const hexDigits = "0123456789abcdef"

// writeKey writes s as a JSON string. Only the quote, the backslash and
// control characters are escaped; every other character, non-ASCII
// included, is written as is.
func writeKey(bw *bufio.Writer, s string) {
	bw.WriteByte('"')
	start := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 0x20 && c != '"' && c != '\\' {
			continue
		}
		bw.WriteString(s[start:i])
		switch c {
		case '"', '\\':
			bw.WriteByte('\\')
			bw.WriteByte(c)
		case '\n':
			bw.WriteString(`\n`)
		case '\r':
			bw.WriteString(`\r`)
		case '\t':
			bw.WriteString(`\t`)
		case '\b':
			bw.WriteString(`\b`)
		case '\f':
			bw.WriteString(`\f`)
		default:
			bw.WriteString(`\u00`)
			bw.WriteByte(hexDigits[c>>4])
			bw.WriteByte(hexDigits[c&0xf])
		}
		start = i + 1
	}
	bw.WriteString(s[start:])
	bw.WriteByte('"')
}

// FormatScore renders a score the way the artifact has always carried it:
// integral values keep a ".0" suffix and very small or large magnitudes
// switch to exponent notation.
func FormatScore(v float64) string {
	abs := math.Abs(v)
	if abs != 0 && (abs < 1e-4 || abs >= 1e16) {
		return strconv.FormatFloat(v, 'e', -1, 64)
	}
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// Write replaces the file at path with the encoded entries. The content is
// written to a temporary file in the same directory and renamed into place,
// so path never holds a partial table.
func Write(ctx context.Context, path string, entries []repository.Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	start := time.Now()

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		metrics.RecordErrorByComponent("scorefile", "create")
		return errors.Wrapf(ErrWriteFailed, "%s: %v", path, err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	cw := &countingWriter{w: tmp}
	if err := Encode(cw, entries); err != nil {
		_ = tmp.Close()
		cleanup()
		metrics.RecordErrorByComponent("scorefile", "encode")
		return errors.Wrapf(ErrWriteFailed, "%s: %v", path, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		metrics.RecordErrorByComponent("scorefile", "sync")
		return errors.Wrapf(ErrWriteFailed, "%s: %v", path, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		metrics.RecordErrorByComponent("scorefile", "close")
		return errors.Wrapf(ErrWriteFailed, "%s: %v", path, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		cleanup()
		return errors.Wrapf(ErrWriteFailed, "%s: %v", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		metrics.RecordErrorByComponent("scorefile", "rename")
		return errors.Wrapf(ErrWriteFailed, "%s: %v", path, err)
	}

	metrics.RecordOutputWritten(cw.n, float64(time.Since(start).Milliseconds()))
	return nil
}

type countingWriter struct {
	w io.Writer
	n int
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += n
	return n, err
}
