// Package dataset loads the profile document into an ordered model.Dataset.
package dataset

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"io/fs"
	"os"
	"reflect"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/okian/walletmatch/internal/domain/model"
	"github.com/okian/walletmatch/pkg/logger"
	"github.com/okian/walletmatch/pkg/metrics"
)

// Loader decodes profile documents. The document is a JSON object of
// identifier -> profile, read as a token stream so identifiers keep their
// source order.
type Loader struct {
	log      logger.Logger
	validate *validator.Validate
}

// NewLoader creates a Loader.
func NewLoader(opts ...Option) *Loader {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report document keys, not Go field names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	l := &Loader{log: logger.Named("dataset"), validate: v}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load opens path and decodes it.
func (l *Loader) Load(ctx context.Context, path string) (*model.Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			metrics.RecordErrorByComponent("dataset", "not_found")
			return nil, errors.Wrapf(ErrInputNotFound, "%s", path)
		}
		metrics.RecordErrorByComponent("dataset", "unreadable")
		return nil, errors.Wrapf(ErrInputUnreadable, "%s: %v", path, err)
	}
	defer func() { _ = f.Close() }()

	ds, err := l.Decode(ctx, f)
	if err != nil {
		return nil, err
	}
	l.log.Info(ctx, "dataset loaded", logger.String("path", path), logger.Int("profiles", ds.Len()))
	return ds, nil
}

// Decode reads one profile document from r. It fails fast on the first
// profile that does not have the expected structure.
func (l *Loader) Decode(ctx context.Context, r io.Reader) (*model.Dataset, error) {
	// encoding/json substitutes U+FFFD for invalid UTF-8, which could fold
	// two distinct identifiers into one.
	dec := json.NewDecoder(&utf8Reader{r: bufio.NewReader(r)})

	tok, err := dec.Token()
	if err != nil {
		return nil, l.malformed(err, "document start")
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, l.malformed(errors.New("document is not a JSON object"), "document start")
	}

	ds := model.NewDataset()
	for dec.More() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		tok, err := dec.Token()
		if err != nil {
			return nil, l.malformed(err, "profile identifier")
		}
		id, _ := tok.(string)

		p, err := l.decodeProfile(dec, id)
		if err != nil {
			return nil, err
		}
		if ds.Add(id, p) {
			l.log.Warn(ctx, "duplicate profile identifier, keeping the last value", logger.String("id", id))
		}
	}

	if _, err := dec.Token(); err != nil {
		return nil, l.malformed(err, "document end")
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, l.malformed(errors.New("trailing data after document"), "document end")
	}

	metrics.UpdateProfilesLoaded(ds.Len())
	return ds, nil
}

func (l *Loader) decodeProfile(dec *json.Decoder, id string) (*model.Profile, error) {
	var doc profileDoc
	if err := dec.Decode(&doc); err != nil {
		var syntaxErr *json.SyntaxError
		if errors.As(err, &syntaxErr) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, errInvalidUTF8) {
			return nil, l.malformed(err, "profile "+id)
		}
		metrics.RecordErrorByComponent("dataset", "structural")
		return nil, errors.Wrapf(ErrStructural, "profile %q: %v", id, err)
	}

	if err := l.validate.Struct(&doc); err != nil {
		metrics.RecordErrorByComponent("dataset", "structural")
		return nil, errors.Wrapf(ErrStructural, "profile %q: %s", id, describe(err))
	}
	return doc.toProfile(), nil
}

func (l *Loader) malformed(err error, where string) error {
	metrics.RecordErrorByComponent("dataset", "malformed")
	return errors.Wrapf(ErrMalformedDocument, "%s: %v", where, err)
}

// describe turns the first validation failure into "field X: reason".
func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err.Error()
	}
	fe := verrs[0]

	field := fe.Namespace()
	if i := strings.IndexByte(field, '.'); i >= 0 {
		field = field[i+1:]
	}
	switch fe.Tag() {
	case "required":
		return "field \"" + field + "\" is missing"
	case "gte":
		return "field \"" + field + "\" must not be negative"
	default:
		return "field \"" + field + "\" failed " + fe.Tag()
	}
}

// utf8Reader passes bytes through unchanged and fails with errInvalidUTF8
// once the stream stops being valid UTF-8. A rune split across two reads is
// held back in tail until it can be checked.
type utf8Reader struct {
	r    io.Reader
	tail []byte
	off  int64
}

func (u *utf8Reader) Read(p []byte) (int, error) {
	n, err := u.r.Read(p)

	chunk := p[:n]
	if len(u.tail) > 0 {
		chunk = append(u.tail, chunk...)
	}
	base := u.off - int64(len(u.tail))
	i := 0
	for i < len(chunk) {
		if chunk[i] < utf8.RuneSelf {
			i++
			continue
		}
		if !utf8.FullRune(chunk[i:]) {
			break
		}
		r, size := utf8.DecodeRune(chunk[i:])
		if r == utf8.RuneError && size == 1 {
			return 0, errors.Wrapf(errInvalidUTF8, "offset %d", base+int64(i))
		}
		i += size
	}
	u.tail = append(u.tail[:0], chunk[i:]...)
	u.off += int64(n)

	if errors.Is(err, io.EOF) && len(u.tail) > 0 {
		return 0, errors.Wrapf(errInvalidUTF8, "offset %d: truncated sequence", u.off-int64(len(u.tail)))
	}
	return n, err
}
