package scorefile_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/okian/walletmatch/internal/adapters/repository"
	"github.com/okian/walletmatch/internal/adapters/scorefile"
	. "github.com/smartystreets/goconvey/convey"
)

func TestEncode(t *testing.T) {
	Convey("Given ranked entries", t, func() {
		entries := []repository.Entry{
			{Rank: 1, Key: "a_c", Score: 95},
			{Rank: 2, Key: "b_c", Score: 42},
			{Rank: 3, Key: "a_b", Score: 10.5},
		}

		Convey("When encoding them", func() {
			var buf bytes.Buffer
			err := scorefile.Encode(&buf, entries)

			Convey("Then members keep rank order with a five space indent", func() {
				So(err, ShouldBeNil)
				So(buf.String(), ShouldEqual, "{\n     \"a_c\": 95.0,\n     \"b_c\": 42.0,\n     \"a_b\": 10.5\n}")
			})

			Convey("Then the output is valid JSON", func() {
				var decoded map[string]float64
				So(json.Unmarshal(buf.Bytes(), &decoded), ShouldBeNil)
				So(decoded, ShouldResemble, map[string]float64{"a_c": 95, "b_c": 42, "a_b": 10.5})
			})
		})
	})

	Convey("Given keys with HTML and non-ASCII characters", t, func() {
		var buf bytes.Buffer
		err := scorefile.Encode(&buf, []repository.Entry{{Key: "<ä>_\"q\"", Score: 1}})

		Convey("Then only JSON-required escapes are applied", func() {
			So(err, ShouldBeNil)
			So(buf.String(), ShouldEqual, "{\n     \"<ä>_\\\"q\\\"\": 1.0\n}")
		})
	})

	Convey("Given keys with line and paragraph separators", t, func() {
		var buf bytes.Buffer
		err := scorefile.Encode(&buf, []repository.Entry{{Key: "a\u2028b_c\u2029d", Score: 1}})

		Convey("Then the separators are written unescaped", func() {
			So(err, ShouldBeNil)
			So(buf.String(), ShouldEqual, "{\n     \"a\u2028b_c\u2029d\": 1.0\n}")
		})

		Convey("Then the output still decodes to the same key", func() {
			var decoded map[string]float64
			So(json.Unmarshal(buf.Bytes(), &decoded), ShouldBeNil)
			So(decoded, ShouldContainKey, "a\u2028b_c\u2029d")
		})
	})

	Convey("Given keys with control characters and backslashes", t, func() {
		var buf bytes.Buffer
		err := scorefile.Encode(&buf, []repository.Entry{{Key: "a\tb\\_c\x01\n", Score: 2}})

		Convey("Then they are escaped the way JSON requires", func() {
			So(err, ShouldBeNil)
			So(buf.String(), ShouldEqual, "{\n     \"a\\tb\\\\_c\\u0001\\n\": 2.0\n}")

			var decoded map[string]float64
			So(json.Unmarshal(buf.Bytes(), &decoded), ShouldBeNil)
			So(decoded, ShouldContainKey, "a\tb\\_c\x01\n")
		})
	})

	Convey("Given no entries", t, func() {
		var buf bytes.Buffer
		err := scorefile.Encode(&buf, nil)

		Convey("Then an empty object is written", func() {
			So(err, ShouldBeNil)
			So(buf.String(), ShouldEqual, "{}")
		})
	})
}

func TestFormatScore(t *testing.T) {
	Convey("Scores render with a decimal point or an exponent", t, func() {
		So(scorefile.FormatScore(100), ShouldEqual, "100.0")
		So(scorefile.FormatScore(0), ShouldEqual, "0.0")
		So(scorefile.FormatScore(98.75), ShouldEqual, "98.75")
		So(scorefile.FormatScore(1.0/3.0), ShouldEqual, "0.3333333333333333")
		So(scorefile.FormatScore(0.00001), ShouldEqual, "1e-05")
		So(scorefile.FormatScore(1e16), ShouldEqual, "1e+16")
	})
}

func TestWrite(t *testing.T) {
	Convey("Given a target directory", t, func() {
		dir := t.TempDir()
		path := filepath.Join(dir, scorefile.DefaultPath)
		entries := []repository.Entry{{Key: "a_b", Score: 100}}

		Convey("When writing the table", func() {
			err := scorefile.Write(context.Background(), path, entries)

			Convey("Then the file holds the table and no temporary file is left", func() {
				So(err, ShouldBeNil)
				data, readErr := os.ReadFile(path)
				So(readErr, ShouldBeNil)
				So(string(data), ShouldEqual, "{\n     \"a_b\": 100.0\n}")

				files, _ := os.ReadDir(dir)
				So(len(files), ShouldEqual, 1)
			})
		})

		Convey("When the file already exists", func() {
			So(os.WriteFile(path, []byte("old"), 0o600), ShouldBeNil)
			err := scorefile.Write(context.Background(), path, nil)

			Convey("Then it is replaced", func() {
				So(err, ShouldBeNil)
				data, _ := os.ReadFile(path)
				So(string(data), ShouldEqual, "{}")
			})
		})

		Convey("When the context is already cancelled", func() {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			err := scorefile.Write(ctx, path, entries)

			Convey("Then nothing is written", func() {
				So(errors.Is(err, context.Canceled), ShouldBeTrue)
				_, statErr := os.Stat(path)
				So(os.IsNotExist(statErr), ShouldBeTrue)
			})
		})

		Convey("When the directory does not exist", func() {
			err := scorefile.Write(context.Background(), filepath.Join(dir, "missing", "out.json"), entries)

			Convey("Then a write error is returned", func() {
				So(errors.Is(err, scorefile.ErrWriteFailed), ShouldBeTrue)
			})
		})
	})
}
