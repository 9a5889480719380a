package fetcher

import (
	"encoding/csv"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// CSVOptions configures the header-named CSV reader.
type CSVOptions struct {
	Delimiter  rune // default ','
	Comment    rune // comment character (0 = none)
	LazyQuotes bool
	TrimSpace  bool
	// Required lists columns that must be present in the header.
	Required []string
}

// Record is one CSV row keyed by header name.
type Record map[string]string

// Get returns the value of the named column, or "" if absent.
func (r Record) Get(column string) string {
	return r[column]
}

// RecordReader reads header-named records one at a time. A leading UTF-8 or
// UTF-16 byte order mark is dropped and invalid UTF-8 is replaced.
type RecordReader struct {
	reader *csv.Reader
	header []string
	opts   CSVOptions
	line   int
}

// NewRecordReader reads the header row from r and returns a reader for the
// remaining rows.
func NewRecordReader(r io.Reader, opts CSVOptions) (*RecordReader, error) {
	decoded := transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
	reader := csv.NewReader(decoded)
	if opts.Delimiter != 0 {
		reader.Comma = opts.Delimiter
	}
	if opts.Comment != 0 {
		reader.Comment = opts.Comment
	}
	reader.LazyQuotes = opts.LazyQuotes
	reader.FieldsPerRecord = -1 // allow variable fields

	header, err := reader.Read()
	if err == io.EOF {
		return nil, eris.New("csv: missing header row")
	}
	if err != nil {
		return nil, eris.Wrap(err, "csv: read header")
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	present := make(map[string]bool, len(header))
	for _, h := range header {
		present[h] = true
	}
	var missing []string
	for _, col := range opts.Required {
		if !present[col] {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, eris.Errorf("csv: missing required columns: %s", strings.Join(missing, ", "))
	}

	return &RecordReader{reader: reader, header: header, opts: opts, line: 1}, nil
}

// Header returns the column names in file order.
func (rr *RecordReader) Header() []string {
	return rr.header
}

// Next returns the next record, or io.EOF when the input is exhausted.
func (rr *RecordReader) Next() (Record, error) {
	fields, err := rr.reader.Read()
	if err == io.EOF {
		return nil, io.EOF
	}
	rr.line++
	if err != nil {
		return nil, eris.Wrapf(err, "csv: read row %d", rr.line)
	}

	rec := make(Record, len(rr.header))
	for i, name := range rr.header {
		if i >= len(fields) {
			rec[name] = ""
			continue
		}
		v := fields[i]
		if rr.opts.TrimSpace {
			v = strings.TrimSpace(v)
		}
		rec[name] = v
	}
	return rec, nil
}

// ReadAllRecords reads every remaining record from r.
func ReadAllRecords(r io.Reader, opts CSVOptions) ([]Record, error) {
	rr, err := NewRecordReader(r, opts)
	if err != nil {
		return nil, err
	}
	var out []Record
	for {
		rec, err := rr.Next()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, rec)
	}
}
