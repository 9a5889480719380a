package coverage

import (
	"io"

	"github.com/openapc/openapc-cli/internal/fetcher"
)

// Input columns of an offsetting dataset.
const (
	ColPublisher = "publisher"
	ColISSN      = "issn"
	ColPeriod    = "period"
	ColTitle     = "journal_full_title"
	ColDOI       = "doi"
)

// Record is one row of an offsetting dataset.
type Record struct {
	Publisher string
	ISSN      string
	Period    string
	Title     string
	DOI       string
}

// RecordReader streams offsetting records from a CSV file.
type RecordReader struct {
	rr *fetcher.RecordReader
}

// NewRecordReader reads the header of r and checks that all input columns
// are present.
func NewRecordReader(r io.Reader) (*RecordReader, error) {
	rr, err := fetcher.NewRecordReader(r, fetcher.CSVOptions{
		TrimSpace: true,
		Required:  []string{ColPublisher, ColISSN, ColPeriod, ColTitle, ColDOI},
	})
	if err != nil {
		return nil, err
	}
	return &RecordReader{rr: rr}, nil
}

// Next returns the next record or io.EOF.
func (r *RecordReader) Next() (Record, error) {
	rec, err := r.rr.Next()
	if err != nil {
		return Record{}, err
	}
	return Record{
		Publisher: rec.Get(ColPublisher),
		ISSN:      rec.Get(ColISSN),
		Period:    rec.Get(ColPeriod),
		Title:     rec.Get(ColTitle),
		DOI:       rec.Get(ColDOI),
	}, nil
}
