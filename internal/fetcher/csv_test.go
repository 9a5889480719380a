package fetcher

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordReader_Basic(t *testing.T) {
	input := "publisher,issn,doi\nSpringer Nature,1432-0541,10.1007/s00018-018-2782-0\nElsevier,0000-0000,10.1016/x\n"
	rr, err := NewRecordReader(strings.NewReader(input), CSVOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"publisher", "issn", "doi"}, rr.Header())

	rec, err := rr.Next()
	require.NoError(t, err)
	assert.Equal(t, "Springer Nature", rec.Get("publisher"))
	assert.Equal(t, "1432-0541", rec.Get("issn"))
	assert.Equal(t, "10.1007/s00018-018-2782-0", rec.Get("doi"))

	rec, err = rr.Next()
	require.NoError(t, err)
	assert.Equal(t, "Elsevier", rec.Get("publisher"))

	_, err = rr.Next()
	assert.Equal(t, io.EOF, err)
}

func TestRecordReader_StripsBOM(t *testing.T) {
	input := "\xef\xbb\xbfItem DOI,Publication Year\n10.1007/a,2018\n"
	records, err := ReadAllRecords(strings.NewReader(input), CSVOptions{Required: []string{"Item DOI"}})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "10.1007/a", records[0].Get("Item DOI"))
	assert.Equal(t, "2018", records[0].Get("Publication Year"))
}

func TestRecordReader_MissingRequiredColumns(t *testing.T) {
	input := "publisher,issn\nx,y\n"
	_, err := NewRecordReader(strings.NewReader(input), CSVOptions{
		Required: []string{"publisher", "doi", "period"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing required columns: doi, period")
}

func TestRecordReader_EmptyInput(t *testing.T) {
	_, err := NewRecordReader(strings.NewReader(""), CSVOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing header row")
}

func TestRecordReader_ShortRowsAndTrim(t *testing.T) {
	input := "a, b ,c\n 1 , 2\n"
	records, err := ReadAllRecords(strings.NewReader(input), CSVOptions{TrimSpace: true})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "1", records[0].Get("a"))
	assert.Equal(t, "2", records[0].Get("b"))
	assert.Equal(t, "", records[0].Get("c"))
}

func TestRecordReader_QuotedFields(t *testing.T) {
	input := "title,year\n\"Journal of \"\"Things\"\", Part A\",2019\n"
	records, err := ReadAllRecords(strings.NewReader(input), CSVOptions{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, `Journal of "Things", Part A`, records[0].Get("title"))
}

func TestRecordReader_PipeDelimited(t *testing.T) {
	input := "a|b\n1|2\n"
	records, err := ReadAllRecords(strings.NewReader(input), CSVOptions{Delimiter: '|'})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "2", records[0].Get("b"))
}
