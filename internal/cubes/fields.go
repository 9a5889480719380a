// Package cubes builds the OLAP cube tables, the cubes model file and the
// per-institution YAML descriptors from the Open APC data.
package cubes

import (
	"os"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/openapc/openapc-cli/internal/fetcher"
)

// FieldType is the column type of a cube field.
type FieldType string

const (
	TypeString FieldType = "string"
	TypeFloat  FieldType = "float"
)

// Field is one column of a cube table.
type Field struct {
	Name string
	Type FieldType
}

// APCFields are the columns of every cube table, in table order.
var APCFields = []Field{
	{"institution", TypeString},
	{"period", TypeString},
	{"euro", TypeFloat},
	{"doi", TypeString},
	{"is_hybrid", TypeString},
	{"publisher", TypeString},
	{"journal_full_title", TypeString},
	{"issn", TypeString},
	{"issn_print", TypeString},
	{"issn_electronic", TypeString},
	{"license_ref", TypeString},
	{"indexed_in_crossref", TypeString},
	{"pmid", TypeString},
	{"pmcid", TypeString},
	{"ut", TypeString},
	{"url", TypeString},
	{"doaj", TypeString},
}

// FieldNames returns the names of fields.
func FieldNames(fields []Field) []string {
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name
	}
	return names
}

// sqlType maps a field type to its column type in both backends.
func sqlType(t FieldType) string {
	switch t {
	case TypeFloat:
		return "NUMERIC"
	default:
		return "VARCHAR(256)"
	}
}

// convert turns a CSV value into a column value. Empty floats become NULL.
func convert(f Field, raw string, present bool) (any, error) {
	if !present {
		return nil, nil
	}
	if f.Type != TypeFloat {
		return raw, nil
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, eris.Wrapf(err, "%s: %q is not a number", f.Name, raw)
	}
	return v, nil
}

// Institution is one row of the institutions file.
type Institution struct {
	Name      string // value of the institution column in the APC data
	CubesName string // table, cube and slug name
	FullName  string
	State     string
}

// LoadInstitutions reads the institutions CSV file.
func LoadInstitutions(path string) ([]Institution, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "cubes: open institutions file %s", path)
	}
	defer f.Close() //nolint:errcheck

	records, err := fetcher.ReadAllRecords(f, fetcher.CSVOptions{
		TrimSpace: true,
		Required:  []string{"institution", "institution_cubes_name", "institution_full_name", "state"},
	})
	if err != nil {
		return nil, eris.Wrapf(err, "cubes: read institutions file %s", path)
	}

	out := make([]Institution, 0, len(records))
	for i, rec := range records {
		inst := Institution{
			Name:      rec.Get("institution"),
			CubesName: rec.Get("institution_cubes_name"),
			FullName:  rec.Get("institution_full_name"),
			State:     rec.Get("state"),
		}
		if inst.Name == "" || inst.CubesName == "" {
			return nil, eris.Errorf("cubes: institutions file %s row %d: institution and institution_cubes_name are required", path, i+2)
		}
		out = append(out, inst)
	}
	return out, nil
}
