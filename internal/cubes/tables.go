package cubes

import (
	"context"
	"errors"
	"io"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/openapc/openapc-cli/internal/fetcher"
)

// AllTable is the table holding the rows of every institution.
const AllTable = "openapc"

// BuildTables recreates the openapc table and one table per institution,
// then loads every APC row into openapc and into its institution's table.
// It returns the number of rows written per table. A row naming an
// institution missing from institutions fails the build before anything is
// inserted.
func BuildTables(ctx context.Context, store TableStore, apc io.Reader, institutions []Institution) (map[string]int64, error) {
	tableOf := make(map[string]string, len(institutions))
	tables := []string{AllTable}
	for _, inst := range institutions {
		if _, seen := tableOf[inst.Name]; seen {
			continue
		}
		tableOf[inst.Name] = inst.CubesName
		tables = append(tables, inst.CubesName)
	}

	rows, err := readAPCRows(apc, tableOf)
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(tables))
	for _, table := range tables {
		if err := store.ResetTable(ctx, table, APCFields); err != nil {
			return counts, eris.Wrapf(err, "cubes: reset table %s", table)
		}
		n, err := store.Insert(ctx, table, APCFields, rows[table])
		if err != nil {
			return counts, eris.Wrapf(err, "cubes: load table %s", table)
		}
		counts[table] = n
		zap.L().Info("cubes: table loaded", zap.String("table", table), zap.Int64("rows", n))
	}
	return counts, nil
}

// readAPCRows groups the converted APC rows by target table.
func readAPCRows(apc io.Reader, tableOf map[string]string) (map[string][][]any, error) {
	rr, err := fetcher.NewRecordReader(apc, fetcher.CSVOptions{Required: []string{"institution"}})
	if err != nil {
		return nil, eris.Wrap(err, "cubes: read apc data")
	}
	present := make(map[string]bool)
	for _, h := range rr.Header() {
		present[h] = true
	}

	rows := make(map[string][][]any)
	for line := 2; ; line++ {
		rec, err := rr.Next()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return nil, eris.Wrap(err, "cubes: read apc data")
		}

		inst := rec.Get("institution")
		table, ok := tableOf[inst]
		if !ok {
			return nil, eris.Errorf("cubes: apc data line %d: unknown institution %q", line, inst)
		}

		values := make([]any, len(APCFields))
		for i, f := range APCFields {
			v, err := convert(f, rec.Get(f.Name), present[f.Name])
			if err != nil {
				return nil, eris.Wrapf(err, "cubes: apc data line %d", line)
			}
			values[i] = v
		}
		rows[AllTable] = append(rows[AllTable], values)
		rows[table] = append(rows[table], values)
	}
}
