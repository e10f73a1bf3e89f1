package schema

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// ResolvePath joins a table's url to dataPath when the url is relative,
// mirroring the original implementation's make_path(table_path, data_path)
// helper for CsvDataTable.
func ResolvePath(path, dataPath string) string {
	if filepath.IsAbs(path) || dataPath == "" {
		return path
	}
	return filepath.Join(dataPath, path)
}

// LoadTable reads a TableDoc's CSV into a flat, per-timestep column: one
// value per row, taken from the row's last field so a table may carry an
// optional leading date/index column.
func LoadTable(tbl TableDoc, dataPath string) ([]float64, error) {
	path := ResolvePath(tbl.URL, dataPath)
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("schema: table %q: %w", tbl.Name, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("schema: table %q: %w", tbl.Name, err)
	}

	values := make([]float64, 0, len(records))
	for i, rec := range records {
		if len(rec) == 0 {
			continue
		}
		field := rec[len(rec)-1]
		v, err := strconv.ParseFloat(field, 64)
		if err != nil {
			if i == 0 {
				continue // header row
			}
			return nil, fmt.Errorf("schema: table %q: row %d: %w", tbl.Name, i, err)
		}
		values = append(values, v)
	}
	return values, nil
}

// ResolveTimeseries materializes every Built.Timeseries entry into the
// column map internal/simulate.Config.TimeseriesFor supplies to a running
// scenario, loading any table-backed entries from dataPath.
func ResolveTimeseries(built *Built, dataPath string) (map[string][]float64, error) {
	out := make(map[string][]float64, len(built.Timeseries))
	loaded := make(map[string][]float64, len(built.Tables))
	for _, ts := range built.Timeseries {
		col := ts.Column
		if col == "" {
			col = ts.Name
		}
		if len(ts.Values) > 0 {
			out[col] = ts.Values
			continue
		}
		values, ok := loaded[ts.Table]
		if !ok {
			tbl, exists := built.Tables[ts.Table]
			if !exists {
				return nil, fmt.Errorf("schema: timeseries %q: unknown table %q", ts.Name, ts.Table)
			}
			v, err := LoadTable(tbl, dataPath)
			if err != nil {
				return nil, err
			}
			loaded[ts.Table] = v
			values = v
		}
		out[col] = values
	}
	return out, nil
}
