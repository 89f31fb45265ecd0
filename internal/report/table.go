// Package report assembles per-document outcomes into the job's
// tabular deliverable and persists it.
package report

import (
	"path/filepath"
	"strconv"

	"github.com/SoubhikGhosh/neev-cheques-clearing/internal/extract"
	"github.com/SoubhikGhosh/neev-cheques-clearing/internal/fields"
)

// Identity columns present in every report.
const (
	ColFolder = "folder_name"
	ColFile   = "filepath"
	ColError  = "error"
)

const (
	confSuffix   = "_conf"
	reasonSuffix = "_reason"
)

// Table is an ordered sequence of rows under a fixed column set.
type Table struct {
	Columns []string
	Rows    []map[string]string
}

// Aggregate merges outcomes into one Table. Rows keep the supplied
// outcome order. The column set is derived once, after all outcomes are
// known: per schema field in declared order, the value column appears if
// any row carried the field entry (even with a null value), the
// _conf/_reason sub-columns only if at least one row populated them, and
// the trailing error column only if some unit failed. Keys the model
// emitted outside the declared schema are dropped.
func Aggregate(outcomes []extract.Outcome, defs []fields.Definition) Table {
	declared := make(map[string]struct{}, len(defs))
	for _, d := range defs {
		declared[d.Name] = struct{}{}
	}

	seen := make(map[string]struct{})
	rows := make([]map[string]string, 0, len(outcomes))
	for _, outcome := range outcomes {
		row := map[string]string{
			ColFolder: folderOf(outcome.Path),
			ColFile:   filepath.Base(outcome.Path),
		}
		if outcome.Failed() {
			row[ColError] = outcome.Err
			seen[ColError] = struct{}{}
		}
		for _, f := range outcome.Fields {
			if _, ok := declared[f.FieldName]; !ok {
				continue
			}
			// A present entry claims its value column even when the
			// value is null; the cell just stays empty.
			seen[f.FieldName] = struct{}{}
			if f.Value != nil {
				row[f.FieldName] = *f.Value
			}
			if f.Confidence != nil {
				row[f.FieldName+confSuffix] = strconv.FormatFloat(*f.Confidence, 'g', -1, 64)
				seen[f.FieldName+confSuffix] = struct{}{}
			}
			if f.Reason != nil && *f.Reason != "" {
				row[f.FieldName+reasonSuffix] = *f.Reason
				seen[f.FieldName+reasonSuffix] = struct{}{}
			}
		}
		rows = append(rows, row)
	}

	columns := []string{ColFolder, ColFile}
	for _, d := range defs {
		for _, col := range []string{d.Name, d.Name + confSuffix, d.Name + reasonSuffix} {
			if _, ok := seen[col]; ok {
				columns = append(columns, col)
			}
		}
	}
	if _, ok := seen[ColError]; ok {
		columns = append(columns, ColError)
	}

	return Table{Columns: columns, Rows: rows}
}

// folderOf returns the immediate containing folder of an archive entry
// path, or "root" for top-level entries.
func folderOf(path string) string {
	dir := filepath.Base(filepath.Dir(path))
	if dir == "." || dir == "/" || dir == "" {
		return "root"
	}
	return dir
}
