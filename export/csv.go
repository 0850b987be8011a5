// Package export writes pipeline result tables to downstream surfaces:
// per-table CSV files and an optional Postgres sink.
package export

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/gocarina/gocsv"

	"flntu_extractor/wq"
)

const timeFormat = time.RFC3339

// WriteCSV writes each result table to '{name}.csv' under dir, creating the
// directory if needed. Table names are processed in sorted order so repeated
// runs touch files in the same sequence.
func WriteCSV(dir string, tables map[string]wq.Table) error {
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return err
	}

	names := make([]string, 0, len(tables))
	for name := range tables {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		table := tables[name]

		file, err := os.Create(filepath.Join(dir, name+".csv"))
		if err != nil {
			return err
		}

		if table.AggRows != nil {
			err = gocsv.MarshalFile(&table.AggRows, file)
		} else {
			err = gocsv.MarshalFile(&table.Rows, file)
		}
		file.Close()
		if err != nil {
			return err
		}

		slog.Info(fmt.Sprintf("%s: %d rows written (from %d source rows)", name, max(len(table.Rows), len(table.AggRows)), table.SourceRows))
	}
	return nil
}

// WriteWideCSV re-widens a long table by inner-joining its two indicator
// frames on timestamp and writes the result to '{name}_wide.csv' under dir.
// Tables holding aggregated rows are skipped.
func WriteWideCSV(dir string, table wq.Table) error {
	if table.AggRows != nil || len(table.Rows) == 0 {
		return nil
	}
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return err
	}

	chl := indicatorFrame(table.Rows, wq.Chlorophyll, "chlorophyll")
	turb := indicatorFrame(table.Rows, wq.Turbidity, "turbidity")

	joined := chl.InnerJoin(turb, "timestamp")
	if joined.Err != nil {
		return joined.Err
	}

	file, err := os.Create(filepath.Join(dir, table.Name+"_wide.csv"))
	if err != nil {
		return err
	}
	defer file.Close()

	return joined.WriteCSV(file)
}

// indicatorFrame builds the per-indicator half of the wide view: timestamp
// plus the indicator's concentration and flag columns.
func indicatorFrame(rows []wq.Row, indicator wq.Indicator, label string) dataframe.DataFrame {
	records := [][]string{{"timestamp", label, label + "_flag"}}

	for _, row := range wq.SelectIndicators(rows, []wq.Indicator{indicator}) {
		concentration := ""
		if row.Concentration != nil {
			concentration = strconv.FormatFloat(*row.Concentration, 'f', -1, 64)
		}
		records = append(records, []string{
			row.Timestamp.Format(timeFormat),
			concentration,
			strconv.Itoa(row.Flag),
		})
	}

	return dataframe.LoadRecords(records, dataframe.DetectTypes(false))
}
