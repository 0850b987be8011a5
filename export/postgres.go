package export

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"flntu_extractor/wq"
)

// InsertRows bulk inserts a table's long rows into wq.measurements.
func InsertRows(pool *pgxpool.Pool, table wq.Table) (int64, error) {
	return pool.CopyFrom(
		context.TODO(),
		pgx.Identifier{"wq", "measurements"},
		[]string{"obstime", "latitude", "longitude", "logger", "year", "indicator", "unit", "concentration", "flag", "attribution"},
		pgx.CopyFromSlice(len(table.Rows), func(i int) ([]any, error) {
			row := table.Rows[i]
			return []any{
				row.Timestamp,
				row.Latitude,
				row.Longitude,
				row.Logger,
				row.Year,
				string(row.Indicator),
				row.Unit,
				row.Concentration,
				row.Flag,
				row.Attribution,
			}, nil
		}),
	)
}

// InsertAggRows bulk inserts a table's bucket rows into wq.bucket_measurements.
// The flag set is stored in its CSV rendering.
func InsertAggRows(pool *pgxpool.Pool, table wq.Table) (int64, error) {
	return pool.CopyFrom(
		context.TODO(),
		pgx.Identifier{"wq", "bucket_measurements"},
		[]string{"bucket", "latitude", "longitude", "logger", "year", "indicator", "unit", "mean_concentration", "flags", "attribution"},
		pgx.CopyFromSlice(len(table.AggRows), func(i int) ([]any, error) {
			row := table.AggRows[i]
			flags, err := row.Flags.MarshalCSV()
			if err != nil {
				return nil, err
			}
			return []any{
				row.Timestamp,
				row.Latitude,
				row.Longitude,
				row.Logger,
				row.Year,
				string(row.Indicator),
				row.Unit,
				row.MeanConcentration,
				flags,
				row.Attribution,
			}, nil
		}),
	)
}
