package flntu

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"flntu_extractor/wq"
)

type query struct {
	year   int
	logger string
}

// Extract runs the full pipeline for the cross product of the configured
// years and loggers and returns the result tables by name: one per
// (year, logger) group, or the partitioned chunks when SmallTables is set.
//
// Queries are independent and run concurrently; any RetrievalError or
// MalformedDatasetError aborts the whole pipeline unless
// SkipFailedDeployments is set.
func Extract(ctx context.Context, config *Config) (map[string]wq.Table, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}

	var queries []query
	for _, year := range config.Years {
		for _, logger := range config.Loggers {
			queries = append(queries, query{year, logger})
		}
	}

	results := make([][]wq.Row, len(queries))

	g, gctx := errgroup.WithContext(ctx)
	if config.Concurrency > 0 {
		g.SetLimit(config.Concurrency)
	}
	for i, q := range queries {
		i, q := i, q
		g.Go(func() error {
			rows, err := config.runQuery(gctx, q.year, q.logger)
			if err != nil {
				return err
			}
			results[i] = rows
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var long []wq.Row
	for _, rows := range results {
		long = append(long, rows...)
	}

	long = wq.SelectIndicators(long, config.Indicators)
	if config.FilterFlags {
		long = wq.FilterFlags(long, config.FlagTags)
	}

	if config.Aggregate {
		aggRows, err := wq.Aggregate(long, config.Granularity)
		if err != nil {
			return nil, err
		}

		grouped := make(map[query][]wq.AggRow)
		for _, row := range aggRows {
			key := query{row.Year, row.Logger}
			grouped[key] = append(grouped[key], row)
		}

		tables := make(map[string]wq.Table)
		for i, q := range queries {
			if err := addTables(tables, q, grouped[q], len(results[i]), config, newAggTable); err != nil {
				return nil, err
			}
		}
		return tables, nil
	}

	grouped := make(map[query][]wq.Row)
	for _, row := range long {
		key := query{row.Year, row.Logger}
		grouped[key] = append(grouped[key], row)
	}

	tables := make(map[string]wq.Table)
	for i, q := range queries {
		if err := addTables(tables, q, grouped[q], len(results[i]), config, newRowTable); err != nil {
			return nil, err
		}
	}
	return tables, nil
}

// runQuery resolves and extracts every deployment of one (year, logger)
// pair, returning the concatenated long rows in catalog then time order.
func (c *Config) runQuery(ctx context.Context, year int, logger string) ([]wq.Row, error) {
	entries, err := c.ResolveCatalog(ctx, year, []string{logger})
	if err != nil {
		return nil, err
	}

	var rows []wq.Row
	for _, entry := range entries {
		deploymentRows, err := c.extractDeployment(ctx, year, entry)
		if err != nil {
			if c.SkipFailedDeployments {
				slog.Warn(fmt.Sprintf("%d - %s - %s: skipping deployment, %s", year, logger, entry.Date, err))
				continue
			}
			return nil, err
		}
		rows = append(rows, deploymentRows...)
	}

	slog.Info(fmt.Sprintf("%d - %s: %d deployments resolved, %d long rows", year, logger, len(entries), len(rows)))
	return rows, nil
}

func (c *Config) extractDeployment(ctx context.Context, year int, entry CatalogEntry) ([]wq.Row, error) {
	deployment, err := c.OpenDeployment(ctx, year, entry)
	if err != nil {
		return nil, err
	}

	wide, err := buildRecords(deployment, c.Offset)
	if err != nil {
		return nil, err
	}
	return Reshape(wide), nil
}

func newRowTable(name string, rows []wq.Row, source int) wq.Table {
	return wq.Table{Name: name, Rows: rows, SourceRows: source}
}

func newAggTable(name string, rows []wq.AggRow, source int) wq.Table {
	return wq.Table{Name: name, AggRows: rows, SourceRows: source}
}

// addTables stores one query's result: a single named table, or its
// row-bounded chunks when SmallTables is set. A query that ends up with no
// rows still gets a (single, empty) table so the caller can see SourceRows.
func addTables[T any](
	tables map[string]wq.Table,
	q query,
	rows []T,
	source int,
	config *Config,
	newTable func(string, []T, int) wq.Table,
) error {
	name := fmt.Sprintf("%s_%d", q.logger, q.year)

	if !config.SmallTables || len(rows) == 0 {
		tables[name] = newTable(name, rows, source)
		return nil
	}

	chunks, err := wq.Partition(q.logger, q.year, rows, config.RowCount)
	if err != nil {
		return err
	}
	for _, chunk := range chunks {
		tables[chunk.Name] = newTable(chunk.Name, chunk.Rows, source)
	}
	return nil
}
