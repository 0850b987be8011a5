package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"flntu_extractor/export"
	"flntu_extractor/flntu"
	"flntu_extractor/utils"
	"flntu_extractor/wq"
)

type ExtractArgs struct {
	YearList   string `long:"year" required:"true" description:"Comma separated list of years to extract"`
	LoggerList string `long:"logger" required:"true" description:"Comma separated list of logger names"`
	Indicator  string `long:"indicator" default:"" description:"Restrict to a single indicator ('Chlorophyll' or 'Turbidity'). By default both are extracted"`
	NoQC       bool   `long:"noqc" description:"Keep all rows regardless of their quality control flag"`
	FlagList   string `long:"flags" default:"" description:"Comma separated list of QC flags to retain. By default 1,2 (good and probably good data)"`
	Aggregate  string `long:"aggregate" default:"" description:"Aggregate rows into time buckets, 'hourly' or 'daily'"`
	Split      bool   `long:"split" description:"Split each table into row-bounded chunks"`
	RowCount   int    `long:"rowcount" default:"1500" description:"Maximum number of rows per chunk"`
	OutDir     string `long:"dir" default:"./tables" description:"Directory where the extracted tables are written"`
	Wide       bool   `long:"wide" description:"Also write a re-widened CSV per table"`
	Postgres   bool   `long:"pg" description:"Bulk insert the extracted tables into Postgres (WQ_CONN_STRING)"`
	Timeout    int    `long:"timeout" default:"60" description:"Timeout in seconds for each catalog or dataset fetch"`
	Retries    uint64 `long:"retries" default:"0" description:"Number of retries after a failed fetch"`
	SkipFailed bool   `long:"skipfailed" description:"Log and skip deployments that fail to open instead of aborting"`
	LogFile    string `long:"logfile" default:"" description:"Optional file the log is redirected to"`
}

func (args *ExtractArgs) Execute(_ []string) error {
	if args.LogFile != "" {
		utils.SetLogFile(args.LogFile)
	}

	years, err := parseYears(args.YearList)
	if err != nil {
		return err
	}
	loggers := strings.Split(args.LoggerList, ",")

	config := flntu.NewConfig(years, loggers)
	config.SmallTables = args.Split
	config.RowCount = args.RowCount
	config.SkipFailedDeployments = args.SkipFailed
	config.FilterFlags = !args.NoQC
	config.Fetcher = &flntu.HTTPFetcher{
		Client:  &http.Client{Timeout: time.Duration(args.Timeout) * time.Second},
		Retries: args.Retries,
	}

	if url := os.Getenv("FLNTU_CATALOG_URL"); url != "" {
		config.CatalogURL = url
	}
	if url := os.Getenv("FLNTU_DATASET_URL"); url != "" {
		config.DatasetURL = url
	}

	if args.Indicator != "" {
		requested := utils.FilterSlice(
			strings.Split(args.Indicator, ","),
			[]string{string(wq.Chlorophyll), string(wq.Turbidity)},
			"Unknown indicator '%s', skipping",
		)
		for _, name := range requested {
			config.Indicators = append(config.Indicators, wq.Indicator(name))
		}
	}

	if args.FlagList != "" {
		config.FlagTags, err = parseFlags(args.FlagList)
		if err != nil {
			return err
		}
	}

	if args.Aggregate != "" {
		config.Granularity, err = wq.ParseGranularity(args.Aggregate)
		if err != nil {
			return err
		}
		config.Aggregate = true
	}

	tables, err := flntu.Extract(context.Background(), config)
	if err != nil {
		return err
	}

	if err := export.WriteCSV(args.OutDir, tables); err != nil {
		return err
	}
	if args.Wide {
		for _, table := range tables {
			if err := export.WriteWideCSV(args.OutDir, table); err != nil {
				return err
			}
		}
	}

	if args.Postgres {
		return insertTables(tables)
	}
	return nil
}

func insertTables(tables map[string]wq.Table) error {
	pool, err := pgxpool.New(context.TODO(), os.Getenv("WQ_CONN_STRING"))
	if err != nil {
		return err
	}
	defer pool.Close()

	names := make([]string, 0, len(tables))
	for name := range tables {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		table := tables[name]

		var count int64
		if table.AggRows != nil {
			count, err = export.InsertAggRows(pool, table)
		} else {
			count, err = export.InsertRows(pool, table)
		}
		if err != nil {
			return err
		}
		slog.Info(fmt.Sprintf("%s: %d rows inserted", name, count))
	}
	return nil
}

func parseYears(list string) ([]int, error) {
	var years []int
	for _, token := range strings.Split(list, ",") {
		year, err := strconv.Atoi(strings.TrimSpace(token))
		if err != nil {
			return nil, &wq.ValidationError{Reason: "could not parse year '" + token + "'"}
		}
		years = append(years, year)
	}
	return years, nil
}

func parseFlags(list string) ([]int, error) {
	var tags []int
	for _, token := range strings.Split(list, ",") {
		flag, err := strconv.Atoi(strings.TrimSpace(token))
		if err != nil {
			return nil, &wq.ValidationError{Reason: "could not parse QC flag '" + token + "'"}
		}
		tags = append(tags, flag)
	}
	return tags, nil
}
