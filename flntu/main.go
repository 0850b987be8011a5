// Package flntu retrieves water quality time series measured by moored
// FLNTU loggers and published as per-deployment NetCDF files behind a
// per-year THREDDS catalog.
//
// For every (year, logger) pair the pipeline resolves the catalog, opens each
// matching deployment file, reconstructs absolute timestamps from the file's
// day offsets, reshapes the two indicator column pairs into long format and
// concatenates everything into flag-filtered, optionally aggregated and
// partitioned tables.
package flntu

import (
	"net/http"
	"time"

	"github.com/rickb777/period"

	"flntu_extractor/wq"
)

const (
	// Catalog document for one year; fmt template with a year verb
	DefaultCatalogURL = "https://data.aims.gov.au/thredds/catalog/mmp-wq/%d/catalog.xml"
	// One deployment file; fmt template with year, date and logger verbs
	DefaultDatasetURL = "https://data.aims.gov.au/thredds/fileServer/mmp-wq/%d/AIMS_MMP-WQ_KUZ_%sZ_%s_FV01_timeSeries_FLNTU.nc"

	DefaultRowCount = 1500
	DefaultTimeout  = 60 * time.Second
)

// The raw TIME variable counts days since this epoch.
var timeEpoch = time.Date(1950, 1, 1, 0, 0, 0, 0, time.UTC)

// DefaultOffset is the fixed shift encoding the loggers' local time
// convention (UTC+10). It is a constant offset, not a timezone conversion.
var DefaultOffset = period.MustParse("PT10H")

// IndicatorSchema names the concentration and flag variables holding one
// indicator in a deployment file, and the unit its values are reported in.
type IndicatorSchema struct {
	Indicator wq.Indicator
	ConcVar   string
	FlagVar   string
}

// Schemas lists the indicator column pairs of a FLNTU file in the order they
// are reshaped into long rows.
func Schemas() []IndicatorSchema {
	return []IndicatorSchema{
		{Indicator: wq.Chlorophyll, ConcVar: "CPHL", FlagVar: "CPHL_quality_control"},
		{Indicator: wq.Turbidity, ConcVar: "TURB", FlagVar: "TURB_quality_control"},
	}
}

// Config holds one pipeline invocation's parameters. Zero values mean
// defaults where a default exists; Years and Loggers are mandatory.
type Config struct {
	Years   []int
	Loggers []string

	// Empty means both indicators
	Indicators []wq.Indicator

	// Retain only rows whose flag is in FlagTags (default {1, 2})
	FilterFlags bool
	FlagTags    []int

	// Collapse rows into hourly or daily buckets
	Aggregate   bool
	Granularity wq.Granularity

	// Split each table into row-bounded chunks
	SmallTables bool
	RowCount    int

	// Abort the whole pipeline on a failed deployment (default), or log and
	// skip just that deployment
	SkipFailedDeployments bool

	// Local-time shift applied to every reconstructed timestamp
	Offset period.Period

	// Upper bound on concurrently processed (year, logger) queries
	Concurrency int

	CatalogURL string
	DatasetURL string
	Fetcher    Fetcher
}

// NewConfig returns a Config with the default extraction behavior: both
// indicators, good-data flag filtering on, no aggregation, no partitioning.
func NewConfig(years []int, loggers []string) *Config {
	return &Config{
		Years:       years,
		Loggers:     loggers,
		FilterFlags: true,
		FlagTags:    wq.DefaultFlags(),
		RowCount:    DefaultRowCount,
		Offset:      DefaultOffset,
		Concurrency: 4,
		CatalogURL:  DefaultCatalogURL,
		DatasetURL:  DefaultDatasetURL,
		Fetcher:     &HTTPFetcher{Client: &http.Client{Timeout: DefaultTimeout}},
	}
}

func (c *Config) validate() error {
	if len(c.Years) == 0 {
		return &wq.ValidationError{Reason: "no years requested"}
	}
	if len(c.Loggers) == 0 {
		return &wq.ValidationError{Reason: "no loggers requested"}
	}
	if c.RowCount <= 0 {
		return &wq.ValidationError{Reason: "row count must be positive"}
	}
	for _, indicator := range c.Indicators {
		if !indicator.IsValid() {
			return &wq.ValidationError{Reason: "unknown indicator '" + string(indicator) + "'"}
		}
	}
	if c.Aggregate {
		if _, err := wq.ParseGranularity(string(c.Granularity)); err != nil {
			return err
		}
	}
	if c.Fetcher == nil {
		return &wq.ValidationError{Reason: "no fetcher configured"}
	}
	return nil
}
