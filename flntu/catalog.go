package flntu

import (
	"context"
	"fmt"
	"regexp"
	"slices"

	"flntu_extractor/wq"
)

// CatalogEntry is one deployment dataset listed in a year's catalog.
type CatalogEntry struct {
	DatasetID string
	// 3-5 character logger name preceding the FV01 marker
	Logger string
	// 8-digit YYYYMMDD deployment date preceding the trailing Z
	Date string
}

// Deployment file names follow a fixed convention, e.g.
// AIMS_MMP-WQ_KUZ_20250114Z_BUR2_FV01_timeSeries_FLNTU.nc
// Each dataset element of the catalog carries the name in its urlPath.
var (
	datasetPattern = regexp.MustCompile(`urlPath="[^"]*?([\w.-]+\.nc)"`)
	loggerPattern  = regexp.MustCompile(`_([A-Za-z0-9]{3,5})_FV01`)
	datePattern    = regexp.MustCompile(`_(\d{8})Z`)
)

// ResolveCatalog fetches the catalog document for year and returns the
// deployments whose logger is in the requested set, in catalog order.
// Identifiers that do not follow the naming convention are skipped; a
// document without any dataset entries yields an empty list, not an error.
// Duplicate logger/date listings are retained and processed independently.
func (c *Config) ResolveCatalog(ctx context.Context, year int, loggers []string) ([]CatalogEntry, error) {
	url := fmt.Sprintf(c.CatalogURL, year)
	doc, err := c.Fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, &wq.RetrievalError{URL: url, Err: err}
	}

	var entries []CatalogEntry
	for _, match := range datasetPattern.FindAllStringSubmatch(string(doc), -1) {
		id := match[1]

		logger := loggerPattern.FindStringSubmatch(id)
		date := datePattern.FindStringSubmatch(id)
		if logger == nil || date == nil {
			continue
		}
		if !slices.Contains(loggers, logger[1]) {
			continue
		}

		entries = append(entries, CatalogEntry{DatasetID: id, Logger: logger[1], Date: date[1]})
	}
	return entries, nil
}
