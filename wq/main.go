package wq

import (
	"sort"
	"strconv"
	"strings"
	"time"
)

// The FLNTU deployment files store two indicators per sample, each with its
// own concentration array and quality control flag array. After reshaping,
// every row carries exactly one of them.
type Indicator string

const (
	Chlorophyll Indicator = "Chlorophyll"
	Turbidity   Indicator = "Turbidity"
)

// Units are fixed per indicator
func (i Indicator) Unit() string {
	switch i {
	case Chlorophyll:
		return "mgm3"
	case Turbidity:
		return "ntu"
	}
	return ""
}

func (i Indicator) IsValid() bool {
	return i == Chlorophyll || i == Turbidity
}

// IMOS quality control flags, one per sample and indicator:
//
//	0 No QC performed
//	1 Good data
//	2 Probably good data
//	3 Bad data that are potentially correctable
//	4 Bad data
//	5 Value changed
const (
	FlagNoQC = iota
	FlagGood
	FlagProbablyGood
	FlagCorrectable
	FlagBad
	FlagChanged
)

// DefaultFlags is the flag set retained when filtering is on and the caller
// does not supply one.
func DefaultFlags() []int {
	return []int{FlagGood, FlagProbablyGood}
}

// Row is one long-format measurement: a single indicator at a single
// timestamp of a single deployment.
type Row struct {
	// Local time of the sample (fixed UTC+10 shift already applied)
	Timestamp time.Time `csv:"timestamp"`
	Latitude  float64   `csv:"latitude"`
	Longitude float64   `csv:"longitude"`
	// Name of the moored logger, e.g. "BUR2"
	Logger string `csv:"logger"`
	// Catalog year the deployment was resolved from
	Year      int       `csv:"year"`
	Indicator Indicator `csv:"indicator"`
	Unit      string    `csv:"unit"`
	// Measured concentration, nil where the file holds a fill value
	Concentration *float64 `csv:"concentration"`
	// Quality control flag for this sample and indicator
	Flag int `csv:"flag"`
	// Acknowledgement text quoted in the file's global attributes
	Attribution *string `csv:"attribution"`
}

// AggRow is one time-bucket aggregate of Rows sharing the same location,
// logger, indicator, unit and attribution.
type AggRow struct {
	// Bucket boundary the member timestamps were rounded to
	Timestamp time.Time `csv:"timestamp"`
	Latitude  float64   `csv:"latitude"`
	Longitude float64   `csv:"longitude"`
	Logger    string    `csv:"logger"`
	Year      int       `csv:"year"`
	Indicator Indicator `csv:"indicator"`
	Unit      string    `csv:"unit"`
	// Mean of the non-null member concentrations
	MeanConcentration float64 `csv:"mean_concentration"`
	// Distinct member flags in order of first appearance
	Flags       FlagSet `csv:"flags"`
	Attribution *string `csv:"attribution"`
}

// FlagSet is an ordered, de-duplicated collection of QC flags.
type FlagSet []int

func (s FlagSet) Contains(flag int) bool {
	for _, f := range s {
		if f == flag {
			return true
		}
	}
	return false
}

// Sorted returns an ascending copy, useful for stable comparisons.
func (s FlagSet) Sorted() FlagSet {
	out := make(FlagSet, len(s))
	copy(out, s)
	sort.Ints(out)
	return out
}

// MarshalCSV renders the set as a ';' separated list for the CSV export.
func (s FlagSet) MarshalCSV() (string, error) {
	parts := make([]string, len(s))
	for i, f := range s {
		parts[i] = strconv.Itoa(f)
	}
	return strings.Join(parts, ";"), nil
}

// Granularity of the optional time-bucket aggregation
type Granularity string

const (
	Hourly Granularity = "Hourly"
	Daily  Granularity = "Daily"
)

// ParseGranularity accepts the granularity names case-insensitively.
// Anything else is a ValidationError.
func ParseGranularity(s string) (Granularity, error) {
	switch strings.ToLower(s) {
	case "hourly":
		return Hourly, nil
	case "daily":
		return Daily, nil
	}
	return "", &ValidationError{Reason: "unrecognized aggregation granularity '" + s + "'"}
}

func (g Granularity) width() (time.Duration, error) {
	switch g {
	case Hourly:
		return time.Hour, nil
	case Daily:
		return 24 * time.Hour, nil
	}
	return 0, &ValidationError{Reason: "unrecognized aggregation granularity '" + string(g) + "'"}
}

// Table is one named result of the pipeline: either long rows or, after
// aggregation, bucket rows. SourceRows is the unfiltered long-row count the
// table started from, so an empty table can tell "nothing matched in the
// catalog" (0) apart from "everything was filtered out" (>0).
type Table struct {
	Name       string
	Rows       []Row
	AggRows    []AggRow
	SourceRows int
}
