package wq

import (
	"time"

	"gonum.org/v1/gonum/stat"
)

// Bucket rounds t to the nearest boundary of the given granularity
// (round-to-nearest, not floor).
func Bucket(t time.Time, granularity Granularity) (time.Time, error) {
	width, err := granularity.width()
	if err != nil {
		return time.Time{}, err
	}
	return t.Round(width), nil
}

type groupKey struct {
	bucket         time.Time
	latitude       float64
	longitude      float64
	logger         string
	indicator      Indicator
	unit           string
	attribution    string
	hasAttribution bool
}

type group struct {
	key         groupKey
	year        int
	attribution *string
	values      []float64
	flags       FlagSet
}

// Aggregate rounds every row's timestamp to the nearest bucket boundary and
// collapses each (bucket, latitude, longitude, logger, indicator, unit,
// attribution) group into a single row: the mean of the non-null
// concentrations and the distinct flags in order of first appearance.
// Groups are returned in order of first appearance.
func Aggregate(rows []Row, granularity Granularity) ([]AggRow, error) {
	if _, err := granularity.width(); err != nil {
		return nil, err
	}

	groups := make(map[groupKey]*group)
	var order []groupKey

	for _, row := range rows {
		bucket, err := Bucket(row.Timestamp, granularity)
		if err != nil {
			return nil, err
		}

		key := groupKey{
			bucket:    bucket,
			latitude:  row.Latitude,
			longitude: row.Longitude,
			logger:    row.Logger,
			indicator: row.Indicator,
			unit:      row.Unit,
		}
		if row.Attribution != nil {
			key.attribution = *row.Attribution
			key.hasAttribution = true
		}

		g, ok := groups[key]
		if !ok {
			g = &group{key: key, year: row.Year, attribution: row.Attribution}
			groups[key] = g
			order = append(order, key)
		}

		if row.Concentration != nil {
			g.values = append(g.values, *row.Concentration)
		}
		if !g.flags.Contains(row.Flag) {
			g.flags = append(g.flags, row.Flag)
		}
	}

	out := make([]AggRow, 0, len(order))
	for _, key := range order {
		g := groups[key]
		out = append(out, AggRow{
			Timestamp:         g.key.bucket,
			Latitude:          g.key.latitude,
			Longitude:         g.key.longitude,
			Logger:            g.key.logger,
			Year:              g.year,
			Indicator:         g.key.indicator,
			Unit:              g.key.unit,
			MeanConcentration: stat.Mean(g.values, nil),
			Flags:             g.flags,
			Attribution:       g.attribution,
		})
	}
	return out, nil
}
