package flntu

import (
	"fmt"
	"math"
	"time"

	"github.com/rickb777/period"

	"flntu_extractor/wq"
)

const (
	timeVar      = "TIME"
	latitudeVar  = "LATITUDE"
	longitudeVar = "LONGITUDE"
)

// wideRow is one sample of a deployment before reshaping: all indicator
// column pairs of the same timestamp side by side.
type wideRow struct {
	Timestamp   time.Time
	Latitude    float64
	Longitude   float64
	Logger      string
	Year        int
	Attribution *string
	Values      map[wq.Indicator]indicatorValue
}

type indicatorValue struct {
	Concentration *float64
	Flag          int
}

// buildRecords converts an opened deployment into one wide row per sample.
// Timestamps are reconstructed as epoch + raw day offset + the fixed
// local-time shift. A missing indicator array, or any array shorter than the
// time array, fails with a MalformedDatasetError rather than truncating.
func buildRecords(d *Deployment, offset period.Period) ([]wideRow, error) {
	times, ok := d.Variables[timeVar]
	if !ok {
		return nil, &wq.MalformedDatasetError{URL: d.URL, Reason: "missing variable " + timeVar}
	}

	lats, err := coordArray(d, latitudeVar, len(times))
	if err != nil {
		return nil, err
	}
	lons, err := coordArray(d, longitudeVar, len(times))
	if err != nil {
		return nil, err
	}

	type column struct {
		schema IndicatorSchema
		conc   []float64
		flags  []float64
	}
	columns := make([]column, 0, len(Schemas()))
	for _, schema := range Schemas() {
		conc, err := sampleArray(d, schema.ConcVar, len(times))
		if err != nil {
			return nil, err
		}
		flags, err := sampleArray(d, schema.FlagVar, len(times))
		if err != nil {
			return nil, err
		}
		columns = append(columns, column{schema: schema, conc: conc, flags: flags})
	}

	rows := make([]wideRow, 0, len(times))
	for i, raw := range times {
		row := wideRow{
			Timestamp:   sampleTime(raw, offset),
			Latitude:    coordAt(lats, i),
			Longitude:   coordAt(lons, i),
			Logger:      d.Logger,
			Year:        d.Year,
			Attribution: d.Attribution,
			Values:      make(map[wq.Indicator]indicatorValue, len(columns)),
		}

		for _, col := range columns {
			value := indicatorValue{}
			if conc := col.conc[i]; !math.IsNaN(conc) {
				value.Concentration = &conc
			}
			if flag := col.flags[i]; !math.IsNaN(flag) {
				value.Flag = int(flag)
			}
			row.Values[col.schema.Indicator] = value
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// sampleTime reconstructs the absolute timestamp from a raw day offset.
// Whole days are added as calendar days so large offsets keep exact
// precision, then the fractional part and the fixed local shift.
func sampleTime(rawDays float64, offset period.Period) time.Time {
	days := math.Floor(rawDays)
	frac := rawDays - days

	t := timeEpoch.AddDate(0, 0, int(days)).Add(time.Duration(frac * 24 * float64(time.Hour)))
	if !offset.IsZero() {
		if shifted, ok := offset.AddTo(t); ok {
			t = shifted
		}
	}
	return t
}

func sampleArray(d *Deployment, name string, want int) ([]float64, error) {
	values, ok := d.Variables[name]
	if !ok {
		return nil, &wq.MalformedDatasetError{URL: d.URL, Reason: "missing variable " + name}
	}
	if len(values) < want {
		return nil, &wq.MalformedDatasetError{
			URL:    d.URL,
			Reason: fmt.Sprintf("variable %s has %d samples, want %d", name, len(values), want),
		}
	}
	return values, nil
}

// coordArray accepts either a scalar coordinate or one value per sample.
func coordArray(d *Deployment, name string, want int) ([]float64, error) {
	values, ok := d.Variables[name]
	if !ok {
		return nil, &wq.MalformedDatasetError{URL: d.URL, Reason: "missing variable " + name}
	}
	if len(values) != 1 && len(values) < want {
		return nil, &wq.MalformedDatasetError{
			URL:    d.URL,
			Reason: fmt.Sprintf("variable %s has %d samples, want 1 or %d", name, len(values), want),
		}
	}
	return values, nil
}

func coordAt(values []float64, i int) float64 {
	if len(values) == 1 {
		return values[0]
	}
	return values[i]
}
