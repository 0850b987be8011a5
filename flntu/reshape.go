package flntu

import "flntu_extractor/wq"

// Reshape pivots wide sample rows into long format: one row per sample and
// indicator, with the indicator-independent fields duplicated onto both.
// It is a pure, order-preserving one-to-two expansion; nothing is dropped or
// aggregated here.
func Reshape(rows []wideRow) []wq.Row {
	out := make([]wq.Row, 0, 2*len(rows))
	for _, row := range rows {
		for _, schema := range Schemas() {
			value := row.Values[schema.Indicator]
			out = append(out, wq.Row{
				Timestamp:     row.Timestamp,
				Latitude:      row.Latitude,
				Longitude:     row.Longitude,
				Logger:        row.Logger,
				Year:          row.Year,
				Indicator:     schema.Indicator,
				Unit:          schema.Indicator.Unit(),
				Concentration: value.Concentration,
				Flag:          value.Flag,
				Attribution:   row.Attribution,
			})
		}
	}
	return out
}
