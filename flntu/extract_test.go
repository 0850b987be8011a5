package flntu

import (
	"context"
	"errors"
	"io"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ctessum/cdf"

	"flntu_extractor/wq"
)

const testFill = -999.0

type datasetFixture struct {
	Times           []float64
	CPHL, TURB      []float64
	CPHLFlags       []float32
	TURBFlags       []float32
	Lat, Lon        float64
	Acknowledgement string
}

// buildDataset writes a deployment file through the NetCDF encoder and
// returns its raw bytes, the same form the fetcher hands to the decoder.
func buildDataset(t *testing.T, fx datasetFixture) []byte {
	t.Helper()

	h := cdf.NewHeader([]string{"TIME"}, []int{len(fx.Times)})
	h.AddVariable("TIME", []string{"TIME"}, []float64{0})
	h.AddVariable("TIMESERIES", []string{"TIME"}, []int32{0})
	h.AddVariable("LATITUDE", nil, []float64{0})
	h.AddVariable("LONGITUDE", nil, []float64{0})
	h.AddVariable("CPHL", []string{"TIME"}, []float64{0})
	h.AddVariable("CPHL_quality_control", []string{"TIME"}, []float32{0})
	h.AddVariable("TURB", []string{"TIME"}, []float64{0})
	h.AddVariable("TURB_quality_control", []string{"TIME"}, []float32{0})
	h.AddAttribute("CPHL", "_FillValue", []float64{testFill})
	h.AddAttribute("TURB", "_FillValue", []float64{testFill})
	h.AddAttribute("", "acknowledgement", fx.Acknowledgement)
	h.Define()
	if errs := h.Check(); len(errs) > 0 {
		t.Fatal(errs)
	}

	path := filepath.Join(t.TempDir(), "deployment.nc")
	file, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}

	nc, err := cdf.Create(file, h)
	if err != nil {
		t.Fatal(err)
	}

	// a complete fixed-size write ends exactly at the variable's bound
	write := func(name string, values interface{}) {
		if _, err := nc.Writer(name, nil, nil).Write(values); err != nil && err != io.EOF {
			t.Fatalf("writing %s: %s", name, err)
		}
	}

	ids := make([]int32, len(fx.Times))
	for i := range ids {
		ids[i] = 1
	}

	write("TIME", fx.Times)
	write("TIMESERIES", ids)
	write("LATITUDE", []float64{fx.Lat})
	write("LONGITUDE", []float64{fx.Lon})
	write("CPHL", fx.CPHL)
	write("CPHL_quality_control", fx.CPHLFlags)
	write("TURB", fx.TURB)
	write("TURB_quality_control", fx.TURBFlags)

	if err := file.Close(); err != nil {
		t.Fatal(err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return raw
}

// One BUR2 deployment with four samples. Per indicator pair:
// CPHL concentrations 1..4 with flags 1,1,2,3 and TURB concentrations with a
// fill value at the second sample and flags 1,1,4,0.
func testFixture() datasetFixture {
	return datasetFixture{
		Times:           []float64{27387.0, 27387.25, 27387.5, 27387.75},
		CPHL:            []float64{1, 2, 3, 4},
		CPHLFlags:       []float32{1, 1, 2, 3},
		TURB:            []float64{10, testFill, 30, 40},
		TURBFlags:       []float32{1, 1, 4, 0},
		Lat:             -19.3,
		Lon:             147.0,
		Acknowledgement: `Data was sourced from "AIMS Marine Monitoring Program"`,
	}
}

const testCatalog = `<catalog>
	<dataset urlPath="mmp-wq/2025/AIMS_MMP-WQ_KUZ_20250114Z_BUR2_FV01_timeSeries_FLNTU.nc"/>
</catalog>`

func extractConfig(t *testing.T) *Config {
	t.Helper()

	config := NewConfig([]int{2025}, []string{"BUR2"})
	config.CatalogURL = "http://catalog.test/%d.xml"
	config.DatasetURL = "http://data.test/%d/%sZ_%s.nc"
	config.Fetcher = &fakeFetcher{docs: map[string][]byte{
		"http://catalog.test/2025.xml":            []byte(testCatalog),
		"http://data.test/2025/20250114Z_BUR2.nc": buildDataset(t, testFixture()),
	}}
	return config
}

func TestExtract(t *testing.T) {
	config := extractConfig(t)

	tables, err := Extract(context.Background(), config)
	if err != nil {
		t.Fatal(err)
	}

	if len(tables) != 1 {
		t.Fatalf("Got %v tables, wanted 1", len(tables))
	}
	table, ok := tables["BUR2_2025"]
	if !ok {
		t.Fatalf("Got %v, wanted a BUR2_2025 table", tables)
	}

	// 4 samples and 2 indicators before flag filtering
	if table.SourceRows != 8 {
		t.Errorf("Got %v source rows, wanted 8", table.SourceRows)
	}
	if len(table.Rows) != 5 {
		t.Fatalf("Got %v rows, wanted 5", len(table.Rows))
	}

	for _, row := range table.Rows {
		if row.Flag != 1 && row.Flag != 2 {
			t.Errorf("Got flag %v, wanted only good data flags", row.Flag)
		}
		if row.Logger != "BUR2" || row.Year != 2025 {
			t.Errorf("Got %v %v, wanted BUR2 2025", row.Logger, row.Year)
		}
		if row.Attribution == nil || *row.Attribution != "AIMS Marine Monitoring Program" {
			t.Errorf("Got attribution %v, wanted the acknowledgement credit", row.Attribution)
		}
	}

	first := table.Rows[0]
	if first.Indicator != wq.Chlorophyll || first.Unit != "mgm3" {
		t.Errorf("Got %v %v, wanted Chlorophyll mgm3", first.Indicator, first.Unit)
	}
	if first.Concentration == nil || *first.Concentration != 1.0 {
		t.Errorf("Got %v, wanted concentration 1.0", first.Concentration)
	}
	expected := time.Date(2024, 12, 25, 10, 0, 0, 0, time.UTC)
	if !first.Timestamp.Equal(expected) {
		t.Errorf("Got %v, wanted %v", first.Timestamp, expected)
	}

	// the fill valued turbidity sample survives as a null concentration
	nulls := 0
	for _, row := range table.Rows {
		if row.Concentration == nil {
			if row.Indicator != wq.Turbidity {
				t.Errorf("Got a null %v concentration, wanted Turbidity", row.Indicator)
			}
			nulls++
		}
	}
	if nulls != 1 {
		t.Errorf("Got %v null concentrations, wanted 1", nulls)
	}
}

func TestExtractEmptyCatalog(t *testing.T) {
	config := extractConfig(t)
	config.Loggers = []string{"TUL5"}

	tables, err := Extract(context.Background(), config)
	if err != nil {
		t.Fatal(err)
	}

	// no matching deployment is a silent empty table, not an error
	table, ok := tables["TUL5_2025"]
	if !ok {
		t.Fatalf("Got %v, wanted a TUL5_2025 table", tables)
	}
	if len(table.Rows) != 0 || table.SourceRows != 0 {
		t.Errorf("Got %v rows from %v source rows, wanted none", len(table.Rows), table.SourceRows)
	}
}

func TestExtractSkipFailedDeployments(t *testing.T) {
	failing := `<catalog>
	<dataset urlPath="mmp-wq/2025/AIMS_MMP-WQ_KUZ_20250114Z_BUR2_FV01_timeSeries_FLNTU.nc"/>
	<dataset urlPath="mmp-wq/2025/AIMS_MMP-WQ_KUZ_20250601Z_BUR2_FV01_timeSeries_FLNTU.nc"/>
</catalog>`

	newConfig := func() *Config {
		config := extractConfig(t)
		fetcher := config.Fetcher.(*fakeFetcher)
		fetcher.docs["http://catalog.test/2025.xml"] = []byte(failing)
		return config
	}

	config := newConfig()
	_, err := Extract(context.Background(), config)

	var retrievalErr *wq.RetrievalError
	if !errors.As(err, &retrievalErr) {
		t.Fatalf("Got %v, wanted a RetrievalError", err)
	}
	if retrievalErr.URL != "http://data.test/2025/20250601Z_BUR2.nc" {
		t.Errorf("Got URL %v, wanted the missing deployment's", retrievalErr.URL)
	}

	config = newConfig()
	config.SkipFailedDeployments = true

	tables, err := Extract(context.Background(), config)
	if err != nil {
		t.Fatal(err)
	}
	if len(tables["BUR2_2025"].Rows) != 5 {
		t.Errorf("Got %v rows, wanted the healthy deployment's 5", len(tables["BUR2_2025"].Rows))
	}
}

func TestExtractSmallTables(t *testing.T) {
	config := extractConfig(t)
	config.SmallTables = true
	config.RowCount = 2

	tables, err := Extract(context.Background(), config)
	if err != nil {
		t.Fatal(err)
	}

	expected := map[string]int{
		"BUR2_2025_rows_1_to_2": 2,
		"BUR2_2025_rows_3_to_4": 2,
		"BUR2_2025_rows_5_to_5": 1,
	}
	if len(tables) != len(expected) {
		t.Fatalf("Got %v tables, wanted %v", len(tables), len(expected))
	}
	for name, size := range expected {
		table, ok := tables[name]
		if !ok {
			t.Errorf("Missing table %v", name)
			continue
		}
		if len(table.Rows) != size {
			t.Errorf("Got %v rows in %v, wanted %v", len(table.Rows), name, size)
		}
	}
}

func TestExtractAggregate(t *testing.T) {
	config := extractConfig(t)
	config.Aggregate = true
	config.Granularity = wq.Hourly

	tables, err := Extract(context.Background(), config)
	if err != nil {
		t.Fatal(err)
	}

	table, ok := tables["BUR2_2025"]
	if !ok {
		t.Fatalf("Got %v, wanted a BUR2_2025 table", tables)
	}
	if table.Rows != nil {
		t.Error("Expected an aggregated table without long rows")
	}

	// 3 hourly buckets for chlorophyll, 2 for turbidity
	if len(table.AggRows) != 5 {
		t.Fatalf("Got %v groups, wanted 5", len(table.AggRows))
	}

	first := table.AggRows[0]
	if first.Indicator != wq.Chlorophyll || first.MeanConcentration != 1.0 {
		t.Errorf("Got %v %v, wanted Chlorophyll 1.0", first.Indicator, first.MeanConcentration)
	}
	expected := time.Date(2024, 12, 25, 10, 0, 0, 0, time.UTC)
	if !first.Timestamp.Equal(expected) {
		t.Errorf("Got bucket %v, wanted %v", first.Timestamp, expected)
	}

	// the null-only turbidity bucket keeps its flags but has no mean
	nanMeans := 0
	for _, row := range table.AggRows {
		if math.IsNaN(row.MeanConcentration) {
			nanMeans++
		}
	}
	if nanMeans != 1 {
		t.Errorf("Got %v NaN means, wanted 1", nanMeans)
	}
}

func TestExtractConfigValidation(t *testing.T) {
	type testCase struct {
		tamper func(config *Config)
	}

	cases := []testCase{
		{func(c *Config) { c.Years = nil }},
		{func(c *Config) { c.Loggers = nil }},
		{func(c *Config) { c.RowCount = 0 }},
		{func(c *Config) { c.Indicators = []wq.Indicator{"Salinity"} }},
		{func(c *Config) { c.Aggregate = true }},
		{func(c *Config) { c.Fetcher = nil }},
	}

	for _, c := range cases {
		config := extractConfig(t)
		c.tamper(config)

		_, err := Extract(context.Background(), config)

		var validationErr *wq.ValidationError
		if !errors.As(err, &validationErr) {
			t.Errorf("Got %v, wanted a ValidationError", err)
		}
	}
}
