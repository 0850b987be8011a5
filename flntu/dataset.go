package flntu

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"regexp"

	"github.com/cenkalti/backoff/v4"
	"github.com/ctessum/cdf"
	"github.com/pkg/errors"

	"flntu_extractor/wq"
)

// Fetcher retrieves a remote document or dataset as raw bytes.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// HTTPFetcher fetches catalog documents and deployment files over HTTP(S).
// Retries is the number of retries after a failed attempt; zero means a
// single attempt, matching the source system's behavior.
type HTTPFetcher struct {
	Client  *http.Client
	Retries uint64
}

func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	var body []byte

	attempt := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(err)
		}

		resp, err := f.Client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return errors.Errorf("unexpected status %s", resp.Status)
		}

		body, err = io.ReadAll(resp.Body)
		return err
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), f.Retries), ctx)
	if err := backoff.Retry(attempt, policy); err != nil {
		return nil, err
	}
	return body, nil
}

// Deployment is one opened dataset: every variable and dimension read as a
// float64 array, plus the file's global attributes.
type Deployment struct {
	URL    string
	Logger string
	Year   int
	Date   string

	Variables  map[string][]float64
	Dimensions []string
	Attributes map[string]string

	// Quoted substring of the acknowledgement attribute, if any
	Attribution *string
}

// The files list a scalar timeseries-id variable under this name. It cannot
// be read as a sample array, so it is resolved to the variable's dimension
// (the time dimension) before extraction.
const timeSeriesVar = "TIMESERIES"

const acknowledgementAttr = "acknowledgement"

var quotedPattern = regexp.MustCompile(`"([^"]+)"`)

// deployments are fetched whole and never written back
type memFile struct {
	*bytes.Reader
}

func (memFile) WriteAt(p []byte, off int64) (int, error) {
	return 0, errors.New("dataset is read-only")
}

// OpenDeployment fetches and decodes the deployment file for one catalog
// entry. Fetch and decode failures are RetrievalErrors carrying the failing
// location; a missing or unparsable acknowledgement is not an error.
func (c *Config) OpenDeployment(ctx context.Context, year int, entry CatalogEntry) (*Deployment, error) {
	url := fmt.Sprintf(c.DatasetURL, year, entry.Date, entry.Logger)

	raw, err := c.Fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, &wq.RetrievalError{URL: url, Err: err}
	}

	nc, err := cdf.Open(memFile{bytes.NewReader(raw)})
	if err != nil {
		return nil, &wq.RetrievalError{URL: url, Err: errors.Wrap(err, "decoding NetCDF")}
	}

	d := &Deployment{
		URL:        url,
		Logger:     entry.Logger,
		Year:       year,
		Date:       entry.Date,
		Variables:  make(map[string][]float64),
		Dimensions: nc.Header.Dimensions(""),
		Attributes: make(map[string]string),
	}

	for _, name := range nc.Header.Variables() {
		readName := name
		if name == timeSeriesVar {
			dims := nc.Header.Dimensions(name)
			if len(dims) == 0 {
				continue
			}
			readName = dims[0]
		}

		data, err := readVar(nc, readName)
		if err != nil {
			return nil, &wq.MalformedDatasetError{URL: url, Reason: err.Error()}
		}
		if data == nil {
			// non-numeric variable
			continue
		}
		d.Variables[name] = data
	}

	for _, name := range nc.Header.Attributes("") {
		if value, ok := nc.Header.GetAttribute("", name).(string); ok {
			d.Attributes[name] = value
		}
	}
	d.Attribution = attribution(d.Attributes)

	return d, nil
}

// attribution recovers the double-quoted credit text embedded in the
// acknowledgement attribute, or nil if absent or unparsable.
func attribution(attrs map[string]string) *string {
	ack, ok := attrs[acknowledgementAttr]
	if !ok {
		return nil
	}
	match := quotedPattern.FindStringSubmatch(ack)
	if match == nil {
		return nil
	}
	return &match[1]
}

// readVar reads a whole numeric variable as []float64, mapping the fill
// value to NaN. Non-numeric variables return nil.
func readVar(nc *cdf.File, name string) ([]float64, error) {
	r := nc.Reader(name, nil, nil)
	buf := r.Zero(-1)

	var data []float64
	switch buf.(type) {
	case []float64, []float32, []int32, []int16, []uint8:
	default:
		return nil, nil
	}

	if _, err := r.Read(buf); err != nil {
		return nil, errors.Wrapf(err, "reading variable '%s'", name)
	}

	switch values := buf.(type) {
	case []float64:
		data = values
	case []float32:
		data = make([]float64, len(values))
		for i, v := range values {
			data[i] = float64(v)
		}
	case []int32:
		data = make([]float64, len(values))
		for i, v := range values {
			data[i] = float64(v)
		}
	case []int16:
		data = make([]float64, len(values))
		for i, v := range values {
			data[i] = float64(v)
		}
	case []uint8:
		data = make([]float64, len(values))
		for i, v := range values {
			data[i] = float64(v)
		}
	}

	if fill := fillValue(nc, name); !math.IsNaN(fill) {
		for i, v := range data {
			if v == fill {
				data[i] = math.NaN()
			}
		}
	}
	return data, nil
}

func fillValue(nc *cdf.File, name string) float64 {
	switch fill := nc.Header.GetAttribute(name, "_FillValue").(type) {
	case []float64:
		if len(fill) > 0 {
			return fill[0]
		}
	case []float32:
		if len(fill) > 0 {
			return float64(fill[0])
		}
	}
	return math.NaN()
}
