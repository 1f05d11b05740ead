// Package income supplies per-capita output series and fits the AR(1) income
// process that the Tauchen chain discretizes.
package income

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ucfbrd/sovereign-risk-disaster/utils"
)

// Indicator is the World Bank code for GDP per capita, PPP, constant dollars.
const Indicator = "NY.GDP.PCAP.PP.KD"

var (
	// ErrUnknownCountry is returned when a source has no series for a country.
	ErrUnknownCountry = errors.New("income: unknown country")
	// ErrInsufficientData is returned when a series is too short or not
	// positive enough to estimate from.
	ErrInsufficientData = errors.New("income: insufficient data")
)

// Observation is one annual value of the indicator.
type Observation struct {
	Country string    `json:"country"`
	Date    time.Time `json:"date"`
	Value   float64   `json:"value"`
}

// Series is a date-ordered run of observations for one country.
type Series []Observation

// Values returns the observation values in date order.
func (s Series) Values() []float64 {
	out := make([]float64, len(s))
	for i, o := range s {
		out[i] = o.Value
	}
	return out
}

// Source supplies income series by country name.
type Source interface {
	Series(ctx context.Context, country string) (Series, error)
}

// MapSource is a static in-memory Source. Country lookups ignore case.
type MapSource struct {
	series map[string]Series
}

// NewMapSource groups observations by country and sorts each group by date.
func NewMapSource(obs []Observation) *MapSource {
	m := &MapSource{series: make(map[string]Series)}
	for _, o := range obs {
		key := countryKey(o.Country)
		m.series[key] = append(m.series[key], o)
	}
	for _, s := range m.series {
		sort.SliceStable(s, func(i, j int) bool { return s[i].Date.Before(s[j].Date) })
	}
	return m
}

// Series returns a copy of the stored series for country.
func (m *MapSource) Series(ctx context.Context, country string) (Series, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s, ok := m.series[countryKey(country)]
	if !ok {
		return nil, fmt.Errorf("Series: %q: %w", country, ErrUnknownCountry)
	}
	return append(Series(nil), s...), nil
}

// Countries lists the stored country keys in sorted order.
func (m *MapSource) Countries() []string {
	out := make([]string, 0, len(m.series))
	for k := range m.series {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func countryKey(c string) string {
	return strings.ToLower(strings.TrimSpace(c))
}

// FileSource reads observations from a JSON or CSV file on every call.
//
// JSON files hold an array of {"country", "date", "value"} objects. CSV files
// start with a country,date,value header. Dates are either RFC 3339,
// YYYY-MM-DD or a bare year.
type FileSource struct {
	Path string
}

// Series loads the file and returns the series for country.
func (f FileSource) Series(ctx context.Context, country string) (Series, error) {
	obs, err := f.Load()
	if err != nil {
		return nil, err
	}
	return NewMapSource(obs).Series(ctx, country)
}

// Load parses every observation in the file.
func (f FileSource) Load() ([]Observation, error) {
	file, err := os.Open(f.Path)
	if err != nil {
		return nil, fmt.Errorf("Load: %w", err)
	}
	defer file.Close()

	switch strings.ToLower(filepath.Ext(f.Path)) {
	case ".json":
		return ReadJSON(file)
	case ".csv":
		return ReadCSV(file)
	default:
		return nil, fmt.Errorf("Load: unsupported file type %q", filepath.Ext(f.Path))
	}
}

type jsonObservation struct {
	Country string  `json:"country"`
	Date    string  `json:"date"`
	Value   float64 `json:"value"`
}

// ReadJSON decodes an array of observations.
func ReadJSON(r io.Reader) ([]Observation, error) {
	var raw []jsonObservation
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("ReadJSON: %w", err)
	}
	out := make([]Observation, 0, len(raw))
	for i, o := range raw {
		d, err := utils.ParseDate(o.Date)
		if err != nil {
			return nil, fmt.Errorf("ReadJSON: record %d: %w", i, err)
		}
		out = append(out, Observation{Country: o.Country, Date: d, Value: o.Value})
	}
	return out, nil
}

// ReadCSV decodes country,date,value rows after a header line. Rows with an
// empty value are skipped.
func ReadCSV(r io.Reader) ([]Observation, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("ReadCSV: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	col := map[string]int{}
	for i, h := range rows[0] {
		col[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, name := range []string{"country", "date", "value"} {
		if _, ok := col[name]; !ok {
			return nil, fmt.Errorf("ReadCSV: header is missing column %q", name)
		}
	}

	out := make([]Observation, 0, len(rows)-1)
	for i, row := range rows[1:] {
		raw := strings.TrimSpace(row[col["value"]])
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("ReadCSV: line %d: %w", i+2, err)
		}
		d, err := utils.ParseDate(row[col["date"]])
		if err != nil {
			return nil, fmt.Errorf("ReadCSV: line %d: %w", i+2, err)
		}
		out = append(out, Observation{Country: row[col["country"]], Date: d, Value: v})
	}
	return out, nil
}
