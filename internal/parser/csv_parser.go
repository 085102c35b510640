package parser

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/arnabghosh/compute-matcher/internal/domain"
)

var (
	resourceColumns = []string{"id", "computation_power", "available_memory_gb", "price_per_unit"}
	demandColumns   = []string{"id", "required_power", "required_memory_gb", "max_price_per_unit"}
)

// CSVParser maps named columns of an inventory CSV onto records
type CSVParser struct {
	headerMap map[string]int
}

// NewCSVParser creates a new CSV parser
func NewCSVParser() *CSVParser {
	return &CSVParser{
		headerMap: make(map[string]int),
	}
}

// ParseHeader parses the CSV header and checks the required columns are present
func (p *CSVParser) ParseHeader(header []string, required []string) error {
	if len(header) == 0 {
		return domain.ErrInvalidInput
	}

	for i, col := range header {
		p.headerMap[strings.ToLower(strings.TrimSpace(col))] = i
	}

	for _, col := range required {
		if _, exists := p.headerMap[col]; !exists {
			return fmt.Errorf("missing required column: %s", col)
		}
	}
	return nil
}

// row wraps one CSV record with typed column accessors. The first
// conversion error is kept and later accessors become no-ops.
type row struct {
	p      *CSVParser
	fields []string
	err    error
}

func (r *row) str(name string) string {
	if idx, ok := r.p.headerMap[name]; ok && idx < len(r.fields) {
		return strings.TrimSpace(r.fields[idx])
	}
	return ""
}

func (r *row) float(name string) float64 {
	s := r.str(name)
	if s == "" || r.err != nil {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		r.err = fmt.Errorf("%w: column %s: %q is not a number", domain.ErrInvalidInput, name, s)
	}
	return v
}

func (r *row) boolean(name string, def bool) bool {
	s := r.str(name)
	if s == "" || r.err != nil {
		return def
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		r.err = fmt.Errorf("%w: column %s: %q is not a boolean", domain.ErrInvalidInput, name, s)
	}
	return v
}

// ParseResource converts a row into a resource. Resources are active unless
// an "active" column says otherwise.
func (p *CSVParser) ParseResource(fields []string) (*domain.Resource, error) {
	if len(fields) == 0 {
		return nil, domain.ErrInvalidInput
	}
	if len(p.headerMap) == 0 {
		return nil, fmt.Errorf("header not parsed yet")
	}

	r := &row{p: p, fields: fields}
	res := &domain.Resource{
		ID:               r.str("id"),
		ProviderID:       r.str("provider_id"),
		ComputationPower: r.float("computation_power"),
		AvailableMemory:  r.float("available_memory_gb"),
		AvailableStorage: r.float("available_storage_gb"),
		GPUType:          r.str("gpu_type"),
		GPUMemory:        r.float("gpu_memory_gb"),
		PricePerUnit:     r.float("price_per_unit"),
		Location:         r.str("location"),
		Reputation:       r.float("reputation"),
		EnergyClass:      domain.ParseEnergyClass(r.str("energy_class")),
		Active:           r.boolean("active", true),
	}
	if r.err != nil {
		return nil, r.err
	}
	return res, nil
}

// ParseDemand converts a row into a pending demand. A missing created_at
// falls back to now.
func (p *CSVParser) ParseDemand(fields []string, now time.Time) (*domain.Demand, error) {
	if len(fields) == 0 {
		return nil, domain.ErrInvalidInput
	}
	if len(p.headerMap) == 0 {
		return nil, fmt.Errorf("header not parsed yet")
	}

	r := &row{p: p, fields: fields}
	d := &domain.Demand{
		ID:                r.str("id"),
		RequesterID:       r.str("requester_id"),
		ComputationType:   r.str("computation_type"),
		RequiredPower:     r.float("required_power"),
		RequiredMemory:    r.float("required_memory_gb"),
		RequiredStorage:   r.float("required_storage_gb"),
		MaxPricePerUnit:   r.float("max_price_per_unit"),
		PreferredLocation: r.str("preferred_location"),
		GPURequired:       r.boolean("gpu_required", false),
		MinGPUMemory:      r.float("min_gpu_memory_gb"),
		Status:            domain.StatusPending,
		CreatedAt:         now,
	}
	if s := r.str("min_reputation"); s != "" {
		v := r.float("min_reputation")
		d.MinReputation = &v
	}
	if r.err != nil {
		return nil, r.err
	}

	priority, err := domain.ParsePriority(r.str("priority"))
	if err != nil {
		return nil, err
	}
	d.Priority = priority

	if s := r.str("duration_estimate"); s != "" {
		if d.DurationEstimate, err = time.ParseDuration(s); err != nil {
			return nil, fmt.Errorf("%w: column duration_estimate: %q", domain.ErrInvalidInput, s)
		}
	}
	if s := r.str("created_at"); s != "" {
		if d.CreatedAt, err = time.Parse(time.RFC3339, s); err != nil {
			return nil, fmt.Errorf("%w: column created_at: %q", domain.ErrInvalidInput, s)
		}
	}
	return d, nil
}

// StreamReader provides an iterator-like interface over an inventory CSV
type StreamReader struct {
	reader *csv.Reader
	parser *CSVParser
	row    int
	now    time.Time
}

func newStreamReader(r io.Reader, required []string) (*StreamReader, error) {
	csvReader := csv.NewReader(r)
	csvReader.TrimLeadingSpace = true
	csvReader.ReuseRecord = true
	csvReader.Comment = '#'

	parser := NewCSVParser()

	header, err := csvReader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	if err := parser.ParseHeader(header, required); err != nil {
		return nil, fmt.Errorf("failed to parse header: %w", err)
	}

	return &StreamReader{
		reader: csvReader,
		parser: parser,
		row:    1, // Row 1 is the header
		now:    time.Now().UTC(),
	}, nil
}

// NewResourceReader reads resources from CSV data with a header row
func NewResourceReader(r io.Reader) (*StreamReader, error) {
	return newStreamReader(r, resourceColumns)
}

// NewDemandReader reads demands from CSV data with a header row
func NewDemandReader(r io.Reader) (*StreamReader, error) {
	return newStreamReader(r, demandColumns)
}

// NextResource reads the next resource. Returns io.EOF at end of input.
func (sr *StreamReader) NextResource() (*domain.Resource, error) {
	fields, err := sr.reader.Read()
	if err != nil {
		return nil, err
	}
	sr.row++
	res, err := sr.parser.ParseResource(fields)
	if err != nil {
		return nil, fmt.Errorf("row %d: %w", sr.row, err)
	}
	return res, nil
}

// NextDemand reads the next demand. Returns io.EOF at end of input.
func (sr *StreamReader) NextDemand() (*domain.Demand, error) {
	fields, err := sr.reader.Read()
	if err != nil {
		return nil, err
	}
	sr.row++
	d, err := sr.parser.ParseDemand(fields, sr.now)
	if err != nil {
		return nil, fmt.Errorf("row %d: %w", sr.row, err)
	}
	return d, nil
}

// Row returns the number of the row last read, counting the header as 1
func (sr *StreamReader) Row() int {
	return sr.row
}

// ReadResources reads every resource in r
func ReadResources(r io.Reader) ([]*domain.Resource, error) {
	sr, err := NewResourceReader(r)
	if err != nil {
		return nil, err
	}
	var out []*domain.Resource
	for {
		res, err := sr.NextResource()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
}

// ReadDemands reads every demand in r
func ReadDemands(r io.Reader) ([]*domain.Demand, error) {
	sr, err := NewDemandReader(r)
	if err != nil {
		return nil, err
	}
	var out []*domain.Demand
	for {
		d, err := sr.NextDemand()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
}
