package record

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
)

// baseColumns are the fixed leading columns of every row. Covariate columns
// follow in sorted order.
var baseColumns = []string{
	"run_id",
	"node",
	"activated",
	"threshold",
	"before_activation_alters",
	"after_activation_alters",
	"degree",
	"observed",
	"activation_order",
	"seed",
	"critical_exposure",
	"visits",
}

// Columns returns the header for rows carrying the given covariates.
func Columns(covariates []string) []string {
	cols := make([]string, 0, len(baseColumns)+len(covariates))
	cols = append(cols, baseColumns...)
	return append(cols, covariates...)
}

// Row formats r as strings aligned with Columns(covariates). Undefined
// values are empty strings and booleans are 0 or 1.
func Row(r Record, covariates []string) []string {
	row := make([]string, 0, len(baseColumns)+len(covariates))
	row = append(row,
		r.RunID,
		strconv.FormatInt(r.Node, 10),
		formatBool(r.Activated),
		formatFloatPtr(r.Threshold),
		formatFloatPtr(r.Before),
		formatFloatPtr(r.After),
		formatFloat(r.Degree),
		formatIntPtr(r.Observed),
		formatIntPtr(r.ActivationOrder),
		formatBool(r.Seed),
		formatIntPtr(r.CriticalExposure),
		strconv.Itoa(r.Visits),
	)
	for _, name := range covariates {
		v, ok := r.Covariates[name]
		if !ok {
			row = append(row, "")
			continue
		}
		row = append(row, formatFloat(v))
	}
	return row
}

func formatFloat(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }

func formatFloatPtr(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v)
}

func formatIntPtr(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func formatBool(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// Writer streams records to an output.
type Writer interface {
	Write(records []Record) error
	Flush() error
}

// CSVWriter writes records as CSV with a header row emitted before the
// first record.
type CSVWriter struct {
	w          *csv.Writer
	covariates []string
	header     bool
}

// NewCSVWriter returns a CSVWriter whose covariate columns are fixed to
// covariates.
func NewCSVWriter(w io.Writer, covariates []string) *CSVWriter {
	return &CSVWriter{w: csv.NewWriter(w), covariates: covariates}
}

// SkipHeader suppresses the header row, for appending to an existing file.
func (c *CSVWriter) SkipHeader() { c.header = true }

// Write appends records.
func (c *CSVWriter) Write(records []Record) error {
	if !c.header {
		if err := c.w.Write(Columns(c.covariates)); err != nil {
			return fmt.Errorf("writing csv header: %w", err)
		}
		c.header = true
	}
	for _, r := range records {
		if err := c.w.Write(Row(r, c.covariates)); err != nil {
			return fmt.Errorf("writing csv row for node %d: %w", r.Node, err)
		}
	}
	return nil
}

// Flush writes buffered rows to the underlying writer.
func (c *CSVWriter) Flush() error {
	c.w.Flush()
	return c.w.Error()
}

// JSONLWriter writes one JSON object per record per line.
type JSONLWriter struct {
	enc *json.Encoder
}

// NewJSONLWriter returns a JSONLWriter writing to w.
func NewJSONLWriter(w io.Writer) *JSONLWriter {
	return &JSONLWriter{enc: json.NewEncoder(w)}
}

// Write appends records.
func (j *JSONLWriter) Write(records []Record) error {
	for _, r := range records {
		if err := j.enc.Encode(r); err != nil {
			return fmt.Errorf("encoding record for node %d: %w", r.Node, err)
		}
	}
	return nil
}

// Flush is a no-op; every record is written as it is encoded.
func (j *JSONLWriter) Flush() error { return nil }
