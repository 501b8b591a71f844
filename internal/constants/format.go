package constants

// OutputFormat identifies how per-node records are written to disk.
type OutputFormat string

const (
	// FormatCSV writes one comma separated row per node with a header line.
	FormatCSV OutputFormat = "csv"

	// FormatJSONL writes one JSON object per node per line.
	FormatJSONL OutputFormat = "jsonl"
)

// Valid returns true if the format is a recognized value.
func (f OutputFormat) Valid() bool {
	switch f {
	case FormatCSV, FormatJSONL:
		return true
	}
	return false
}

// Extension returns the file extension used for the format, including the dot.
func (f OutputFormat) Extension() string {
	return "." + string(f)
}

// String returns the string representation of the format.
func (f OutputFormat) String() string {
	return string(f)
}
