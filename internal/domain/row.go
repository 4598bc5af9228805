package domain

// Row is one parsed CSV record describing a single generation request.
// All attribute fields are optional and immutable once parsed.
type Row struct {
	Make        string
	Model       string
	BodyStyle   string
	Trim        string
	Year        string
	Color       string
	Background  string
	AspectRatio string

	// Line is the 1-based CSV line number including the header line,
	// used for error reporting.
	Line int
}
