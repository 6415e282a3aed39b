package export

import "fmt"

// Dataset defines tabular export content.
type Dataset struct {
	Title   string
	Headers []string
	Rows    []map[string]string
}

// Exporter turns a dataset into a downloadable document.
type Exporter interface {
	Format() string
	ContentType() string
	Render(data Dataset) ([]byte, error)
}

// ForFormat returns the exporter registered for a render format.
func ForFormat(format string) (Exporter, bool) {
	switch format {
	case "csv":
		return NewCSVExporter(), true
	case "pdf":
		return NewPDFExporter(), true
	default:
		return nil, false
	}
}

func requireHeaders(kind string, data Dataset) error {
	if len(data.Headers) == 0 {
		return fmt.Errorf("%s requires at least one header", kind)
	}
	return nil
}
