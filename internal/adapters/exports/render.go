package exports

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"agrilog/internal/core"
)

// Format is an export rendition.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// ErrUnknownFormat is wrapped by errors for unsupported formats.
var ErrUnknownFormat = errors.New("unknown export format")

// ParseFormat maps a user supplied name to a Format.
func ParseFormat(raw string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(raw))); f {
	case FormatCSV, FormatJSON:
		return f, nil
	}
	return "", fmt.Errorf("%w %q", ErrUnknownFormat, raw)
}

// ContentType returns the MIME type of the rendition.
func (f Format) ContentType() string {
	if f == FormatCSV {
		return "text/csv"
	}
	return "application/json"
}

// Extension returns the file extension of the rendition.
func (f Format) Extension() string { return string(f) }

// normalizeFormats validates and de-duplicates formats. An empty list
// selects every format.
func normalizeFormats(formats []Format) ([]Format, error) {
	if len(formats) == 0 {
		return []Format{FormatCSV, FormatJSON}, nil
	}
	out := make([]Format, 0, len(formats))
	seen := make(map[Format]struct{}, len(formats))
	for _, raw := range formats {
		format, err := ParseFormat(string(raw))
		if err != nil {
			return nil, err
		}
		if _, dup := seen[format]; dup {
			continue
		}
		seen[format] = struct{}{}
		out = append(out, format)
	}
	return out, nil
}

var csvHeader = []string{
	"id", "slug", "year", "field", "crop_type", "status",
	"sowing_date", "yield_amount", "notes", "created_at",
}

func render(format Format, rows []core.CultivationSummary) ([]byte, error) {
	switch format {
	case FormatCSV:
		return renderCSV(rows)
	case FormatJSON:
		return renderJSON(rows)
	}
	return nil, fmt.Errorf("%w %q", ErrUnknownFormat, format)
}

func renderCSV(rows []core.CultivationSummary) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)
	if err := writer.Write(csvHeader); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	for _, row := range rows {
		record := []string{
			row.ID,
			row.Slug,
			strconv.Itoa(row.Year),
			row.FieldName,
			row.CropTypeName,
			string(row.Status),
			row.SowingDate.Format("2006-01-02"),
			strconv.FormatFloat(row.YieldAmount, 'f', 2, 64),
			row.Notes,
			row.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

type jsonExport struct {
	Count        int                       `json:"count"`
	Cultivations []core.CultivationSummary `json:"cultivations"`
}

func renderJSON(rows []core.CultivationSummary) ([]byte, error) {
	if rows == nil {
		rows = []core.CultivationSummary{}
	}
	payload, err := json.MarshalIndent(jsonExport{Count: len(rows), Cultivations: rows}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode json: %w", err)
	}
	return payload, nil
}
