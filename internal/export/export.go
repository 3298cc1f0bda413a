// Package export renders an arranged entry list as a spreadsheet or a
// printable document.
package export

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"task-list/internal/model"
)

// ErrEmpty is returned when there is nothing to render. Callers treat it as
// a no-op, not a failure.
var ErrEmpty = errors.New("export: nothing to export")

const (
	BaseName = "task-list"
	Title    = "Task List"
)

// Format is an output document kind.
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatPDF  Format = "pdf"
)

// Formats lists every supported format.
var Formats = []Format{FormatXLSX, FormatPDF}

func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), "."))); f {
	case FormatXLSX, FormatPDF:
		return f, nil
	default:
		return "", fmt.Errorf("unknown export format %q", s)
	}
}

func (f Format) FileName() string {
	return BaseName + "." + string(f)
}

func (f Format) ContentType() string {
	switch f {
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatPDF:
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}

// Render writes entries in format f to w.
func Render(w io.Writer, f Format, entries []model.Entry) error {
	switch f {
	case FormatXLSX:
		return WriteXLSX(w, entries)
	case FormatPDF:
		return WritePDF(w, entries)
	default:
		return fmt.Errorf("unknown export format %q", f)
	}
}

// Bytes renders into memory.
func Bytes(f Format, entries []model.Entry) ([]byte, error) {
	var buf bytes.Buffer
	if err := Render(&buf, f, entries); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func completedLabel(done bool) string {
	if done {
		return "Yes"
	}
	return "No"
}
