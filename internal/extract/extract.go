// Package extract converts raw document bytes into plain text.
//
// Dispatch is by filename extension, not sniffed content type. A codec
// failure is always surfaced as *ParseError; codec panics are recovered
// and converted, never propagated.
package extract

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrUnsupportedFormat indicates the file extension has no registered codec.
var ErrUnsupportedFormat = errors.New("unsupported file type")

// ParseError wraps a codec failure, preserving the original codec message.
type ParseError struct {
	Format string
	Msg    string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s parsing error: %s", e.Format, e.Msg)
}

// SupportedFormats lists the extensions Extract accepts, for error messages.
const SupportedFormats = "PDF, Word, Excel, Text, PowerPoint"

// Extract converts a document byte buffer into plain text based on the
// extension of filename.
func Extract(data []byte, filename string) (string, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	switch ext {
	case "pdf":
		return extractPDF(data)
	case "doc", "docx":
		return extractDocx(data)
	case "xls", "xlsx":
		return extractWorkbook(data)
	case "txt", "md", "csv":
		return string(data), nil
	case "ppt", "pptx":
		return "", &ParseError{Format: "powerpoint", Msg: "PowerPoint parsing not yet implemented. Please use PDF export of your slides."}
	default:
		return "", fmt.Errorf("%w: %s. Supported formats: %s", ErrUnsupportedFormat, ext, SupportedFormats)
	}
}
