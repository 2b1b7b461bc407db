package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// extractWorkbook serializes every sheet of a workbook to a CSV-like
// block prefixed with a sheet-name marker, concatenated in workbook order.
func extractWorkbook(data []byte) (string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return "", &ParseError{Format: "excel", Msg: err.Error()}
	}
	defer f.Close()

	var b strings.Builder
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return "", &ParseError{Format: "excel", Msg: err.Error()}
		}
		fmt.Fprintf(&b, "\n\n=== Sheet: %s ===\n", sheet)
		for _, row := range rows {
			b.WriteString(strings.Join(row, ","))
			b.WriteString("\n")
		}
	}
	return strings.TrimSpace(b.String()), nil
}
