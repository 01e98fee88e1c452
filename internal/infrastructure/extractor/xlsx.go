package extractor

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// extractXLSX flattens the first sheet into comma-joined lines. Multi-sheet
// workbooks are indexed sheet by sheet with a heading line per sheet.
func extractXLSX(raw []byte) (string, error) {
	file, err := excelize.OpenReader(bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("open xlsx: %w", err)
	}
	defer file.Close()

	sheets := file.GetSheetList()
	if len(sheets) == 0 {
		return "", fmt.Errorf("xlsx has no sheets")
	}

	var out strings.Builder
	for _, sheet := range sheets {
		rows, err := file.GetRows(sheet)
		if err != nil {
			return "", fmt.Errorf("read sheet %s: %w", sheet, err)
		}
		if len(rows) == 0 {
			continue
		}
		if len(sheets) > 1 {
			fmt.Fprintf(&out, "# %s\n", sheet)
		}
		for _, row := range rows {
			out.WriteString(strings.Join(row, ","))
			out.WriteByte('\n')
		}
	}
	if out.Len() == 0 {
		return "", fmt.Errorf("xlsx has no rows")
	}
	return out.String(), nil
}
