package extractor

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"
)

func extractXLSX(data []byte) (string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return "", fmt.Errorf("workbook has no sheets")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return "", fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}

	return sheetToCSV(rows)
}

func extractXLS(data []byte) (string, error) {
	wb, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return "", fmt.Errorf("open xls: %w", err)
	}
	if wb.NumSheets() == 0 {
		return "", fmt.Errorf("workbook has no sheets")
	}

	sheet := wb.GetSheet(0)
	if sheet == nil {
		return "", fmt.Errorf("workbook has no sheets")
	}

	var rows [][]string
	for i := 0; i <= int(sheet.MaxRow); i++ {
		row := sheet.Row(i)
		if row == nil {
			continue
		}
		cells := make([]string, 0, row.LastCol())
		for j := 0; j < row.LastCol(); j++ {
			cells = append(cells, row.Col(j))
		}
		rows = append(rows, cells)
	}

	return sheetToCSV(rows)
}

// sheetToCSV writes the first row as the header and the remaining rows as
// records. Blank rows are dropped and short rows are padded to the widest
// row. Unnamed header columns are labelled "Unnamed: <index>" and repeated
// names get a ".<n>" suffix.
func sheetToCSV(rows [][]string) (string, error) {
	var kept [][]string
	width := 0
	for _, row := range rows {
		if isBlankRow(row) {
			continue
		}
		kept = append(kept, row)
		if len(row) > width {
			width = len(row)
		}
	}

	if len(kept) == 0 {
		return "", nil
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := pad(kept[0], width)
	for i, name := range header {
		if strings.TrimSpace(name) == "" {
			header[i] = fmt.Sprintf("Unnamed: %d", i)
		}
	}
	dedupNames(header)
	if err := w.Write(header); err != nil {
		return "", err
	}

	for _, row := range kept[1:] {
		if err := w.Write(pad(row, width)); err != nil {
			return "", err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}

	return buf.String(), nil
}

// dedupNames renames repeated header names in place: a, a, a becomes
// a, a.1, a.2. A generated name that is itself taken gets suffixed again.
func dedupNames(names []string) {
	counts := make(map[string]int, len(names))
	for i, name := range names {
		n := counts[name]
		for n > 0 {
			counts[name] = n + 1
			name = fmt.Sprintf("%s.%d", name, n)
			n = counts[name]
		}
		names[i] = name
		counts[name] = n + 1
	}
}

func pad(row []string, width int) []string {
	out := make([]string, width)
	copy(out, row)
	return out
}

func isBlankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
