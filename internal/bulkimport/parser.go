// Package bulkimport parses the "productId,quantity" CSV a purchaser uploads to fill a cart.
// It validates shape only. Whether a product exists is decided later, when rows are applied.
package bulkimport

import (
	"b2bcart/internal/models"
	"bytes"
	"strconv"
	"strings"
)

const (
	HeaderMarker = "productid"

	MsgMissingFields   = "must include productId and quantity"
	MsgInvalidQuantity = "quantity must be a positive integer"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

type Result struct {
	Rows   []models.ImportRow
	Errors []models.RowError
	// DataRows counts non-blank lines after the header, valid or not.
	DataRows int
}

// Parse never fails as a whole. A malformed row is reported in Errors and skipped.
// Row numbers count non-blank lines from 1, the header line included.
func Parse(content []byte) Result {
	text := strings.ToValidUTF8(string(bytes.TrimPrefix(content, utf8BOM)), "�")

	lines := splitLines(text)
	res := Result{
		Rows:   make([]models.ImportRow, 0, len(lines)),
		Errors: make([]models.RowError, 0),
	}

	start := 0
	if len(lines) > 0 && isHeader(lines[0]) {
		start = 1
	}

	for i := start; i < len(lines); i++ {
		rowNumber := i + 1
		res.DataRows++

		row, msg, ok := parseRow(lines[i])
		if !ok {
			res.Errors = append(res.Errors, models.RowError{Row: rowNumber, Message: msg})
			continue
		}

		row.Row = rowNumber
		res.Rows = append(res.Rows, row)
	}

	return res
}

func splitLines(text string) []string {
	raw := strings.FieldsFunc(text, func(r rune) bool {
		return r == '\n' || r == '\r'
	})

	lines := make([]string, 0, len(raw))
	for _, l := range raw {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}

	return lines
}

func isHeader(line string) bool {
	return strings.Contains(strings.ToLower(line), HeaderMarker)
}

func parseRow(line string) (models.ImportRow, string, bool) {
	fields := strings.Split(line, ",")
	for i := range fields {
		fields[i] = strings.TrimSpace(strings.Trim(strings.TrimSpace(fields[i]), `"`))
	}

	// Spreadsheet exports pad rows with empty trailing columns.
	for len(fields) > 2 && fields[len(fields)-1] == "" {
		fields = fields[:len(fields)-1]
	}

	if len(fields) != 2 || fields[0] == "" || fields[1] == "" {
		return models.ImportRow{}, MsgMissingFields, false
	}

	quantity, err := strconv.Atoi(fields[1])
	if err != nil || quantity <= 0 || quantity > models.MaxQuantity {
		return models.ImportRow{}, MsgInvalidQuantity, false
	}

	return models.ImportRow{
		ProductId: fields[0],
		Quantity:  quantity,
	}, "", true
}
