package extract

import (
	"bytes"
	"encoding/csv"
	"strings"

	"github.com/doculedger/doculedger/internal/domain"
)

// extractCSV reads the file into ordered row mappings (column name -> raw
// cell string). No interpretation happens here; header mapping and value
// coercion belong to the pipeline's CSV mapper.
func extractCSV(filename string, data []byte) (*Result, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = detectDelimiter(data)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, &domain.UnsupportedDocumentError{
			Filename: filename,
			Reason:   "cannot parse csv: " + err.Error(),
		}
	}
	if len(records) < 1 || len(records[0]) == 0 {
		return nil, &domain.UnsupportedDocumentError{Filename: filename, Reason: "csv has no header row"}
	}

	headers := make([]string, len(records[0]))
	for i, h := range records[0] {
		headers[i] = strings.TrimSpace(h)
	}

	rows := make([]map[string]string, 0, len(records)-1)
	for _, record := range records[1:] {
		row := make(map[string]string, len(headers))
		for i, header := range headers {
			if i < len(record) {
				row[header] = record[i]
			} else {
				row[header] = ""
			}
		}
		rows = append(rows, row)
	}

	return &Result{Kind: KindRows, Headers: headers, Rows: rows}, nil
}

// detectDelimiter picks ';' for files whose first line uses semicolons and
// no commas. Swedish bank exports commonly ship semicolon-separated.
func detectDelimiter(data []byte) rune {
	firstLine := data
	if idx := bytes.IndexByte(data, '\n'); idx >= 0 {
		firstLine = data[:idx]
	}
	if bytes.ContainsRune(firstLine, ';') && !bytes.ContainsRune(firstLine, ',') {
		return ';'
	}
	return ','
}
