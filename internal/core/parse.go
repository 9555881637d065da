package core

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// decodeUpload returns the upload as UTF-8 text. A leading BOM is removed.
// Spreadsheets exported on Windows arrive as cp1252; input that is not
// valid UTF-8 is decoded as such, and bytes that still fail become '?'.
func decodeUpload(data []byte) []byte {
	data = bytes.TrimPrefix(data, utf8BOM)
	if utf8.Valid(data) {
		return data
	}
	out, _, err := transform.Bytes(charmap.Windows1252.NewDecoder(), data)
	if err != nil {
		return bytes.ToValidUTF8(data, []byte("?"))
	}
	return out
}

// parsedCSV is an upload split into its header row and data rows.
type parsedCSV struct {
	Headers []string
	Rows    [][]string
	Lines   []int // file line of each row, header is line 1
}

// parseCSV decodes data and splits it with the separator found by
// DetectSeparator. Quotes are lenient, rows may be ragged and fully blank
// rows are dropped. A file with no header row returns ErrEmptyFile.
func parseCSV(data []byte) (*parsedCSV, error) {
	data = decodeUpload(data)

	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = DetectSeparator(data)
	r.LazyQuotes = true
	r.FieldsPerRecord = -1

	headers, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrEmptyFile
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	for i := range headers {
		headers[i] = CleanCell(headers[i])
	}

	out := &parsedCSV{Headers: headers}
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrParse, err)
		}
		if isBlankRow(row) {
			continue
		}
		line, _ := r.FieldPos(0)
		out.Rows = append(out.Rows, row)
		out.Lines = append(out.Lines, line)
	}
	return out, nil
}

func isBlankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
