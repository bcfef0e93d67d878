// =============================================================================
// ledgersync - CSV Parser Module
// =============================================================================
//
// This module parses CSV broker exports into tables. Korean HTS systems
// export in EUC-KR/CP949 more often than UTF-8, so the input is decoded
// before it reaches the CSV reader.
//
// FEATURES:
//   - Encodings: utf-8 (BOM stripped), euc-kr, cp949
//   - Configurable delimiter (comma, tab, pipe, semicolon)
//   - Header row anywhere in the file; rows above it are ignored
//   - Ragged rows and lazy quotes are accepted
//
// =============================================================================

package csvparser

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ginjaninja78/ledgersync/internal/config"
	"github.com/ginjaninja78/ledgersync/internal/types"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// =============================================================================
// PARSER FUNCTIONS
// =============================================================================

// Parse reads a CSV export into a table.
//
// PARAMETERS:
//   - filePath: The path to the CSV file.
//   - settings: The job's source settings (encoding, delimiter, header row).
//
// RETURNS:
//   - The table, with Source set to filePath.
//   - An error if the file cannot be read, decoded or parsed.
func Parse(filePath string, settings config.SourceConfig) (*types.Table, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	table, err := ParseReader(file, settings)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filePath, err)
	}
	table.Source = filePath
	return table, nil
}

// ParseReader is Parse for an already open stream.
func ParseReader(r io.Reader, settings config.SourceConfig) (*types.Table, error) {
	decoder, err := decoderFor(settings.Encoding)
	if err != nil {
		return nil, err
	}

	csvReader := csv.NewReader(transform.NewReader(bufio.NewReader(r), decoder))
	configureReader(csvReader, settings.Delimiter)

	allRows, err := csvReader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}

	headerRow := settings.HeaderRow
	if headerRow < 1 {
		headerRow = 1
	}
	if len(allRows) < headerRow {
		return nil, fmt.Errorf("CSV has %d rows, header expected on row %d", len(allRows), headerRow)
	}

	table := &types.Table{Headers: types.NormalizeHeaders(allRows[headerRow-1])}
	for len(table.Headers) > 0 && table.Headers[len(table.Headers)-1] == "" {
		table.Headers = table.Headers[:len(table.Headers)-1]
	}

	for _, row := range allRows[headerRow:] {
		if isRowEmpty(row) {
			continue
		}
		record := make(types.Record, len(table.Headers))
		for i := range table.Headers {
			if i < len(row) {
				record[table.Field(i)] = strings.TrimSpace(row[i])
			} else {
				record[table.Field(i)] = ""
			}
		}
		table.Rows = append(table.Rows, record)
	}
	return table, nil
}

// decoderFor returns the decoder for a configured encoding name.
func decoderFor(name string) (*encoding.Decoder, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "utf-8", "utf8":
		return unicode.UTF8BOM.NewDecoder(), nil
	case "euc-kr", "euckr", "cp949", "uhc":
		// x/text's EUC-KR decoder also covers the CP949 extension.
		return korean.EUCKR.NewDecoder(), nil
	default:
		return nil, fmt.Errorf("unsupported encoding %q", name)
	}
}

// configureReader sets up the CSV reader for broker exports.
func configureReader(reader *csv.Reader, delimiter string) {
	switch delimiter {
	case "\\t", "\t", "tab", "TAB":
		reader.Comma = '\t'
	case "|", "pipe", "PIPE":
		reader.Comma = '|'
	case ";", "semicolon":
		reader.Comma = ';'
	default:
		reader.Comma = ','
		if len(delimiter) > 0 {
			reader.Comma = []rune(delimiter)[0]
		}
	}

	// Exports pad summary rows with fewer fields.
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
}

// isRowEmpty checks if a row contains only empty values.
func isRowEmpty(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
