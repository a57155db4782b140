package source

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/gridwatch/sentinel/internal/model"
)

// decodeByExtension picks a decoder from the file extension. JSON is the
// default when the extension is unrecognized.
func decodeByExtension(ctx context.Context, r io.Reader, path string) ([]model.DataPoint, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return decodeCSV(ctx, r)
	default:
		return decodeJSONArray(ctx, r)
	}
}

// decodeJSONArray streams a JSON array of objects, so large batches never
// need to be held as raw bytes.
func decodeJSONArray(ctx context.Context, r io.Reader) ([]model.DataPoint, error) {
	decoder := json.NewDecoder(r)
	decoder.UseNumber()

	tok, err := decoder.Token()
	if err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, eris.Wrap(err, "source: read opening token")
	}
	delim, ok := tok.(json.Delim)
	if !ok || delim != '[' {
		return nil, eris.Errorf("source: expected '[', got %v", tok)
	}

	var out []model.DataPoint
	for decoder.More() {
		if ctx.Err() != nil {
			return nil, eris.Wrap(ctx.Err(), "source: context cancelled")
		}
		var record model.DataPoint
		if err := decoder.Decode(&record); err != nil {
			return nil, eris.Wrap(err, "source: decode element")
		}
		out = append(out, record)
	}
	return out, nil
}

// decodeCSV maps each row to a data point keyed by the header row. Values
// that parse as numbers become float64, everything else stays a string.
func decodeCSV(ctx context.Context, r io.Reader) ([]model.DataPoint, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "source: read csv header")
	}
	for i, h := range header {
		header[i] = strings.TrimSpace(h)
	}

	var out []model.DataPoint
	for {
		if ctx.Err() != nil {
			return nil, eris.Wrap(ctx.Err(), "source: context cancelled")
		}
		row, err := reader.Read()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, eris.Wrap(err, "source: read csv row")
		}
		out = append(out, rowToDataPoint(header, row))
	}
}

// decodeXLSX reads the first sheet of a workbook, treating the first row
// as the header.
func decodeXLSX(path string) ([]model.DataPoint, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "source: open xlsx")
	}
	if len(f.Sheets) == 0 {
		return nil, eris.Errorf("source: workbook %s has no sheets", path)
	}
	sheet := f.Sheets[0]

	var header []string
	var out []model.DataPoint
	for i, row := range sheet.Rows {
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = cell.String()
		}
		if i == 0 {
			header = cells
			continue
		}
		out = append(out, rowToDataPoint(header, cells))
	}
	return out, nil
}

func rowToDataPoint(header, row []string) model.DataPoint {
	record := make(model.DataPoint, len(header))
	for i, key := range header {
		if i >= len(row) || key == "" {
			continue
		}
		value := strings.TrimSpace(row[i])
		if f, err := strconv.ParseFloat(value, 64); err == nil && value != "" {
			record[key] = f
			continue
		}
		record[key] = value
	}
	return record
}
