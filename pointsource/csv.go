package pointsource

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/paulmach/orb"
)

var ErrMissingColumn = errors.New("missing coordinate column")

// ReadCSV reads a table with a header row. xField and yField name the
// coordinate columns, every other column becomes an attribute. Empty or
// unparsable cells are stored as NaN.
func ReadCSV(r io.Reader, xField, yField string) (*Table, error) {
	reader := csv.NewReader(r)
	reader.ReuseRecord = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("error reading header: %w", err)
	}

	xi, yi := slices.Index(header, xField), slices.Index(header, yField)
	if xi < 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumn, xField)
	}
	if yi < 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumn, yField)
	}

	columns := []int{}
	fields := []string{}
	for i, name := range header {
		if i == xi || i == yi {
			continue
		}
		columns = append(columns, i)
		fields = append(fields, name)
	}

	table := NewTable(fields...)
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error reading line %d: %w", line, err)
		}

		x, err := strconv.ParseFloat(strings.TrimSpace(record[xi]), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: bad %s: %w", line, xField, err)
		}
		y, err := strconv.ParseFloat(strings.TrimSpace(record[yi]), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: bad %s: %w", line, yField, err)
		}

		values := make([]float64, len(columns))
		for i, c := range columns {
			values[i] = parseValue(record[c])
		}

		if err := table.Add(orb.Point{x, y}, values...); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
	}

	return table, nil
}

func parseValue(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

// OpenCSV reads a table from a file, .zst files are decompressed on the fly.
func OpenCSV(name, xField, yField string) (*Table, error) {
	file, err := os.Open(name)
	if err != nil {
		return nil, fmt.Errorf("can`t open file error: %w", err)
	}
	defer file.Close()

	var r io.Reader = file
	if strings.HasSuffix(name, ".zst") {
		dec, err := zstd.NewReader(file)
		if err != nil {
			return nil, fmt.Errorf("can`t create zstd reader: %w", err)
		}
		defer dec.Close()
		r = dec
	}

	return ReadCSV(r, xField, yField)
}

// WriteCSV writes the table with x and y as the first two columns. No-data
// cells are left empty.
func WriteCSV(w io.Writer, t *Table) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(append([]string{"x", "y"}, t.fields...)); err != nil {
		return err
	}

	record := make([]string, len(t.fields)+2)
	for i, p := range t.points {
		record[0] = strconv.FormatFloat(p.X(), 'g', -1, 64)
		record[1] = strconv.FormatFloat(p.Y(), 'g', -1, 64)
		for a := range t.fields {
			if t.IsNoData(i, a) {
				record[a+2] = ""
				continue
			}
			record[a+2] = strconv.FormatFloat(t.rows[i][a], 'g', -1, 64)
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

// CreateCSV writes the table to a file, compressed with zstd when the name
// ends with .zst.
func CreateCSV(name string, t *Table) error {
	file, err := os.Create(name)
	if err != nil {
		return fmt.Errorf("can`t create file: %w", err)
	}
	defer file.Close()

	if !strings.HasSuffix(name, ".zst") {
		if err := WriteCSV(file, t); err != nil {
			return err
		}
		return file.Close()
	}

	enc, err := zstd.NewWriter(file)
	if err != nil {
		return fmt.Errorf("can`t create zstd writer: %w", err)
	}
	if err := WriteCSV(enc, t); err != nil {
		enc.Close()
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	return file.Close()
}
