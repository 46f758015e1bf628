package ops

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/Ananthavalli1991/ananthi-tdsproj1/internal/operation"
	"github.com/Ananthavalli1991/ananthi-tdsproj1/internal/pathguard"
)

// Record is one CSV row. It marshals as a JSON object whose keys keep the
// header order.
type Record struct {
	Columns []string
	Values  []string
}

// Get returns the value of column, or "" when absent.
func (r Record) Get(column string) string {
	for i, c := range r.Columns {
		if c == column {
			return r.Values[i]
		}
	}
	return ""
}

func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, c := range r.Columns {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(c)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(r.Values[i])
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// FilterCSV returns the rows of file whose column equals value exactly.
func FilterCSV(g *pathguard.Guard, file, column, value string) ([]Record, error) {
	file = LocalPath(file)
	if file == "" {
		return nil, errors.New("filter csv: no file given")
	}
	f, err := g.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, operation.Errorf(operation.KindColumnNotFound, column, "%s has no header", file)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", file, err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	col := -1
	for i, h := range header {
		if h == column {
			col = i
			break
		}
	}
	if col < 0 {
		return nil, operation.Errorf(operation.KindColumnNotFound, column, "not in %s", file)
	}

	records := []Record{}
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", file, err)
		}
		if col >= len(row) || row[col] != value {
			continue
		}
		vals := make([]string, len(header))
		copy(vals, row)
		records = append(records, Record{Columns: header, Values: vals})
	}
	return records, nil
}

func (o *ops) filterCSV(ctx context.Context, p operation.Params) (string, error) {
	column := p.Get("column", "")
	if column == "" {
		return "", operation.Errorf(operation.KindColumnNotFound, "filter csv", "no column given")
	}
	records, err := FilterCSV(o.Guard, p.Get("file", ""), column, p.Get("value", ""))
	if err != nil {
		return "", err
	}
	out, err := json.Marshal(records)
	if err != nil {
		return "", fmt.Errorf("encode records: %w", err)
	}
	return string(out), nil
}
