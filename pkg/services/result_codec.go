package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/ekaya-inc/ekaya-hangar/pkg/models"
)

// cacheFormatVersion is bumped whenever cachedResult changes shape. Entries
// with another version are treated as unreadable and recomputed.
const cacheFormatVersion = 1

// cachedResult is the stored form of an ExecutionResult. Every cell carries
// its Go type so a cache hit returns the same values the query produced:
// int64 beyond 2^53, time.Time and []byte survive unchanged.
type cachedResult struct {
	Version int            `json:"version"`
	SQL     string         `json:"sql"`
	One     bool           `json:"one,omitempty"`
	Rows    [][]cachedCell `json:"rows"`
}

type cachedCell struct {
	Column string          `json:"c,omitempty"`
	Type   string          `json:"t"`
	Value  json.RawMessage `json:"v,omitempty"`
	Items  []cachedCell    `json:"a,omitempty"`
}

var errCacheFormat = errors.New("unsupported cache entry format")

func encodeResult(result *models.ExecutionResult) ([]byte, error) {
	entry := cachedResult{
		Version: cacheFormatVersion,
		SQL:     result.SQL,
		One:     result.One,
		Rows:    make([][]cachedCell, 0, len(result.Rows)),
	}
	for _, row := range result.Rows {
		cells := make([]cachedCell, 0, row.Len())
		for pair := row.Oldest(); pair != nil; pair = pair.Next() {
			cell, err := encodeCell(pair.Value)
			if err != nil {
				return nil, fmt.Errorf("column %s: %w", pair.Key, err)
			}
			cell.Column = pair.Key
			cells = append(cells, cell)
		}
		entry.Rows = append(entry.Rows, cells)
	}
	return json.Marshal(entry)
}

func decodeResult(data []byte) (*models.ExecutionResult, error) {
	var entry cachedResult
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, err
	}
	if entry.Version != cacheFormatVersion {
		return nil, fmt.Errorf("%w: version %d", errCacheFormat, entry.Version)
	}

	result := &models.ExecutionResult{
		SQL:  entry.SQL,
		One:  entry.One,
		Rows: make([]models.Row, 0, len(entry.Rows)),
	}
	for _, cells := range entry.Rows {
		row := models.NewRow()
		for _, cell := range cells {
			value, err := decodeCell(cell)
			if err != nil {
				return nil, fmt.Errorf("column %s: %w", cell.Column, err)
			}
			row.Set(cell.Column, value)
		}
		result.Rows = append(result.Rows, row)
	}
	return result, nil
}

func encodeCell(v any) (cachedCell, error) {
	var tag string
	switch v := v.(type) {
	case nil:
		return cachedCell{Type: "null"}, nil
	case []any:
		items := make([]cachedCell, len(v))
		for i, item := range v {
			cell, err := encodeCell(item)
			if err != nil {
				return cachedCell{}, err
			}
			items[i] = cell
		}
		return cachedCell{Type: "array", Items: items}, nil
	case bool:
		tag = "bool"
	case string:
		tag = "string"
	case []byte:
		tag = "bytes"
	case int:
		tag = "int"
	case int8:
		tag = "int8"
	case int16:
		tag = "int16"
	case int32:
		tag = "int32"
	case int64:
		tag = "int64"
	case uint:
		tag = "uint"
	case uint8:
		tag = "uint8"
	case uint16:
		tag = "uint16"
	case uint32:
		tag = "uint32"
	case uint64:
		tag = "uint64"
	case float32:
		tag = "float32"
	case float64:
		tag = "float64"
	case time.Time:
		tag = "time"
	default:
		// Driver-decoded documents (json/jsonb maps) and anything else
		// round-trip through their JSON form.
		tag = "json"
	}

	raw, err := json.Marshal(v)
	if err != nil {
		return cachedCell{}, err
	}
	return cachedCell{Type: tag, Value: raw}, nil
}

func decodeCell(cell cachedCell) (any, error) {
	raw := string(cell.Value)
	switch cell.Type {
	case "null":
		return nil, nil
	case "array":
		items := make([]any, len(cell.Items))
		for i, item := range cell.Items {
			v, err := decodeCell(item)
			if err != nil {
				return nil, err
			}
			items[i] = v
		}
		return items, nil
	case "bool":
		return strconv.ParseBool(raw)
	case "string":
		var s string
		err := json.Unmarshal(cell.Value, &s)
		return s, err
	case "bytes":
		var b []byte
		err := json.Unmarshal(cell.Value, &b)
		return b, err
	case "int":
		n, err := strconv.ParseInt(raw, 10, strconv.IntSize)
		return int(n), err
	case "int8":
		n, err := strconv.ParseInt(raw, 10, 8)
		return int8(n), err
	case "int16":
		n, err := strconv.ParseInt(raw, 10, 16)
		return int16(n), err
	case "int32":
		n, err := strconv.ParseInt(raw, 10, 32)
		return int32(n), err
	case "int64":
		return strconv.ParseInt(raw, 10, 64)
	case "uint":
		n, err := strconv.ParseUint(raw, 10, strconv.IntSize)
		return uint(n), err
	case "uint8":
		n, err := strconv.ParseUint(raw, 10, 8)
		return uint8(n), err
	case "uint16":
		n, err := strconv.ParseUint(raw, 10, 16)
		return uint16(n), err
	case "uint32":
		n, err := strconv.ParseUint(raw, 10, 32)
		return uint32(n), err
	case "uint64":
		return strconv.ParseUint(raw, 10, 64)
	case "float32":
		f, err := strconv.ParseFloat(raw, 32)
		return float32(f), err
	case "float64":
		return strconv.ParseFloat(raw, 64)
	case "time":
		var t time.Time
		err := json.Unmarshal(cell.Value, &t)
		return t, err
	case "json":
		var v any
		err := json.Unmarshal(cell.Value, &v)
		return v, err
	default:
		return nil, fmt.Errorf("%w: cell type %q", errCacheFormat, cell.Type)
	}
}
