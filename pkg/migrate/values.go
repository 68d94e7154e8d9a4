package migrate

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// NormalizeValue converts a value scanned from PostgreSQL into one both
// target drivers accept. Structured values become JSON text.
func NormalizeValue(col Column, v interface{}) (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	st := ParseSourceType(col.DataType)

	switch val := v.(type) {
	case []byte:
		switch st {
		case TypeBytea:
			return append([]byte(nil), val...), nil
		case TypeArray:
			return arrayToJSON(val)
		default:
			// json, jsonb, numeric, uuid, inet and friends arrive as text
			return string(val), nil
		}
	case time.Time:
		switch st {
		case TypeTime, TypeTimeTZ:
			return val.Format("15:04:05.999999"), nil
		case TypeTimestampTZ:
			return val.UTC(), nil
		}
		return val, nil
	case map[string]interface{}, []interface{}:
		return marshalJSON(val)
	case pq.StringArray:
		return marshalJSON([]string(val))
	default:
		return val, nil
	}
}

// arrayToJSON decodes a PostgreSQL array literal such as {a,"b c",NULL}
// into a JSON array string. Elements are kept as strings.
func arrayToJSON(raw []byte) (interface{}, error) {
	var strs pq.StringArray
	if err := strs.Scan(raw); err == nil {
		return marshalJSON([]string(strs))
	}

	// NULL elements cannot be scanned into a StringArray
	var nullable []sql.NullString
	if err := (pq.GenericArray{A: &nullable}).Scan(raw); err != nil {
		return nil, fmt.Errorf("failed to decode array %q: %w", raw, err)
	}
	out := make([]interface{}, len(nullable))
	for i, s := range nullable {
		if s.Valid {
			out[i] = s.String
		}
	}
	return marshalJSON(out)
}

func marshalJSON(v interface{}) (interface{}, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode value as JSON: %w", err)
	}
	return string(b), nil
}
