package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"math/big"
	"time"
)

// scanRows reads every row into a column->value map with JSON-friendly values.
func scanRows(rows *sql.Rows) ([]map[string]any, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to get columns: %w", err)
	}

	out := make([]map[string]any, 0)
	for rows.Next() {
		values := make([]any, len(cols))
		dest := make([]any, len(cols))
		for i := range values {
			dest[i] = &values[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		rowMap := make(map[string]any, len(cols))
		for i, col := range cols {
			rowMap[col] = jsonValue(values[i])
		}
		out = append(out, rowMap)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return out, nil
}

func jsonValue(v any) any {
	switch t := v.(type) {
	case []byte:
		if json.Valid(t) && len(t) > 0 && (t[0] == '{' || t[0] == '[') {
			return json.RawMessage(append([]byte(nil), t...))
		}
		return string(t)
	case *big.Int:
		if t == nil {
			return nil
		}
		return t.String()
	case big.Int:
		return t.String()
	case time.Time:
		return t.UTC()
	default:
		return v
	}
}
