package session

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

const tableColumnsQuery = `
SELECT
    column_name,
    udt_name,
    is_nullable,
    character_maximum_length,
    numeric_precision,
    numeric_scale
FROM
    information_schema.columns
WHERE
    table_name = $1
ORDER BY
    ordinal_position;`

// TableSchema returns the definition of table as a CREATE TABLE statement
// built from information_schema.
func (s *Session) TableSchema(ctx context.Context, table string) (string, error) {
	rows, err := s.ExecuteSQL(ctx, tableColumnsQuery, []any{table}, false)
	if err != nil {
		return "", err
	}
	if rows.Len() == 0 {
		return "", fmt.Errorf("%w: %s", ErrTableNotFound, table)
	}

	definitions := make([]string, 0, rows.Len())
	for _, row := range rows.Values {
		if len(row) < 6 {
			return "", fmt.Errorf("unexpected column description with %d fields", len(row))
		}
		name := asString(row[0])
		udtName := asString(row[1])
		dataType := udtName

		if charLen, ok := asInt(row[3]); ok {
			dataType += fmt.Sprintf("(%d)", charLen)
		} else if precision, ok := asInt(row[4]); ok && (udtName == "numeric" || udtName == "decimal") {
			scale, _ := asInt(row[5])
			dataType += fmt.Sprintf("(%d, %d)", precision, scale)
		}

		definition := "  " + name + " " + dataType
		if asString(row[2]) == "NO" {
			definition += " NOT NULL"
		}
		definitions = append(definitions, definition)
	}

	return fmt.Sprintf("CREATE TABLE %s (\n%s\n);", table, strings.Join(definitions, ",\n")), nil
}

func asString(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return fmt.Sprint(v)
	}
}

func asInt(v any) (int64, bool) {
	switch v := v.(type) {
	case int64:
		return v, true
	case int32:
		return int64(v), true
	case int:
		return int64(v), true
	case []byte:
		n, err := strconv.ParseInt(string(v), 10, 64)
		return n, err == nil
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		return n, err == nil
	default:
		return 0, false
	}
}
