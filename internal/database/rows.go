package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

var rowKeys = map[string]string{
	TasksTable:    "id",
	CommentsTable: "id",
	MetricsTable:  "bot_name",
}

// RowJSON reads the current image of a row as JSON, in the same shape the change triggers emit
func (db *DB) RowJSON(ctx context.Context, table, key string) (json.RawMessage, error) {
	keyColumn, ok := rowKeys[table]
	if !ok {
		return nil, fmt.Errorf("unknown table %q", table)
	}

	query := fmt.Sprintf(`SELECT row_to_json(t) FROM %s t WHERE t.%s::text = $1`, table, keyColumn)

	var raw []byte
	err := db.QueryRowContext(ctx, query, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s row %s: %w", table, key, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s row: %w", table, err)
	}
	return json.RawMessage(raw), nil
}
