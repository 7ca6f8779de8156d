package query

import (
	"database/sql"
	"fmt"
	"strconv"

	"github.com/GabrielVillas-DLSU/STADVDB-MCO2-WEBAPP/internal/model"
)

// Row is one result row keyed by column name.
type Row map[string]any

// Rows is an ordered result set.
type Rows []Row

// ScanRows reads every row from rows. Drivers that return text columns as
// []byte (MySQL) are normalised to string so results compare equal across
// node types. The caller still owns rows and must close it.
//
// Returns an empty slice (not nil) when there are no rows.
func ScanRows(rows *sql.Rows) (Rows, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read columns: %w", err)
	}

	out := Rows{}
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		row := make(Row, len(cols))
		for i, col := range cols {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
				continue
			}
			row[col] = values[i]
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return out, nil
}

// Record converts a title row back into a model.Record.
func (r Row) Record() (model.Record, error) {
	key, ok := r["tconst"].(string)
	if !ok || key == "" {
		return model.Record{}, fmt.Errorf("row has no tconst")
	}

	rec := model.Record{
		Key:           key,
		TitleType:     asString(r["titleType"]),
		PrimaryTitle:  asString(r["primaryTitle"]),
		OriginalTitle: asString(r["originalTitle"]),
		Genres:        asString(r["genres"]),
	}

	adult, _, err := asInt(r["isAdult"])
	if err != nil {
		return model.Record{}, fmt.Errorf("row %s: isAdult: %w", key, err)
	}
	rec.IsAdult = adult != 0

	for col, dst := range map[string]**int{
		"startYear":      &rec.StartYear,
		"endYear":        &rec.EndYear,
		"runtimeMinutes": &rec.RuntimeMinutes,
	} {
		v, present, err := asInt(r[col])
		if err != nil {
			return model.Record{}, fmt.Errorf("row %s: %s: %w", key, col, err)
		}
		if present {
			*dst = model.IntPtr(v)
		}
	}

	return rec, nil
}

// Records converts every row with Row.Record.
func (rs Rows) Records() ([]model.Record, error) {
	out := make([]model.Record, 0, len(rs))
	for _, row := range rs {
		rec, err := row.Record()
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func asString(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case []byte:
		return string(val)
	default:
		return ""
	}
}

// asInt converts a driver value to int. present is false for NULL.
func asInt(v any) (n int, present bool, err error) {
	switch val := v.(type) {
	case nil:
		return 0, false, nil
	case int64:
		return int(val), true, nil
	case int32:
		return int(val), true, nil
	case int:
		return val, true, nil
	case float64:
		return int(val), true, nil
	case bool:
		if val {
			return 1, true, nil
		}
		return 0, true, nil
	case string:
		parsed, err := strconv.Atoi(val)
		if err != nil {
			return 0, false, err
		}
		return parsed, true, nil
	case []byte:
		parsed, err := strconv.Atoi(string(val))
		if err != nil {
			return 0, false, err
		}
		return parsed, true, nil
	default:
		return 0, false, fmt.Errorf("unsupported value type %T", v)
	}
}
