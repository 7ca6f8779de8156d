package query

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/GabrielVillas-DLSU/STADVDB-MCO2-WEBAPP/internal/model"
)

// Columns lists the title columns in storage order.
var Columns = []string{
	"tconst",
	"titleType",
	"primaryTitle",
	"originalTitle",
	"isAdult",
	"startYear",
	"endYear",
	"runtimeMinutes",
	"genres",
}

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Compiled is a SQL string with its bound parameters.
type Compiled struct {
	SQL  string
	Args []any
}

// ValidTable reports whether table can be interpolated into SQL.
func ValidTable(table string) bool {
	return identifierPattern.MatchString(table)
}

// Compile converts stmt to parameterised SQL against table.
func Compile(stmt Statement, table string) (Compiled, error) {
	if !ValidTable(table) {
		return Compiled{}, fmt.Errorf("invalid table name %q", table)
	}

	switch stmt.Kind {
	case KindTitles:
		return compileTitles(stmt, table), nil
	case KindTopGenres:
		return Compiled{SQL: fmt.Sprintf(
			"SELECT genres, COUNT(*) AS cnt FROM %s GROUP BY genres ORDER BY cnt DESC, genres ASC LIMIT 5",
			table)}, nil
	case KindMostTitlesYear:
		return Compiled{SQL: fmt.Sprintf(
			"SELECT startYear, COUNT(*) AS count FROM %s WHERE startYear IS NOT NULL GROUP BY startYear ORDER BY count DESC, startYear ASC LIMIT 1",
			table)}, nil
	case KindAdultCount:
		return Compiled{SQL: fmt.Sprintf(
			"SELECT COALESCE(SUM(CASE WHEN isAdult = 1 THEN 1 ELSE 0 END), 0) AS adultCount, "+
				"COALESCE(SUM(CASE WHEN isAdult = 0 THEN 1 ELSE 0 END), 0) AS nonAdultCount FROM %s",
			table)}, nil
	default:
		return Compiled{}, fmt.Errorf("unsupported statement kind %q", stmt.Kind)
	}
}

func compileTitles(stmt Statement, table string) Compiled {
	var where string
	var args []any

	switch {
	case stmt.Key != "":
		where = " WHERE tconst = ?"
		args = append(args, stmt.Key)
	case stmt.Search != "":
		where = " WHERE primaryTitle LIKE ? OR tconst = ?"
		args = append(args, "%"+stmt.Search+"%", stmt.Search)
	}

	limit := stmt.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}

	sql := fmt.Sprintf("SELECT %s FROM %s%s ORDER BY tconst ASC LIMIT %d",
		strings.Join(Columns, ", "), table, where, limit)
	return Compiled{SQL: sql, Args: args}
}

// CompileUpsert builds a replace-by-key write of rec into table.
func CompileUpsert(table string, rec model.Record) (Compiled, error) {
	if !ValidTable(table) {
		return Compiled{}, fmt.Errorf("invalid table name %q", table)
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(Columns)), ", ")
	sql := fmt.Sprintf("REPLACE INTO %s (%s) VALUES (%s)",
		table, strings.Join(Columns, ", "), placeholders)

	args := []any{
		rec.Key,
		nullString(rec.TitleType),
		nullString(rec.PrimaryTitle),
		nullString(rec.OriginalTitle),
		rec.IsAdult,
		nullInt(rec.StartYear),
		nullInt(rec.EndYear),
		nullInt(rec.RuntimeMinutes),
		nullString(rec.Genres),
	}
	return Compiled{SQL: sql, Args: args}, nil
}

// CompileDelete builds a delete-by-key of key from table.
func CompileDelete(table, key string) (Compiled, error) {
	if !ValidTable(table) {
		return Compiled{}, fmt.Errorf("invalid table name %q", table)
	}
	return Compiled{
		SQL:  fmt.Sprintf("DELETE FROM %s WHERE tconst = ?", table),
		Args: []any{key},
	}, nil
}

// CreateTableSQL returns portable DDL for a title table.
func CreateTableSQL(table string) (string, error) {
	if !ValidTable(table) {
		return "", fmt.Errorf("invalid table name %q", table)
	}
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	tconst VARCHAR(32) NOT NULL PRIMARY KEY,
	titleType VARCHAR(64),
	primaryTitle VARCHAR(1024),
	originalTitle VARCHAR(1024),
	isAdult TINYINT NOT NULL DEFAULT 0,
	startYear INT,
	endYear INT,
	runtimeMinutes INT,
	genres VARCHAR(256)
)`, table), nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullInt(p *int) any {
	if p == nil {
		return nil
	}
	return int64(*p)
}
