package db

import (
	"fmt"
	"strings"
)

// SearchQuery builds the WHERE clause of a list query from request filters.
// It is a plain value: handlers build it, repositories render it.
type SearchQuery struct {
	from     string
	cols     string
	distinct bool
	where    []string
	args     []interface{}
	orderBy  string
}

// NewSearchQuery starts a query over from (a table or join expression).
func NewSearchQuery(from, cols string) *SearchQuery {
	return &SearchQuery{from: from, cols: cols}
}

func (q *SearchQuery) next(arg interface{}) string {
	q.args = append(q.args, arg)
	return fmt.Sprintf("$%d", len(q.args))
}

// Distinct makes both the data and the count query DISTINCT on the selected columns.
func (q *SearchQuery) Distinct() *SearchQuery {
	q.distinct = true
	return q
}

// AddEq adds column = value.
func (q *SearchQuery) AddEq(column string, value interface{}) *SearchQuery {
	q.where = append(q.where, column+" = "+q.next(value))
	return q
}

// AddAnyILike adds (c1 ILIKE %v% OR c2 ILIKE %v% ...). Empty values are ignored.
func (q *SearchQuery) AddAnyILike(value string, columns ...string) *SearchQuery {
	value = strings.TrimSpace(value)
	if value == "" || len(columns) == 0 {
		return q
	}
	ph := q.next("%" + escapeLike(value) + "%")
	parts := make([]string, len(columns))
	for i, c := range columns {
		parts[i] = c + " ILIKE " + ph
	}
	q.where = append(q.where, "("+strings.Join(parts, " OR ")+")")
	return q
}

// Add appends a raw predicate using ? as the placeholder for each arg.
func (q *SearchQuery) Add(clause string, args ...interface{}) *SearchQuery {
	for _, a := range args {
		clause = strings.Replace(clause, "?", q.next(a), 1)
	}
	q.where = append(q.where, clause)
	return q
}

// OrderBy sets the ORDER BY clause (without the keyword).
func (q *SearchQuery) OrderBy(orderBy string) *SearchQuery {
	q.orderBy = orderBy
	return q
}

func (q *SearchQuery) whereSQL() string {
	if len(q.where) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(q.where, " AND ")
}

// CountSQL returns the count query.
func (q *SearchQuery) CountSQL() string {
	if q.distinct {
		return fmt.Sprintf("SELECT COUNT(*) FROM (SELECT DISTINCT %s FROM %s%s) AS sub", q.cols, q.from, q.whereSQL())
	}
	return fmt.Sprintf("SELECT COUNT(*) FROM %s%s", q.from, q.whereSQL())
}

// CountArgs returns the arguments for CountSQL.
func (q *SearchQuery) CountArgs() []interface{} {
	return q.args
}

// DataSQL returns the page query with ORDER BY and LIMIT/OFFSET placeholders.
func (q *SearchQuery) DataSQL() string {
	sel := "SELECT "
	if q.distinct {
		sel = "SELECT DISTINCT "
	}
	sql := sel + q.cols + " FROM " + q.from + q.whereSQL()
	if q.orderBy != "" {
		sql += " ORDER BY " + q.orderBy
	}
	sql += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(q.args)+1, len(q.args)+2)
	return sql
}

// DataArgs returns the arguments for DataSQL.
func (q *SearchQuery) DataArgs(limit, offset int) []interface{} {
	out := make([]interface{}, len(q.args), len(q.args)+2)
	copy(out, q.args)
	return append(out, limit, offset)
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
