package repository

import (
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
)

// ErrStaleWrite reports a guarded write that matched no row because the row changed concurrently
// or no longer satisfies the write precondition.
var ErrStaleWrite = errors.New("stale write")

// ErrDuplicate reports a unique constraint violation.
var ErrDuplicate = errors.New("duplicate key")

// ErrLocked reports a write refused because result rows depend on the target.
var ErrLocked = errors.New("referenced by results")

// conditions accumulates WHERE clauses with positional arguments. Each format takes the
// argument index through %[1]d so one value may be referenced more than once.
type conditions struct {
	clauses []string
	args    []interface{}
}

func (c *conditions) add(format string, value interface{}) {
	c.args = append(c.args, value)
	c.clauses = append(c.clauses, fmt.Sprintf(format, len(c.args)))
}

func (c *conditions) raw(clause string) {
	c.clauses = append(c.clauses, clause)
}

func (c *conditions) where() string {
	if len(c.clauses) == 0 {
		return " WHERE 1=1"
	}
	return " WHERE " + strings.Join(c.clauses, " AND ")
}

// pageClause renders ORDER BY / LIMIT / OFFSET with the sort column restricted to an allowlist.
func pageClause(sortBy, sortOrder string, allowed map[string]string, defaultSort string, page, size int) string {
	return " ORDER BY " + orderTerm(sortBy, sortOrder, allowed, defaultSort) + limitClause(page, size)
}

func orderTerm(sortBy, sortOrder string, allowed map[string]string, defaultSort string) string {
	column, ok := allowed[sortBy]
	if !ok {
		column = allowed[defaultSort]
	}
	order := strings.ToUpper(sortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	return column + " " + order
}

func limitClause(page, size int) string {
	page, size = normalisePage(page, size)
	return fmt.Sprintf(" LIMIT %d OFFSET %d", size, (page-1)*size)
}

func normalisePage(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 20
	}
	return page, size
}

func likePattern(search string) string {
	return "%" + strings.ToLower(strings.TrimSpace(search)) + "%"
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

func isForeignKeyViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23503"
}

func wrapWrite(op string, err error) error {
	if isUniqueViolation(err) {
		return fmt.Errorf("%s: %w", op, ErrDuplicate)
	}
	return fmt.Errorf("%s: %w", op, err)
}
