package sqlite

import (
	"fmt"
	"strings"
)

// HasTable reports whether the main schema has a table called name.
func (c *Conn) HasTable(name string) (bool, error) {
	return c.exists("SELECT 1 FROM sqlite_master WHERE type = 'table' AND name = ?", name)
}

// HasColumn reports whether table has a column called column.
func (c *Conn) HasColumn(table, column string) (bool, error) {
	return c.exists("SELECT 1 FROM pragma_table_info(?) WHERE name = ?", table, column)
}

// HasValue reports whether any row of table has value in column.
// The identifiers are quoted; value is bound as a parameter.
func (c *Conn) HasValue(table, column string, value any) (bool, error) {
	query := fmt.Sprintf("SELECT 1 FROM %s WHERE %s = ? LIMIT 1", quoteIdent(table), quoteIdent(column))
	return c.exists(query, value)
}

func (c *Conn) exists(query string, args ...any) (bool, error) {
	s, err := c.Prepare(query)
	if err != nil {
		return false, err
	}
	defer s.Close()
	if err := s.BindAll(args...); err != nil {
		return false, err
	}
	row, err := s.Cursor().TryNext()
	return row != nil, err
}

// quoteIdent quotes an SQL identifier.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
