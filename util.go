package sqlite

import (
	"fmt"
	"strings"
)

// schemaObject is a row of sqlite_schema.
type schemaObject struct {
	name, kind string
	ddl        string // "" for objects SQLite creates itself
}

// schemaObjects lists the objects in schema, except SQLite's own
// tables such as sqlite_sequence. Automatic indexes are included
// with an empty ddl.
func schemaObjects(c *Conn, schema string) ([]schemaObject, error) {
	s, err := c.Prepare(`SELECT name, type, sql FROM ` + quoteIdent(schema) +
		`.sqlite_schema WHERE name NOT LIKE 'sqlite\_%' ESCAPE '\'`)
	if err != nil {
		return nil, err
	}
	defer s.Close()
	var objs []schemaObject
	for row, err := range s.Cursor().All() {
		if err != nil {
			return nil, err
		}
		var o schemaObject
		var ddl *string
		if err := row.Scan(&o.name, &o.kind, &ddl); err != nil {
			return nil, err
		}
		if ddl != nil {
			o.ddl = *ddl
		}
		switch o.kind {
		case "table", "index", "view", "trigger":
		default:
			return nil, fmt.Errorf("%s: unknown schema object type %q", o.name, o.kind)
		}
		objs = append(objs, o)
	}
	return objs, nil
}

func orMain(schema string) string {
	if schema == "" {
		return "main"
	}
	return schema
}

// DropAll drops every table, index, view and trigger in schema,
// which is a schema name as in https://sqlite.org/pragma.html#syntax.
// "" means "main".
func DropAll(c *Conn, schema string) error {
	schema = orMain(schema)
	objs, err := schemaObjects(c, schema)
	if err != nil {
		return fmt.Errorf("sqlite.DropAll: %w", err)
	}
	// Tables go last. Dropping one takes its indexes and triggers
	// with it, hence IF EXISTS.
	for _, kind := range []string{"index", "trigger", "view", "table"} {
		for _, o := range objs {
			if o.kind != kind {
				continue
			}
			q := "DROP " + strings.ToUpper(kind) + " IF EXISTS " + quoteIdent(schema) + "." + quoteIdent(o.name)
			if err := c.Execute(q); err != nil {
				return fmt.Errorf("sqlite.DropAll: %w", err)
			}
		}
	}
	return nil
}

// CopyAll recreates the objects of schema src in schema dst on the
// same connection and copies every table's rows across. "" means
// "main" for either.
//
// It is an online alternative to copying the database file: run it
// inside one transaction and other connections see the new contents
// atomically.
func CopyAll(c *Conn, dst, src string) error {
	dst, src = orMain(dst), orMain(src)
	if dst == src {
		return fmt.Errorf("sqlite.CopyAll: source and destination are both %q", src)
	}
	objs, err := schemaObjects(c, src)
	if err != nil {
		return fmt.Errorf("sqlite.CopyAll: %w", err)
	}
	for _, o := range objs {
		if o.ddl == "" {
			continue
		}
		if err := c.Execute(inSchema(o, quoteIdent(dst))); err != nil {
			return fmt.Errorf("sqlite.CopyAll: %s: %w", o.name, err)
		}
		if o.kind != "table" {
			continue
		}
		q := fmt.Sprintf("INSERT INTO %s.%s SELECT * FROM %s.%s",
			quoteIdent(dst), quoteIdent(o.name), quoteIdent(src), quoteIdent(o.name))
		if err := c.Execute(q); err != nil {
			return fmt.Errorf("sqlite.CopyAll: %s: %w", o.name, err)
		}
	}
	return nil
}

// inSchema rewrites the CREATE statement of o to create it in schema.
// SQLite stores the statement normalized to start with
// "CREATE <TYPE> <name>", with modifiers such as UNIQUE or TEMP
// between CREATE and the type.
func inSchema(o schemaObject, schema string) string {
	head := "CREATE " + strings.ToUpper(o.kind) + " "
	if !strings.HasPrefix(o.ddl, head) {
		head, _, _ = strings.Cut(o.ddl, o.name)
		head = strings.TrimSuffix(head, `"`)
	}
	return head + schema + "." + strings.TrimPrefix(o.ddl, head)
}
