package sqlite

import (
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// openAttached opens a memdb connection with a second memdb database
// attached as "db two".
func openAttached(t *testing.T) *Conn {
	t.Helper()
	c, err := OpenURI(MemoryURI())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { c.Close() })
	if err := c.ExecuteWith(`ATTACH ? AS "db two"`, MemoryURI()); err != nil {
		t.Fatal(err)
	}
	return c
}

// shopSchema is a script creating a table with an index, a view and a
// trigger in schema.
func shopSchema(schema string) string {
	return strings.NewReplacer("$S", schema).Replace(`
		CREATE TABLE $S.orders (id INTEGER PRIMARY KEY, buyer TEXT, total INTEGER);
		CREATE INDEX $S.orders_buyer ON orders (buyer);
		CREATE VIEW $S.big_orders AS SELECT id, total FROM orders WHERE total > 100;
		CREATE TRIGGER $S.big_orders_edit INSTEAD OF UPDATE OF total ON big_orders
		BEGIN
			UPDATE orders SET total = NEW.total WHERE id = NEW.id;
		END;
	`)
}

func schemaKinds(t *testing.T, c *Conn, schema string) map[string]string {
	t.Helper()
	s := mustPrepare(t, c, "SELECT name, type FROM "+quoteIdent(schema)+
		`.sqlite_schema WHERE name NOT LIKE 'sqlite\_%' ESCAPE '\'`)
	got := map[string]string{}
	for row, err := range s.Cursor().All() {
		if err != nil {
			t.Fatal(err)
		}
		got[Read[string](row, 0)] = Read[string](row, 1)
	}
	return got
}

func TestDropAll(t *testing.T) {
	c := openAttached(t)
	script := "BEGIN;" + shopSchema(`"db two"`) + shopSchema("main") + `
		CREATE TABLE "db two".coupons (code TEXT PRIMARY KEY, pct INTEGER); -- has an automatic index
		CREATE TABLE "db two".seq (id INTEGER PRIMARY KEY AUTOINCREMENT);
		INSERT INTO "db two".seq DEFAULT VALUES;
		COMMIT;`
	if err := c.Execute(script); err != nil {
		t.Fatal(err)
	}

	if err := DropAll(c, "db two"); err != nil {
		t.Fatal(err)
	}
	if got := schemaKinds(t, c, "db two"); len(got) != 0 {
		t.Errorf(`"db two" left with %v`, got)
	}
	want := map[string]string{
		"orders":          "table",
		"orders_buyer":    "index",
		"big_orders":      "view",
		"big_orders_edit": "trigger",
	}
	if diff := cmp.Diff(want, schemaKinds(t, c, "main")); diff != "" {
		t.Errorf("main schema (-want +got):\n%s", diff)
	}

	if err := DropAll(c, ""); err != nil {
		t.Fatal(err)
	}
	if got := schemaKinds(t, c, "main"); len(got) != 0 {
		t.Errorf("main left with %v", got)
	}
}

func TestCopyAll(t *testing.T) {
	c := openAttached(t)
	script := shopSchema("main") + `
		INSERT INTO orders VALUES (1, 'ann', 250), (2, 'bo', 40);
		CREATE TABLE coupons (code TEXT PRIMARY KEY, pct INTEGER);
		CREATE UNIQUE INDEX coupons_pct ON coupons (pct);
		INSERT INTO coupons VALUES ('TEN', 10);`
	if err := c.Execute(script); err != nil {
		t.Fatal(err)
	}

	if err := CopyAll(c, "db two", ""); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(schemaKinds(t, c, "main"), schemaKinds(t, c, "db two")); diff != "" {
		t.Errorf("copied schema (-main +db two):\n%s", diff)
	}

	// The copied view and trigger work against the copied table.
	if err := c.Execute(`UPDATE "db two".big_orders SET total = 300 WHERE id = 1`); err != nil {
		t.Fatal(err)
	}
	s := mustPrepare(t, c, `SELECT buyer, total FROM "db two".orders ORDER BY id`)
	var got []string
	for row, err := range s.Cursor().All() {
		if err != nil {
			t.Fatal(err)
		}
		got = append(got, fmt.Sprintf("%s=%d", Read[string](row, 0), Read[int](row, 1)))
	}
	if diff := cmp.Diff([]string{"ann=300", "bo=40"}, got); diff != "" {
		t.Errorf("copied rows (-want +got):\n%s", diff)
	}

	if err := CopyAll(c, "main", ""); err == nil {
		t.Error("copying main onto itself did not fail")
	}
}

func TestInSchema(t *testing.T) {
	tests := []struct {
		o    schemaObject
		want string
	}{
		{
			schemaObject{"t", "table", "CREATE TABLE t (a)"},
			`CREATE TABLE "x".t (a)`,
		},
		{
			schemaObject{"u", "index", "CREATE UNIQUE INDEX u ON t (a)"},
			`CREATE UNIQUE INDEX "x".u ON t (a)`,
		},
		{
			schemaObject{"my view", "view", `CREATE VIEW "my view" AS SELECT 1`},
			`CREATE VIEW "x"."my view" AS SELECT 1`,
		},
	}
	for _, tt := range tests {
		if got := inSchema(tt.o, `"x"`); got != tt.want {
			t.Errorf("inSchema(%q) = %q, want %q", tt.o.ddl, got, tt.want)
		}
	}
}
