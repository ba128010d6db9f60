// The sqlitectl command runs queries, scripts, and online backups against
// an SQLite database, and can serve the query and transaction stats of a
// connection pool over HTTP.
//
// Usage:
//
//	sqlitectl [-config file.yaml] query "SELECT ..." [args...]
//	sqlitectl [-config file.yaml] exec "CREATE ...; INSERT ..."
//	sqlitectl [-config file.yaml] backup dst.db
//	sqlitectl [-config file.yaml] serve
package main

import (
	"context"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/corelite/sqlite"
	"github.com/corelite/sqlite/sqliteh"
	"github.com/corelite/sqlite/sqlitelog"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "sqlitectl: %v\n", err)
		os.Exit(1)
	}
}

var errUsage = errors.New("usage: sqlitectl [-config file] query|exec|backup|serve ...")

// run parses args and runs one command, writing its output to stdout.
func run(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("sqlitectl", flag.ContinueOnError)
	configPath := fs.String("config", os.Getenv("SQLITECTL_CONFIG"), "path to a YAML config file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	args = fs.Args()
	if len(args) == 0 {
		return errUsage
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log := sqlitelog.NewLogger(cfg.Logging, nil)
	tracer := sqlitelog.NewTracer(log, cfg.Logging.SlowQuery)

	switch cmd, rest := args[0], args[1:]; cmd {
	case "query":
		if len(rest) == 0 {
			return errUsage
		}
		return withConn(cfg, tracer, func(c *sqlite.Conn) error {
			return runQuery(c, stdout, rest[0], rest[1:])
		})
	case "exec":
		if len(rest) != 1 {
			return errUsage
		}
		return withConn(cfg, tracer, func(c *sqlite.Conn) error {
			if err := c.Execute(rest[0]); err != nil {
				return err
			}
			fmt.Fprintf(stdout, "%d rows changed\n", c.TotalChangeCount())
			return nil
		})
	case "backup":
		if len(rest) != 1 {
			return errUsage
		}
		return withConn(cfg, tracer, func(c *sqlite.Conn) error {
			return runBackup(ctx, log, cfg.Backup, c, rest[0])
		})
	case "serve":
		return serve(ctx, log, cfg)
	default:
		return fmt.Errorf("unknown command %q: %w", cmd, errUsage)
	}
}

// openConn opens cfg.Database and applies its settings.
func openConn(cfg DatabaseConfig) (*sqlite.Conn, error) {
	var (
		c   *sqlite.Conn
		err error
	)
	if strings.HasPrefix(cfg.Path, "file:") {
		c, err = sqlite.OpenURI(cfg.Path)
	} else {
		c, err = sqlite.Open(cfg.Path)
	}
	if err != nil {
		return nil, err
	}
	if err := initConn(cfg, c); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

// initConn keys c, then sets the busy timeout and journal mode.
func initConn(cfg DatabaseConfig, c *sqlite.Conn) error {
	if cfg.Passphrase != "" {
		salt, err := hex.DecodeString(cfg.KeySalt)
		if err != nil {
			return fmt.Errorf("database.key_salt: %w", err)
		}
		if err := c.SetEncryptionKey(sqlite.DeriveEncryptionKey(cfg.Passphrase, salt)); err != nil {
			return err
		}
	}
	if err := c.SetBusyTimeout(cfg.BusyTimeout); err != nil {
		return err
	}
	if cfg.WALMode {
		return c.Execute("PRAGMA journal_mode=WAL;")
	}
	return nil
}

func withConn(cfg *Config, tracer sqliteh.Tracer, fn func(*sqlite.Conn) error) error {
	c, err := openConn(cfg.Database)
	if err != nil {
		return err
	}
	c.SetTracer(tracer)
	defer c.Close()
	return fn(c)
}

// runQuery prints the rows of query as tab-aligned columns with a header.
func runQuery(c *sqlite.Conn, stdout io.Writer, query string, args []string) error {
	stmt, err := c.Prepare(query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	bound := make([]any, len(args))
	for i, a := range args {
		bound[i] = a
	}

	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(stmt.ColumnNames(), "\t"))
	cells := make([]string, stmt.ColumnCount())
	for row, err := range stmt.Cursor().Bind(bound...).All() {
		if err != nil {
			return err
		}
		vals, err := row.Values()
		if err != nil {
			return err
		}
		for i, v := range vals {
			cells[i] = displayValue(v)
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	return tw.Flush()
}

// displayValue is v as a person would want to read it:
// text without quotes, everything else as an SQL literal.
func displayValue(v sqlite.Value) string {
	if s, ok := v.Text(); ok {
		return s
	}
	return v.String()
}

func runBackup(ctx context.Context, log *slog.Logger, cfg BackupConfig, src *sqlite.Conn, dstPath string) error {
	dst, err := sqlite.Open(dstPath)
	if err != nil {
		return err
	}
	defer dst.Close()

	b, err := sqlite.NewBackup(dst, "main", src, "main")
	if err != nil {
		return err
	}
	log.Info("backing up", "dst", dstPath)
	for more := true; more; {
		if err := ctx.Err(); err != nil {
			b.Finish()
			return err
		}
		var remaining, pageCount int
		more, remaining, pageCount, err = b.Step(cfg.PagesPerStep)
		if err != nil {
			if more && sqlite.IsBusy(err) {
				log.Debug("backup step busy, retrying", "error", err)
				time.Sleep(cfg.StepPause)
				continue
			}
			// fatal errors are returned by Finish too
			break
		}
		log.Debug("backup step", "remaining", remaining, "page_count", pageCount)
		if more {
			time.Sleep(cfg.StepPause)
		}
	}
	if err := b.Finish(); err != nil {
		return err
	}
	log.Info("backup finished", "dst", dstPath)
	return nil
}
