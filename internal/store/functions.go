package store

import (
	"database/sql"
	"fmt"

	"github.com/ncruces/go-sqlite3"
	sqlite3driver "github.com/ncruces/go-sqlite3/driver"
)

// Predicate is a host-language scalar function pushed down into the query
// evaluator under Name, so it can be called from SQL as Name(arg1, arg2,
// ...). This is the mechanism by which similarity is evaluated inside the
// self-join rather than after materializing the full candidate set.
type Predicate struct {
	Name  string
	Arity int
	Fn    func(args ...string) float64
}

// WorkerConn opens a dedicated, single-connection handle to the store file
// with every predicate in preds registered on it. Each coordination-engine
// worker calls this once at startup: predicate registration and temporary
// tables are both connection-scoped in SQLite, so a worker must own its
// connection outright rather than borrow one from a shared pool.
func WorkerConn(path string, preds ...Predicate) (*sql.DB, error) {
	init := func(c *sqlite3.Conn) error {
		for _, p := range preds {
			fn := p.Fn
			err := c.CreateFunction(p.Name, p.Arity, sqlite3.DETERMINISTIC,
				func(ctx sqlite3.Context, arg ...sqlite3.Value) {
					args := make([]string, len(arg))
					for i, a := range arg {
						args[i] = a.Text()
					}
					ctx.ResultFloat(fn(args...))
				})
			if err != nil {
				return fmt.Errorf("store: register predicate %s: %w", p.Name, err)
			}
		}
		return nil
	}

	db, err := sqlite3driver.Open(path, init)
	if err != nil {
		return nil, fmt.Errorf("store: open worker connection: %w", err)
	}

	// Temp tables and registered functions live on one physical connection;
	// a pool of more than one would silently lose both.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	return db, nil
}

// ErrPredicateMissing is returned when a query references a host predicate
// that was never registered on the connection executing it.
type ErrPredicateMissing struct {
	Name string
}

func (e *ErrPredicateMissing) Error() string {
	return fmt.Sprintf("store: predicate %q not registered on this connection", e.Name)
}
