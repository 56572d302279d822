package database

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/juju/errors"
	_ "modernc.org/sqlite"
)

// MemoryPath opens a private in-memory database. It lives exactly as long as
// the Store that opened it.
const MemoryPath = ":memory:"

// Open opens (creating if necessary) the SQLite file at path and verifies the
// connection. The handle is capped at a single connection so the returned
// Store is the only writer that can reach the file through this process.
func Open(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.NotValidf("empty storage path")
	}
	dsn := MemoryPath
	if path != MemoryPath {
		clean := filepath.Clean(path)
		if err := os.MkdirAll(filepath.Dir(clean), 0o755); err != nil {
			return nil, errors.Annotatef(err, "creating storage dir for %q", clean)
		}
		// synchronous=FULL -> a returned write is on disk
		dsn = clean + "?_pragma=journal_mode(WAL)&_pragma=synchronous(FULL)&_pragma=busy_timeout(5000)&_txlock=immediate"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Annotatef(err, "opening sqlite %q", path)
	}

	// One connection: statements from the owning actor are serialized on it
	// and an in-memory database survives between statements.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Annotatef(err, "pinging sqlite %q", path)
	}
	return &Store{db: db, conn: conn{q: db}}, nil
}
