package configlibsql

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"
)

// Struct is the database section of a config file. Either `file` (a local
// sqlite database) or `url` (a libsql:// or https:// remote) must be set.
type Struct struct {
	File string `json:"file"`
	URL  string `json:"url"`
}

func isRemote(url string) bool {
	return strings.HasPrefix(url, "libsql://") ||
		strings.HasPrefix(url, "http://") ||
		strings.HasPrefix(url, "https://") ||
		strings.HasPrefix(url, "ws://") ||
		strings.HasPrefix(url, "wss://")
}

// OpenDB opens the configured database and executes `schema` on it.
func (config Struct) OpenDB(schema string) (*sql.DB, error) {
	var db *sql.DB
	var err error

	switch {
	case config.URL != "":
		if !isRemote(config.URL) {
			return nil, fmt.Errorf("unsupported database url '%s'", config.URL)
		}
		db, err = sql.Open("libsql", config.URL)
		if err != nil {
			return nil, err
		}
	case config.File != "":
		db, err = openFile(config.File)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("a database file or url was not specified")
	}

	if schema != "" {
		_, err = db.Exec(schema)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("apply schema: %w", err)
		}
	}
	return db, nil
}

func openFile(path string) (*sql.DB, error) {
	if path != ":memory:" {
		err := os.MkdirAll(filepath.Dir(path), 0777)
		if err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// sqlite only supports a single writer, see
	// https://stackoverflow.com/questions/35804884/sqlite-concurrent-writing-performance
	db.SetMaxOpenConns(1)
	if path != ":memory:" {
		_, err = db.Exec("PRAGMA journal_mode=WAL")
		if err != nil {
			db.Close()
			return nil, err
		}
	}
	return db, nil
}
