package dbconn

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// The target database name is process-wide, write-once state: services
// set it during startup and every later pool creation reads it.
var (
	databaseNameMu  sync.Mutex
	databaseName    string
	databaseNameSet bool
)

// SetDatabaseName records the process-wide database name. It may be
// called exactly once; later calls fail regardless of the value.
func SetDatabaseName(name string) error {
	databaseNameMu.Lock()
	defer databaseNameMu.Unlock()
	if databaseNameSet {
		return fmt.Errorf("dbconn: database name already set to %q", databaseName)
	}
	if name == "" {
		return fmt.Errorf("dbconn: database name must not be empty")
	}
	databaseName = name
	databaseNameSet = true
	return nil
}

// DatabaseName returns the process-wide database name, failing if it has
// not been set yet.
func DatabaseName() (string, error) {
	databaseNameMu.Lock()
	defer databaseNameMu.Unlock()
	if !databaseNameSet {
		return "", fmt.Errorf("dbconn: database name has not been set")
	}
	return databaseName, nil
}

// resetDatabaseName clears the write-once cell. Test hook only.
func resetDatabaseName() {
	databaseNameMu.Lock()
	defer databaseNameMu.Unlock()
	databaseName = ""
	databaseNameSet = false
}

// ConnectionURL renders the canonical mysql:// URL for the credentials
// and database, the form our tooling and config files use.
func (d *ConnectionData) ConnectionURL(database string) string {
	return fmt.Sprintf("mysql://%s:%s@%s/%s", d.User, d.Password, d.Host, database)
}

// dsn renders the go-sql-driver DSN equivalent of ConnectionURL.
func (d *ConnectionData) dsn(database string) string {
	return fmt.Sprintf("%s:%s@tcp(%s)/%s?parseTime=true", d.User, d.Password, d.Host, database)
}

// CreatePool opens a MySQL connection pool for the process-wide database
// name. SetDatabaseName must have been called first.
func CreatePool(ctx context.Context, data *ConnectionData) (*sql.DB, error) {
	name, err := DatabaseName()
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("mysql", data.dsn(name))
	if err != nil {
		return nil, fmt.Errorf("dbconn: open mysql: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("dbconn: ping mysql: %w", err)
	}
	return db, nil
}
