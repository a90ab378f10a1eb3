package store

import (
	"fmt"
	"os"
)

// Driver names accepted by Open.
const (
	DriverSQLite3  = "sqlite3"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
)

// DefaultDriver is used when Config.Driver is empty.
const DefaultDriver = DriverSQLite3

// Config selects a driver and the data source it connects to.
//
// For the SQLite drivers DSN is a file path (or ":memory:"). For postgres
// and mysql it is the driver's native connection string.
type Config struct {
	Driver string
	DSN    string
}

// LoadConfigFromEnv reads RELGRAPH_DRIVER and RELGRAPH_DSN.
func LoadConfigFromEnv() Config {
	return Config{
		Driver: getEnv("RELGRAPH_DRIVER", DefaultDriver),
		DSN:    getEnv("RELGRAPH_DSN", ""),
	}
}

// Validate checks the driver name and that a DSN is present.
func (c Config) Validate() error {
	switch c.driver() {
	case DriverSQLite3, DriverSQLite, DriverPostgres, DriverMySQL:
	default:
		return fmt.Errorf("unsupported driver: %s", c.Driver)
	}
	if c.DSN == "" {
		return fmt.Errorf("dsn is required for driver %s", c.driver())
	}
	return nil
}

func (c Config) driver() string {
	if c.Driver == "" {
		return DefaultDriver
	}
	return c.Driver
}

// PostgresDSN builds a lib/pq key/value connection string.
func PostgresDSN(host, port, user, password, database string) string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, database)
}

// MySQLDSN builds a go-sql-driver/mysql connection string.
func MySQLDSN(host, port, user, password, database string) string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true", user, password, host, port, database)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
