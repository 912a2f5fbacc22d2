package database

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	_ "modernc.org/sqlite"
)

// Options selects and addresses the relational store.
type Options struct {
	Driver     string
	Host       string
	User       string
	Password   string
	Name       string
	Port       string
	SQLitePath string
	Silent     bool
}

// Open connects to postgres or sqlite depending on opts.Driver.
func Open(opts Options) (*gorm.DB, error) {
	switch opts.Driver {
	case "", "postgres":
		return OpenPostgres(opts)
	case "sqlite":
		return OpenSQLite(opts.SQLitePath, opts.Silent)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", opts.Driver)
	}
}

func OpenPostgres(opts Options) (*gorm.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		valueOrDefault(opts.Host, "localhost"),
		valueOrDefault(opts.User, "postgres"),
		opts.Password,
		valueOrDefault(opts.Name, "realmkeeper"),
		valueOrDefault(opts.Port, "5432"),
	)

	db, err := gorm.Open(postgres.Open(dsn), gormConfig(opts.Silent))
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}
	return db, nil
}

// OpenSQLite opens a cgo-free sqlite database at path.
func OpenSQLite(path string, silent bool) (*gorm.DB, error) {
	if path == "" {
		path = "realmkeeper.db"
	}
	db, err := gorm.Open(sqlite.Dialector{
		DriverName: "sqlite",
		DSN:        path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)",
	}, gormConfig(silent))
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	// sqlite serialises writers; a single connection avoids SQLITE_BUSY inside transactions.
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	return db, nil
}

func gormConfig(silent bool) *gorm.Config {
	cfg := &gorm.Config{}
	if silent {
		cfg.Logger = logger.Default.LogMode(logger.Silent)
	}
	return cfg
}

func valueOrDefault(val, fallback string) string {
	if val != "" {
		return val
	}
	return fallback
}
