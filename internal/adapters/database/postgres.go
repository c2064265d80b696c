package database

import (
	"context"
	"fmt"

	"github.com/Amund211/docprompt/internal/config"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const DB_NAME = "docprompt"

const LOCAL_CONNECTION_STRING = "user=postgres password=postgres dbname=docprompt sslmode=disable"

const MAIN_SCHEMA = "docprompt"
const TESTING_SCHEMA = "docprompt_test"

func GetSchemaName(isTesting bool) string {
	if isTesting {
		return TESTING_SCHEMA
	}
	return MAIN_SCHEMA
}

// https://cloud.google.com/sql/docs/postgres/connect-run
func GetCloudSQLConnectionString(dbUsername, dbPassword, unixSocketPath string) string {
	return fmt.Sprintf(
		"user=%s password=%s database=%s host=%s",
		dbUsername,
		dbPassword,
		DB_NAME,
		unixSocketPath,
	)
}

func NewPostgresDatabase(ctx context.Context, connectionString string) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to db: %w", err)
	}

	if err := createDatabaseIfNotExists(ctx, db, DB_NAME); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create database: %w", err)
	}

	return db, nil
}

func NewCloudsqlPostgresDatabase(ctx context.Context, conf config.Config) (*sqlx.DB, error) {
	connectionString := GetCloudSQLConnectionString(conf.DBUsername(), conf.DBPassword(), conf.CloudSQLUnixSocketPath())
	if conf.IsDevelopment() {
		connectionString = LOCAL_CONNECTION_STRING
	}

	db, err := NewPostgresDatabase(ctx, connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres database: %w", err)
	}

	return db, nil
}

func createDatabaseIfNotExists(ctx context.Context, db *sqlx.DB, dbName string) error {
	var exists bool
	err := db.QueryRowxContext(ctx, "SELECT EXISTS (SELECT 1 FROM pg_database WHERE datname = $1)", dbName).Scan(&exists)
	if err != nil {
		return fmt.Errorf("createDB: failed to check if database exists: %w", err)
	}

	if exists {
		return nil
	}

	_, err = db.ExecContext(ctx, fmt.Sprintf("CREATE DATABASE %s", pq.QuoteIdentifier(dbName)))
	if err != nil {
		return fmt.Errorf("createDB: failed to create database: %w", err)
	}

	return nil
}
