package database

import (
	"context"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"

	"github.com/Alijeyrad/labtrace_backend/config"
	"github.com/Alijeyrad/labtrace_backend/internal/schema"
)

// NewDriver opens an ent SQL driver from central config
func NewDriver(cfg config.DatabaseConfig) (*entsql.Driver, error) {
	return NewDriverFromConfig(FromCentralConfig(cfg))
}

// NewDriverFromConfig opens an ent SQL driver from package Config
func NewDriverFromConfig(cfg Config) (*entsql.Driver, error) {
	db, err := openSQLDB(cfg)
	if err != nil {
		return nil, err
	}
	return entsql.OpenDB(dialect.Postgres, db), nil
}

// Migrate creates or updates the document tables.
func Migrate(ctx context.Context, drv dialect.Driver) error {
	return schema.Create(ctx, drv)
}
