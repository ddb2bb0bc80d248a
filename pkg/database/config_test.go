package database

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Alijeyrad/labtrace_backend/config"
)

func TestFromCentralConfig(t *testing.T) {
	c := FromCentralConfig(config.DatabaseConfig{
		Host:    "db",
		Port:    5433,
		User:    "lab",
		DBName:  "labtrace",
		SSLMode: "disable",
		Pool:    config.DatabasePoolConfig{MaxOpenConns: 10},
	})

	assert.Equal(t, "host=db port=5433 user=lab password= dbname=labtrace sslmode=disable", c.DSN())
	assert.Equal(t, 10, c.MaxOpenConns)
	assert.Equal(t, 5*time.Minute, c.ConnMaxLifetime())
}
