package gormstore

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
)

func TestSQLitePath(t *testing.T) {
	assert.Equal(t, "./diagrams.db", SQLitePath("sqlite:///./diagrams.db"))
	assert.Equal(t, "/var/lib/app.db", SQLitePath("sqlite:////var/lib/app.db"))
	assert.Equal(t, ":memory:", SQLitePath("sqlite://"))
}

func TestDialectorFor(t *testing.T) {
	d, err := dialectorFor("")
	require.NoError(t, err)
	assert.IsType(t, &sqlite.Dialector{}, d)

	d, err = dialectorFor("data.db")
	require.NoError(t, err)
	assert.Equal(t, "data.db", d.(*sqlite.Dialector).DSN)

	d, err = dialectorFor("postgres://u:p@localhost:5432/diagrams?sslmode=disable")
	require.NoError(t, err)
	assert.IsType(t, &postgres.Dialector{}, d)

	d, err = dialectorFor("mysql://u:p@localhost:3306/diagrams")
	require.NoError(t, err)
	assert.IsType(t, &mysql.Dialector{}, d)

	_, err = dialectorFor("redis://localhost")
	assert.Error(t, err)
}

func TestMySQLDSN(t *testing.T) {
	dsn, err := mysqlDSN("mysql://user:pa%40ss@db:3306/diagrams?charset=utf8mb4")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(dsn, "user:pa@ss@tcp(db:3306)/diagrams?"), dsn)
	assert.Contains(t, dsn, "parseTime=true")
	assert.Contains(t, dsn, "charset=utf8mb4")
}
