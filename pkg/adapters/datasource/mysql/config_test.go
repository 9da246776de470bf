package mysql

import (
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromMap(t *testing.T) {
	cfg, err := FromMap(map[string]any{
		"host":               "mysql.local",
		"port":               3307,
		"user":               "hangar",
		"password":           "secret",
		"database":           "shop",
		"tls":                "skip-verify",
		"connection_timeout": 5,
	})
	require.NoError(t, err)
	assert.Equal(t, &Config{
		Host: "mysql.local", Port: 3307, User: "hangar", Password: "secret", Database: "shop",
		TLS: "skip-verify", ConnectionTimeout: 5 * time.Second,
	}, cfg)

	_, err = FromMap(map[string]any{"host": "h", "user": "u"})
	assert.ErrorContains(t, err, "database is required")

	_, err = FromMap(map[string]any{"user": "u", "database": "d"})
	assert.ErrorContains(t, err, "host is required")
}

func TestBuildDSN(t *testing.T) {
	dsn, err := buildDSN(&Config{
		Host: "mysql.local", Port: 3306, User: "app", Password: "p@ss:w/rd", Database: "shop",
		TLS: "false", ConnectionTimeout: 3 * time.Second,
	})
	require.NoError(t, err)

	parsed, err := mysql.ParseDSN(dsn)
	require.NoError(t, err)
	assert.Equal(t, "app", parsed.User)
	assert.Equal(t, "p@ss:w/rd", parsed.Passwd)
	assert.Equal(t, "tcp", parsed.Net)
	assert.Equal(t, "mysql.local:3306", parsed.Addr)
	assert.Equal(t, "shop", parsed.DBName)
	assert.True(t, parsed.ParseTime)
	assert.Equal(t, 3*time.Second, parsed.Timeout)
}

func TestBuildDSN_ExplicitDSNGetsParseTime(t *testing.T) {
	dsn, err := buildDSN(&Config{DSN: "u:p@tcp(db:3306)/shop"})
	require.NoError(t, err)

	parsed, err := mysql.ParseDSN(dsn)
	require.NoError(t, err)
	assert.True(t, parsed.ParseTime)
	assert.Equal(t, "shop", parsed.DBName)

	_, err = buildDSN(&Config{DSN: "not a dsn"})
	assert.Error(t, err)
}

func TestConvertTypedValue(t *testing.T) {
	v, ok := convertTypedValue("DECIMAL", []byte("19.99"))
	require.True(t, ok)
	assert.Equal(t, 19.99, v)

	_, ok = convertTypedValue("VARCHAR", []byte("x"))
	assert.False(t, ok)
}
