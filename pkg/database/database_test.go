package database

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"task-manager/configs"
)

func TestDSN(t *testing.T) {
	cfg := configs.Config{DBHost: "db", DBPort: 5432, DBUser: "app", DBPassword: "pw", DBName: "tasks"}
	assert.Equal(t, "host=db port=5432 user=app password=pw dbname=tasks sslmode=disable", DSN(cfg, cfg.DBName))
	assert.Contains(t, DSN(cfg, "tasks_test"), "dbname=tasks_test")
}
