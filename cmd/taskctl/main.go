// Command taskctl runs administrative tasks against the task-manager database.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"task-manager/configs"
	"task-manager/pkg/database"
	"task-manager/pkg/logger"
)

func main() {
	logger.InitLoggers()
	defer logger.SyncLoggers()

	cfg := configs.LoadConfig()
	open := func(ctx context.Context) (*sql.DB, error) {
		return database.ConnectDB(ctx, cfg)
	}
	root := newRootCommand(cfg, open)
	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
