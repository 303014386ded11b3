package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/repwell/repwell/internal/clock"
	"github.com/repwell/repwell/internal/config"
	"github.com/repwell/repwell/internal/logger"
	"github.com/repwell/repwell/internal/migration"
	"github.com/repwell/repwell/internal/scheduler"
	"github.com/repwell/repwell/internal/server"
	"github.com/repwell/repwell/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		logger.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,
		server.Module,
		scheduler.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
