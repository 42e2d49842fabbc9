package main

import (
	"os"

	"playroomserver/internal/config"
	"playroomserver/internal/database"
	"playroomserver/internal/models"
	"playroomserver/internal/utils"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

func main() {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.json"
	}
	cfg, err := config.Load(path)
	if err != nil {
		panic(err)
	}
	logger, err := utils.InitLogger(cfg.Debug)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	db, err := database.InitPostgreSQL(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	if err := database.AutoMigrate(db); err != nil {
		logger.Fatal("Migration failed", zap.Error(err))
	}

	for _, m := range models.All() {
		name := tableName(db, m)
		if !db.Migrator().HasTable(m) {
			logger.Fatal("Table missing after migration", zap.String("table", name))
		}
		logger.Info("Table ready", zap.String("table", name))
	}
}

func tableName(db *gorm.DB, m interface{}) string {
	stmt := &gorm.Statement{DB: db}
	if err := stmt.Parse(m); err != nil {
		return "unknown"
	}
	return stmt.Schema.Table
}
