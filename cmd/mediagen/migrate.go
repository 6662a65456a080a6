package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/BaSui01/mediagen/internal/database"
	"gorm.io/gorm"
)

// =============================================================================
// 数据库迁移命令（结果表由 GORM AutoMigrate 维护）
// =============================================================================

func runMigrate(args []string) {
	if len(args) < 1 {
		printMigrateUsage()
		os.Exit(1)
	}

	var run func(ctx context.Context, db *gorm.DB) error
	switch args[0] {
	case "up":
		run = migrateUp
	case "down":
		run = migrateDown
	case "status":
		run = migrateStatus
	case "help", "-h", "--help":
		printMigrateUsage()
		return
	default:
		fmt.Fprintf(os.Stderr, "Unknown migrate subcommand: %s\n", args[0])
		printMigrateUsage()
		os.Exit(1)
	}

	db, closeDB, err := openMigrationDB(args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open database: %v\n", err)
		os.Exit(1)
	}
	defer closeDB()

	if err := run(context.Background(), db); err != nil {
		fmt.Fprintf(os.Stderr, "Migration %s failed: %v\n", args[0], err)
		os.Exit(1)
	}
}

func printMigrateUsage() {
	fmt.Println(`Database Migration Commands

Usage:
  mediagen migrate <subcommand> [options]

Subcommands:
  up        Create or update the task outcome table
  down      Drop the task outcome table
  status    Show whether the table exists
  help      Show this help message

Options:
  --config <path>     Path to configuration file (YAML)
  --db-type <type>    Database type: postgres, mysql, sqlite (default: from config)`)
}

// openMigrationDB 按配置打开数据库；迁移命令不要求 database.enabled
func openMigrationDB(args []string) (*gorm.DB, func(), error) {
	fs := flag.NewFlagSet("migrate", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	dbType := fs.String("db-type", "", "Database type (postgres, mysql, sqlite)")
	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if *dbType != "" {
		cfg.Database.Driver = *dbType
	}

	db, err := database.Open(cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	closeDB := func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	return db, closeDB, nil
}

func migrateUp(ctx context.Context, db *gorm.DB) error {
	if err := database.NewTaskRepository(db).AutoMigrate(ctx); err != nil {
		return err
	}
	fmt.Println("Task outcome table is up to date")
	return nil
}

func migrateDown(ctx context.Context, db *gorm.DB) error {
	if err := db.WithContext(ctx).Migrator().DropTable(&database.TaskRecord{}); err != nil {
		return err
	}
	fmt.Println("Task outcome table dropped")
	return nil
}

func migrateStatus(ctx context.Context, db *gorm.DB) error {
	m := db.WithContext(ctx).Migrator()
	table := database.TaskRecord{}.TableName()
	if !m.HasTable(&database.TaskRecord{}) {
		fmt.Printf("%s: missing (run 'mediagen migrate up')\n", table)
		return nil
	}
	var count int64
	if err := db.WithContext(ctx).Model(&database.TaskRecord{}).Count(&count).Error; err != nil {
		return err
	}
	fmt.Printf("%s: present, %d records\n", table, count)
	return nil
}
