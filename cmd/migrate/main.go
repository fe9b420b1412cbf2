package main

import (
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/aihub/support-portal/internal/config"
	"github.com/aihub/support-portal/internal/database"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	_ "github.com/lib/pq"           // PostgreSQL driver
	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

func main() {
	var action = flag.String("action", "up", "Migration action: up, down, version, goto, force")
	var version = flag.Int("version", -1, "Target version for goto/force")
	var driver = flag.String("driver", "", "Database driver: postgres or sqlite3 (default from config)")
	var dsn = flag.String("dsn", "", "Database DSN (default from config)")
	flag.Parse()

	_ = godotenv.Load()
	cfg, err := config.NewLoader().Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 默认迁移知识库所在的库
	if *driver == "" {
		if cfg.RAG.CorpusBackend == "sql" {
			*driver = cfg.RAG.SQL.Driver
		} else {
			*driver = "postgres"
		}
	}
	if *dsn == "" {
		if *driver == "postgres" && cfg.RAG.CorpusBackend != "sql" {
			*dsn = cfg.Database.URL
		} else {
			*dsn = cfg.RAG.SQL.DSN
		}
	}

	db, err := sql.Open(*driver, *dsn)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}

	logger := logrus.New()
	logger.SetLevel(logrus.InfoLevel)

	migrationManager, err := database.NewMigrationManager(db, *driver, cfg.Database.MigrationsPath, logger)
	if err != nil {
		log.Fatalf("Failed to create migration manager: %v", err)
	}
	defer migrationManager.Close()

	switch *action {
	case "up":
		fmt.Println("Running migrations up...")
		if err := migrationManager.Up(); err != nil {
			log.Fatalf("Migration up failed: %v", err)
		}
		fmt.Println("Migrations completed successfully")

	case "down":
		fmt.Println("Rolling back migrations...")
		if err := migrationManager.Down(); err != nil {
			log.Fatalf("Migration down failed: %v", err)
		}
		fmt.Println("Rollback completed successfully")

	case "version":
		v, dirty, err := migrationManager.Version()
		if err != nil {
			log.Fatalf("Failed to get version: %v", err)
		}
		fmt.Printf("Current version: %d", v)
		if dirty {
			fmt.Printf(" (dirty - manual intervention required)")
		}
		fmt.Println()

	case "goto":
		if *version < 0 {
			log.Fatal("Version must be specified for goto action")
		}
		fmt.Printf("Migrating to version %d...\n", *version)
		if err := migrationManager.MigrateTo(uint(*version)); err != nil {
			log.Fatalf("Migration to version %d failed: %v", *version, err)
		}
		fmt.Printf("Successfully migrated to version %d\n", *version)

	case "force":
		if *version < 0 {
			log.Fatal("Version must be specified for force action")
		}
		if err := migrationManager.ForceVersion(uint(*version)); err != nil {
			log.Fatalf("Force version %d failed: %v", *version, err)
		}
		fmt.Printf("Forced version %d\n", *version)

	default:
		fmt.Printf("Unknown action: %s\n", *action)
		fmt.Println("Available actions: up, down, version, goto, force")
		os.Exit(1)
	}
}
