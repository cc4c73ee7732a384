package main

import (
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/joho/godotenv/autoload"
	log "github.com/sirupsen/logrus"

	"plinko/internal/database"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]

	dbURL := getEnv("DATABASE_URL", fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable&search_path=%s",
		getEnv("PLINKO_DB_USERNAME", "postgres"),
		getEnv("PLINKO_DB_PASSWORD", "postgres"),
		getEnv("PLINKO_DB_HOST", "localhost"),
		getEnv("PLINKO_DB_PORT", "5432"),
		getEnv("PLINKO_DB_DATABASE", "plinko"),
		getEnv("PLINKO_DB_SCHEMA", "public"),
	))

	switch command {
	case "up":
		log.Info("running migrations")
		if err := database.RunMigrations(dbURL); err != nil {
			log.Fatalf("migration failed: %v", err)
		}
		log.Info("migrations completed")

	case "down":
		log.Info("rolling back last migration")
		if err := database.RollbackMigration(dbURL); err != nil {
			log.Fatalf("rollback failed: %v", err)
		}
		log.Info("rollback completed")

	case "version":
		version, dirty, err := database.GetMigrationVersion(dbURL)
		if err != nil {
			log.Fatalf("failed to get version: %v", err)
		}
		if dirty {
			log.Warnf("current version: %d (DIRTY - needs manual intervention)", version)
		} else {
			log.Infof("current version: %d", version)
		}

	case "create":
		if len(os.Args) < 3 {
			log.Fatal("usage: migrate create <migration_name>")
		}
		createMigration(getEnv("MIGRATIONS_DIR", "internal/database/migrations"), os.Args[2])

	default:
		log.Errorf("unknown command: %s", command)
		printUsage()
		os.Exit(1)
	}
}

// createMigration writes an empty up/down pair numbered after the highest
// existing version in dir.
func createMigration(dir, name string) {
	files, err := os.ReadDir(dir)
	if err != nil {
		log.Fatalf("failed to read migrations directory: %v", err)
	}

	nextVersion := 1
	for _, file := range files {
		var version int
		if _, err := fmt.Sscanf(file.Name(), "%06d_", &version); err == nil && version >= nextVersion {
			nextVersion = version + 1
		}
	}

	upFile := filepath.Join(dir, fmt.Sprintf("%06d_%s.up.sql", nextVersion, name))
	downFile := filepath.Join(dir, fmt.Sprintf("%06d_%s.down.sql", nextVersion, name))

	upContent := fmt.Sprintf("-- Migration: %s\n\n-- Add your SQL here\n", name)
	if err := os.WriteFile(upFile, []byte(upContent), 0o644); err != nil {
		log.Fatalf("failed to create up migration: %v", err)
	}
	downContent := fmt.Sprintf("-- Rollback: %s\n\n-- Add your rollback SQL here\n", name)
	if err := os.WriteFile(downFile, []byte(downContent), 0o644); err != nil {
		log.Fatalf("failed to create down migration: %v", err)
	}

	log.WithFields(log.Fields{"up": upFile, "down": downFile}).Info("created migration files")
}

func printUsage() {
	fmt.Println("Database Migration Tool")
	fmt.Println()
	fmt.Println("Migrations are embedded in the binary and target the game_state table")
	fmt.Println("used by the postgres store backend.")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  migrate up              Run all pending migrations")
	fmt.Println("  migrate down            Rollback the last migration")
	fmt.Println("  migrate version         Show current migration version")
	fmt.Println("  migrate create <name>   Create a new migration file pair")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  DATABASE_URL            Full connection URL (overrides the parts below)")
	fmt.Println("  PLINKO_DB_HOST          Database host (default: localhost)")
	fmt.Println("  PLINKO_DB_PORT          Database port (default: 5432)")
	fmt.Println("  PLINKO_DB_DATABASE      Database name (default: plinko)")
	fmt.Println("  PLINKO_DB_USERNAME      Database user (default: postgres)")
	fmt.Println("  PLINKO_DB_PASSWORD      Database password (default: postgres)")
	fmt.Println("  PLINKO_DB_SCHEMA        Schema (default: public)")
	fmt.Println("  MIGRATIONS_DIR          Where create writes (default: internal/database/migrations)")
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
