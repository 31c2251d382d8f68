package main

import (
	"flag"
	"log"

	"go.uber.org/zap"

	"github.com/johnquangdev/meeting-intelligence/internal/infrastructure/database"
	"github.com/johnquangdev/meeting-intelligence/pkg/config"
)

func main() {
	down := flag.Bool("down", false, "roll back migrations instead of applying them")
	steps := flag.Int("steps", 1, "number of migrations to roll back with -down (0 = all)")
	dir := flag.String("dir", "", "migrations directory (defaults to DB_MIGRATIONS_DIR)")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *dir == "" {
		*dir = cfg.Database.MigrationsDir
	}

	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	db, err := database.NewPostgresDB(cfg, logger)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.CloseDB(db)

	log.Println("✅ Database connected successfully")

	if *down {
		log.Printf("🔄 Rolling back migrations from %s/ directory...", *dir)
		n, err := database.Rollback(db, *dir, *steps, logger)
		if err != nil {
			log.Fatalf("Failed to roll back migrations: %v", err)
		}
		log.Printf("✅ Rolled back %d migration(s)", n)
		return
	}

	log.Printf("🔄 Applying migrations from %s/ directory...", *dir)
	n, err := database.Migrate(db, *dir, logger)
	if err != nil {
		log.Fatalf("Failed to apply migrations: %v", err)
	}
	log.Printf("✅ Successfully applied %d migration(s)!", n)
}
