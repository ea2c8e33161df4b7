package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"accountd/internal/config"
	"accountd/internal/database"
	"accountd/internal/repository"
	"accountd/internal/service"

	"github.com/joho/godotenv"
)

func main() {
	output := flag.String("output", "", "Output file path (default: export_YYYYMMDD_HHMMSS.json, \"-\" for stdout)")
	accountID := flag.Int64("account", 0, "Export a single account by id (default: all accounts)")
	flag.Usage = printUsage
	flag.Parse()

	_ = godotenv.Load()

	cfg := config.Load()

	db, err := database.InitializeWithConfig(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	// Run migrations to ensure schema is up to date
	if err := db.RunMigrations(cfg.MigrationsPath); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	exportService := service.NewExportService(repository.NewAccountRepository(db))

	if *accountID > 0 {
		if *output == "" || *output == "-" {
			if err := exportService.ExportAccount(*accountID, os.Stdout); err != nil {
				log.Fatalf("Export failed: %v", err)
			}
			return
		}
		file, err := createOutputFile(*output)
		if err != nil {
			log.Fatalf("Failed to create output file: %v", err)
		}
		defer file.Close()
		if err := exportService.ExportAccount(*accountID, file); err != nil {
			log.Fatalf("Export failed: %v", err)
		}
		log.Printf("Exported account %d to %s", *accountID, *output)
		return
	}

	if *output == "-" {
		if err := exportService.ExportAll(os.Stdout); err != nil {
			log.Fatalf("Export failed: %v", err)
		}
		return
	}

	outputPath := *output
	if outputPath == "" {
		timestamp := time.Now().Format("20060102_150405")
		outputPath = fmt.Sprintf("export_%s.json", timestamp)
	}

	if dir := filepath.Dir(outputPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Fatalf("Failed to create output directory: %v", err)
		}
	}

	log.Printf("Exporting accounts to: %s", outputPath)
	if err := exportService.ExportAllToFile(outputPath); err != nil {
		log.Fatalf("Export failed: %v", err)
	}

	fileInfo, _ := os.Stat(outputPath)
	log.Printf("Export complete! File size: %.2f KB", float64(fileInfo.Size())/1024)
}

func createOutputFile(path string) (*os.File, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
	}
	return os.Create(path)
}

func printUsage() {
	fmt.Println("Account Data Export Tool")
	fmt.Println()
	fmt.Println("Writes GDPR data-portability exports of account records as JSON.")
	fmt.Println("Password hashes are never included.")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  export [options]")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  -output <file>    Output file path (default: export_YYYYMMDD_HHMMSS.json, \"-\" for stdout)")
	fmt.Println("  -account <id>     Export a single account by id (default: all accounts)")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  # Export all accounts")
	fmt.Println("  export")
	fmt.Println("  export -output accounts.json")
	fmt.Println()
	fmt.Println("  # Export one account's data to stdout")
	fmt.Println("  export -account 42 -output -")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  DB_TYPE    Database type: sqlite, postgres, or mysql (default: sqlite)")
	fmt.Println("  DB_PATH    SQLite database path (default: ./accountd.db)")
	fmt.Println("  DB_URL     PostgreSQL or MySQL connection URL")
}
