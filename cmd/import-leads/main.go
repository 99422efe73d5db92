package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"itracksy/internal/config"
	"itracksy/internal/database"
	"itracksy/internal/leads"
)

func main() {
	// Parse command line flags
	csvPath := flag.String("csv", "", "Path to a lead CSV (name,email,phone,message,group,submitted_at)")
	fromFeedback := flag.Bool("feedback", false, "Also turn feedback submitters into leads")
	exportPath := flag.String("export", "", "Write the deduplicated leads to this CSV instead of importing")
	flag.Parse()

	if *csvPath == "" && !*fromFeedback {
		fmt.Println("Usage:")
		fmt.Println("  Import a CSV:            import-leads -csv /path/to/leads.csv")
		fmt.Println("  Dedup without importing: import-leads -csv leads.csv -export clean.csv")
		fmt.Println("  Import feedback senders: import-leads -feedback")
		os.Exit(1)
	}

	// Load configuration
	cfg := config.Load()
	logger := cfg.SetupLogger()
	ctx := context.Background()

	var parsed *leads.ParseResult
	if *csvPath != "" {
		file, err := os.Open(*csvPath)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to open CSV")
		}
		parsed, err = leads.ParseCSV(file)
		_ = file.Close()
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to parse CSV")
		}

		fmt.Printf("Read %d rows, %d unique emails\n", parsed.Rows, len(parsed.Leads))
		for _, skipped := range parsed.Skipped {
			fmt.Printf("  skipped %s\n", skipped)
		}
	}

	if *exportPath != "" {
		if parsed == nil {
			logger.Fatal().Msg("-export needs -csv")
		}
		out, err := os.Create(*exportPath)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to create export file")
		}
		if err := leads.WriteCSV(out, parsed.Leads); err != nil {
			logger.Fatal().Err(err).Msg("Failed to write export")
		}
		if err := out.Close(); err != nil {
			logger.Fatal().Err(err).Msg("Failed to close export file")
		}
		fmt.Printf("Wrote %d leads to %s\n", len(parsed.Leads), *exportPath)
		return
	}

	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("Database connection failed")
	}
	writeClient := database.NewWriteClient(db)
	defer func() { _ = writeClient.Close() }()

	if err := database.Migrate(ctx, writeClient); err != nil {
		logger.Fatal().Err(err).Msg("Schema migration failed")
	}
	store := database.NewLeadService(writeClient)

	if parsed != nil {
		imported, err := store.Import(ctx, parsed.Leads)
		if err != nil {
			logger.Fatal().Err(err).Msg("Lead import failed")
		}
		fmt.Printf("Imported %d leads\n", imported)
	}

	if *fromFeedback {
		n, err := store.ImportFromFeedback(ctx)
		if err != nil {
			logger.Fatal().Err(err).Msg("Feedback lead import failed")
		}
		fmt.Printf("Added %d leads from feedback\n", n)
	}
}
