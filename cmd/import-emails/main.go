package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"itracksy/internal/archive"
	"itracksy/internal/config"
	"itracksy/internal/database"
	"itracksy/internal/threads"
)

func main() {
	// Parse command line flags
	emlPath := flag.String("eml", "", "Path to EML file or directory containing EML files")
	mboxPath := flag.String("mbox", "", "Path to MBOX file")
	batchSize := flag.Int("batch", 100, "MBOX messages per batch")
	flag.Parse()

	if *emlPath == "" && *mboxPath == "" {
		fmt.Println("Usage:")
		fmt.Println("  Import EML files:  import-emails -eml /path/to/file.eml")
		fmt.Println("  Import directory:  import-emails -eml /path/to/directory")
		fmt.Println("  Import MBOX:       import-emails -mbox /path/to/file.mbox")
		os.Exit(1)
	}

	// Load configuration
	cfg := config.Load()
	logger := cfg.SetupLogger()
	ctx := context.Background()

	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("Database connection failed")
	}
	writeClient := database.NewWriteClient(db)
	defer func() { _ = writeClient.Close() }()

	if err := database.Migrate(ctx, writeClient); err != nil {
		logger.Fatal().Err(err).Msg("Schema migration failed")
	}

	messages := database.NewMessageService(writeClient)
	conversations := database.NewConversationService(writeClient)
	matcher := threads.NewMatcher(messages, conversations, logger)

	_, ownDomain, _ := strings.Cut(cfg.EmailFrom, "@")
	importer := archive.NewImporter(messages, matcher, ownDomain, logger)

	var total archive.Stats
	add := func(s archive.Stats) {
		total.Imported += s.Imported
		total.Threaded += s.Threaded
		total.Duplicates += s.Duplicates
		total.Failed += s.Failed
	}

	if *emlPath != "" {
		fmt.Printf("Parsing EML from: %s\n", *emlPath)

		info, err := os.Stat(*emlPath)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to access path")
		}

		var parsed []*archive.Email
		switch {
		case info.IsDir():
			parsed, err = archive.ParseDirectory(*emlPath, logger)
		case strings.HasSuffix(strings.ToLower(*emlPath), ".eml"):
			var email *archive.Email
			email, err = archive.ParseEMLFile(*emlPath)
			parsed = []*archive.Email{email}
		default:
			logger.Fatal().Msg("Invalid file type. Expected .eml file or directory")
		}
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to parse emails")
		}
		fmt.Printf("Parsed %d emails\n", len(parsed))

		stats, err := importer.Import(ctx, parsed)
		add(stats)
		if err != nil {
			logger.Fatal().Err(err).Msg("Import failed")
		}
	} else {
		fmt.Printf("Parsing MBOX file: %s\n", *mboxPath)

		file, err := os.Open(*mboxPath)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to open MBOX file")
		}
		defer func() { _ = file.Close() }()

		var size int64
		if info, err := file.Stat(); err == nil {
			size = info.Size()
		}

		err = archive.ParseMBOX(file, size, *batchSize, func(batch []*archive.Email, p archive.Progress) error {
			stats, err := importer.Import(ctx, batch)
			add(stats)
			fmt.Printf("Processed %d emails (%.1f%%)\n", p.EmailsProcessed, p.PercentComplete)
			return err
		}, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("Import failed")
		}
	}

	fmt.Println("\n✓ Email import complete!")
	fmt.Printf("  - Imported:   %d\n", total.Imported)
	fmt.Printf("  - Threaded:   %d\n", total.Threaded)
	fmt.Printf("  - Duplicates: %d\n", total.Duplicates)
	fmt.Printf("  - Failed:     %d\n", total.Failed)
}
