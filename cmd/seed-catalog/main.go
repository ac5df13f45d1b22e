package main

import (
	"context"
	"flag"
	"log"
	"strings"
	"time"

	"bookring/internal/books"
	"bookring/internal/lookup"
	"bookring/pkg/database"
	"bookring/pkg/utils"
)

// Seeds the catalog with reference data so a fresh install isn't empty.
// One subject per run keeps the external API usage polite.
func main() {
	var (
		subjects = flag.String("subjects", "fiction", "comma-separated subject keywords")
		max      = flag.Int("max", 40, "maximum volumes fetched per subject")
	)
	flag.Parse()

	utils.LoadEnv()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	db := database.MustOpen(database.DefaultConfig())
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatalf("db migrate failed: %v", err)
	}

	lookupCfg := utils.LoadLookupConfig()
	client := lookup.NewClient(lookupCfg.BaseURL, lookupCfg.Delay)
	repo := books.NewRepo(db)

	totalCreated := 0
	totalSeen := 0

	for _, subject := range strings.Split(*subjects, ",") {
		subject = strings.TrimSpace(subject)
		if subject == "" {
			continue
		}

		log.Printf("[seed] fetching subject %q", subject)
		metas, err := client.BySubject(ctx, subject, *max)
		if err != nil {
			log.Printf("[seed] subject %q error: %v", subject, err)
			// keep going: one broken subject should not kill the seed run
			continue
		}

		for _, meta := range metas {
			_, created, err := repo.ResolveOrCreate(ctx, nil, meta)
			if err != nil {
				log.Printf("[seed] upsert %q failed: %v", meta.Title, err)
				continue
			}
			totalSeen++
			if created {
				totalCreated++
			}
		}
	}

	log.Printf("seeded %d new catalog rows (%d fetched)", totalCreated, totalSeen)
}
