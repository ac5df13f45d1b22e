package main

import (
	"context"
	"flag"
	"log"
	"os"
	"strings"
	"time"

	"bookring/internal/auth"
	"bookring/internal/books"
	"bookring/internal/importer"
	"bookring/internal/listings"
	"bookring/internal/lookup"
	"bookring/pkg/database"
	"bookring/pkg/utils"
)

func main() {
	var (
		file      = flag.String("file", "data/books.csv", "input CSV path (isbn/title columns)")
		lender    = flag.String("lender", "", "lender email or user id (required)")
		condition = flag.String("condition", "Good", "condition grade applied to every row")
		delayMS   = flag.Int("delay", 300, "pause between metadata lookups, in milliseconds")
	)
	flag.Parse()

	utils.LoadEnv()

	if strings.TrimSpace(*lender) == "" {
		log.Fatal("-lender is required")
	}
	if listings.NormalizeCondition(*condition) == "" {
		log.Fatalf("invalid condition %q (want one of %s)", *condition, strings.Join(listings.Conditions, ", "))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	db := database.MustOpen(database.DefaultConfig())
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatalf("db migrate failed: %v", err)
	}

	lenderID, err := resolveLender(ctx, auth.NewRepo(db), *lender)
	if err != nil {
		log.Fatalf("resolve lender: %v", err)
	}

	f, err := os.Open(*file)
	if err != nil {
		log.Fatalf("open csv: %v", err)
	}
	rows, err := importer.Parse(f)
	f.Close()
	if err != nil {
		log.Fatalf("parse csv: %v", err)
	}
	log.Printf("found %d book entries in %s", len(rows), *file)

	lookupCfg := utils.LoadLookupConfig()
	client := lookup.NewClient(lookupCfg.BaseURL, time.Duration(*delayMS)*time.Millisecond)

	found := importer.Resolve(ctx, client, rows)
	log.Printf("resolved details for %d of %d books", found, len(rows))
	for _, row := range rows {
		if row.Found {
			continue
		}
		log.Printf("not found: isbn=%q title=%q", row.ISBN, row.Title)
	}

	for i := range rows {
		rows[i].Condition = *condition
	}

	booksRepo := books.NewRepo(db)
	svc := listings.NewService(db, booksRepo, listings.NewRepo(db))

	listed := importer.Submit(ctx, svc, lenderID, rows)
	log.Printf("listed %d of %d books for %s", listed, found, *lender)
}

func resolveLender(ctx context.Context, repo *auth.Repo, lender string) (string, error) {
	if strings.Contains(lender, "@") {
		u, err := repo.GetByEmail(ctx, lender)
		if err != nil {
			return "", err
		}
		if u == nil {
			log.Fatalf("no user with email %s", lender)
		}
		return u.ID, nil
	}

	u, err := repo.GetByID(ctx, lender)
	if err != nil {
		return "", err
	}
	if u == nil {
		log.Fatalf("no user with id %s", lender)
	}
	return u.ID, nil
}
