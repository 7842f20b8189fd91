package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/manadraft/league/internal/dbconfig"
)

// CatalogCard matches the card catalog JSON layout
type CatalogCard struct {
	Name          string  `json:"name"`
	ColorIdentity string  `json:"color_identity"`
	Cost          int     `json:"cost"`
	Rating        float64 `json:"rating"`
	Copies        int     `json:"copies"`
}

func main() {
	ctx := context.Background()

	catalogPath := "internal/assets/card_catalog.json"
	if len(os.Args) > 1 {
		catalogPath = os.Args[1]
	}

	poolIDStr := os.Getenv("POOL_ID")
	poolID, err := uuid.Parse(poolIDStr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "POOL_ID must be a valid UUID: %v\n", err)
		os.Exit(1)
	}

	// 1) Load the card catalog
	data, err := os.ReadFile(catalogPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read catalog: %v\n", err)
		os.Exit(1)
	}
	var cards []CatalogCard
	if err := json.Unmarshal(data, &cards); err != nil {
		fmt.Fprintf(os.Stderr, "unmarshal catalog: %v\n", err)
		os.Exit(1)
	}

	// 2) Connect to DB
	cfg := dbconfig.NewConfigFromEnv()
	pool, err := pgxpool.New(ctx, cfg.DSN())
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect error: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	// 3) Seed entries. Each copy of a card is its own row; duplicates
	// share a name and are told apart by entry ID.
	total, inserted, errs := 0, 0, 0
	for _, c := range cards {
		copies := c.Copies
		if copies < 1 {
			copies = 1
		}
		for i := 0; i < copies; i++ {
			total++
			entryID := uuid.NewSHA1(poolID, []byte(fmt.Sprintf("%s-%d", c.Name, i)))
			tag, err := pool.Exec(ctx, `
                INSERT INTO card_pool_entries (
                  id, pool_id, name, color_identity, cost, rating
                ) VALUES ($1,$2,$3,$4,$5,$6)
                ON CONFLICT (id) DO NOTHING
            `, entryID, poolID, c.Name, c.ColorIdentity, c.Cost, c.Rating)
			if err != nil {
				errs++
				continue
			}
			if tag.RowsAffected() == 1 {
				inserted++
			}
		}
	}

	fmt.Printf("Card pool seed: total=%d inserted=%d skipped=%d errors=%d\n",
		total, inserted, total-inserted-errs, errs)
}
