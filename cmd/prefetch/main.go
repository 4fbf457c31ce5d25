// Command prefetch resolves a place query, fetches the venues around the
// top candidate, and writes them into the venue cache. Running it before
// starting the API means the first session opens with a populated wheel.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"time"

	"gorm.io/gorm/logger"

	"github.com/grubwheel/grubwheel/pkg/classify"
	"github.com/grubwheel/grubwheel/pkg/config"
	"github.com/grubwheel/grubwheel/pkg/db"
	"github.com/grubwheel/grubwheel/pkg/geocode"
	"github.com/grubwheel/grubwheel/pkg/overpass"
)

func main() {
	query := flag.String("query", "", "place to prefetch, e.g. \"Lafayette, IN\"")
	pick := flag.Int("pick", 0, "candidate index to fetch when the query is ambiguous")
	timeout := flag.Duration("timeout", 5*time.Minute, "overall deadline")
	flag.Parse()

	if *query == "" {
		fmt.Fprintln(os.Stderr, "Usage: prefetch -query \"Lafayette, IN\" [-pick N]")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := db.Initialize(&db.Config{
		DatabasePath: cfg.Database.Path,
		LogLevel:     logger.Error,
	}); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	service := db.GetDefaultService()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	start := time.Now()

	fmt.Printf("Resolving %q...\n", *query)
	candidates, err := geocode.ResolveLocations(ctx, *query)
	if err != nil {
		log.Fatalf("Failed to resolve query: %v", err)
	}
	if len(candidates) == 0 {
		log.Fatalf("No city candidates for %q", *query)
	}

	for i, c := range candidates {
		marker := " "
		if i == *pick {
			marker = "*"
		}
		fmt.Printf("%s %2d. %s\n", marker, i, c.Label)
	}
	if *pick < 0 || *pick >= len(candidates) {
		log.Fatalf("Pick %d out of range (%d candidates)", *pick, len(candidates))
	}
	loc := candidates[*pick].Location()

	client := overpass.NewClient(rand.New(rand.NewSource(time.Now().UnixNano())))
	client.Mirrors = cfg.Fetch.Mirrors
	client.Policy.BaseDelay = cfg.Fetch.BaseDelay
	client.Policy.DelayStep = cfg.Fetch.DelayStep
	client.OnAttempt = func(a overpass.Attempt) {
		if a.Err != nil {
			fmt.Printf("  %s [%s]: %v\n", a.Endpoint, a.Tier, a.Err)
			return
		}
		fmt.Printf("  %s [%s]: %d elements\n", a.Endpoint, a.Tier, a.Elements)
	}

	fmt.Printf("Fetching venues around %s...\n", loc.Name)
	venues, err := client.FetchVenues(ctx, loc)
	if err != nil {
		log.Fatalf("Failed to fetch venues: %v", err)
	}

	key := fmt.Sprintf("%.5f,%.5f", loc.Lat, loc.Lon)
	rows := make([]db.CachedVenue, len(venues))
	for i, v := range venues {
		rows[i] = db.CachedVenueFrom(key, i, v)
	}
	if err := service.Venue.ReplaceForLocation(key, rows); err != nil {
		log.Fatalf("Failed to cache venues: %v", err)
	}

	if raw, err := json.Marshal(loc); err == nil {
		if err := service.Setting.Set(db.SettingKeyLocation, string(raw)); err != nil {
			log.Fatalf("Failed to persist location: %v", err)
		}
	}

	categories := classify.CategorySet(classify.Annotate(venues))
	fmt.Printf("Cached %d venues across %d categories in %v\n",
		len(venues), len(categories), time.Since(start).Round(time.Millisecond))
}
