package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/raushankrgupta/fitly-shop-links/config"
	"github.com/raushankrgupta/fitly-shop-links/inspect"
	"github.com/raushankrgupta/fitly-shop-links/search"
	"github.com/raushankrgupta/fitly-shop-links/utils"
)

func main() {
	mode := flag.String("mode", "", "one-shot or catalog (default SEARCH_MODE)")
	price := flag.Float64("price", 0, "target price; derives the price band when > 0")
	inspectLinks := flag.Bool("inspect", false, "fetch each result page for image and availability")
	timeout := flag.Duration("timeout", time.Minute, "overall deadline per query")
	flag.Parse()

	config.LoadConfig()
	logger, err := utils.NewLogger(config.LogMode)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	queries := flag.Args()
	if len(queries) == 0 {
		queries = []string{
			"Uniqlo White Oxford Shirt",
			"Levi's 511 Slim Jeans",
			"White Leather Sneakers",
		}
	}

	var band *search.PriceBand
	if *price > 0 {
		band = search.BandFor(price)
	}

	var m search.Mode
	if *mode != "" {
		m = search.ParseMode(*mode)
	}
	provider := search.NewSerpAPIProvider(config.SearchOptions(m), nil, nil, logger, nil)
	var inspector *inspect.Inspector
	if *inspectLinks {
		inspector = inspect.New(inspect.NewFetcher(config.InspectBrowserFallback, logger), logger)
	}

	failed := 0
	for _, q := range queries {
		fmt.Printf("Query: %s (mode %s)\n", q, provider.Mode())
		ctx, cancel := context.WithTimeout(context.Background(), *timeout)
		links, err := provider.Search(ctx, q, band)
		if err != nil {
			cancel()
			failed++
			log.Printf("Search failed for %q: %v\n", q, err)
			continue
		}
		if inspector != nil {
			for i := range links {
				links[i] = inspector.Inspect(ctx, links[i])
			}
		}
		cancel()

		b, _ := json.MarshalIndent(links, "", "  ")
		fmt.Printf("Links: %s\n", string(b))
		fmt.Println("--------------------------------------------------")
	}
	if failed > 0 {
		os.Exit(1)
	}
}
