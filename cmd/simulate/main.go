package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"time"

	"bankmesh.org/internal/ledger"
	"bankmesh.org/internal/sim"
)

func main() {
	var (
		baseURL  = flag.String("base-url", "http://localhost:8080", "API base URL")
		workers  = flag.Int("workers", 4, "Concurrent worker count")
		duration = flag.Duration("duration", 2*time.Minute, "Duration of the simulation")
		users    = flag.String("users", "cli:cli", "Comma-separated login:password pairs of client accounts")
		perBank  = flag.Int("accounts", 2, "Accounts to open per user and bank")
		maxAmt   = flag.Int64("max-amount", 500, "Largest transfer in minor units")
	)
	flag.Parse()

	holders, err := parseUsers(*users)
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	log.Printf("Launching simulation: base=%s workers=%d duration=%s", *baseURL, *workers, *duration)

	client := sim.NewClient(*baseURL, 10*time.Second)
	accounts, err := sim.Setup(ctx, client, holders, *perBank)
	if err != nil {
		log.Fatalf("setup: %v", err)
	}
	if len(accounts) < 2 {
		log.Fatal("need at least two accounts; add users or -accounts")
	}

	runCtx, cancel := context.WithTimeout(ctx, *duration)
	defer cancel()

	var counter sim.Counter
	sim.Run(runCtx, client, accounts, sim.Options{
		Workers:   *workers,
		Seed:      time.Now().UnixNano(),
		MinAmount: 1,
		MaxAmount: ledger.Money(*maxAmt),
		Pause:     50 * time.Millisecond,
	}, &counter)

	log.Printf("Run complete: %s across %d accounts", counter.String(), len(accounts))
}

func parseUsers(raw string) ([]sim.Credentials, error) {
	var out []sim.Credentials
	for _, pair := range strings.Split(raw, ",") {
		login, password, ok := strings.Cut(strings.TrimSpace(pair), ":")
		if !ok || login == "" {
			return nil, fmt.Errorf("invalid -users entry %q", pair)
		}
		out = append(out, sim.Credentials{Login: login, Password: password})
	}
	return out, nil
}
