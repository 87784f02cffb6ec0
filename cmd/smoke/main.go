package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"

	"bankmesh.org/internal/sim"
)

func main() {
	base := os.Getenv("BANKMESH_BASE_URL")
	if base == "" {
		base = "http://localhost:8080"
	}
	login, password := os.Getenv("BANKMESH_SMOKE_LOGIN"), os.Getenv("BANKMESH_SMOKE_PASSWORD")
	if login == "" {
		login, password = "cli", "cli"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client := sim.NewClient(base, 5*time.Second)
	accounts, err := sim.Setup(ctx, client, []sim.Credentials{{Login: login, Password: password}}, 2)
	if err != nil {
		log.Fatalf("setup against %s: %v", base, err)
	}
	a, b := accounts[0], accounts[1]

	balance := func(acc sim.Account) int64 {
		m, err := client.Balance(ctx, acc.Token, acc.Endpoint.BankID, acc.Endpoint.AccountID)
		if err != nil {
			log.Fatalf("balance %s: %v", acc.Endpoint, err)
		}
		return int64(m)
	}
	startA, startB := balance(a), balance(b)

	const amount = 420
	key := uuid.NewString()
	tr := sim.Transfer{Token: a.Token, From: a.Endpoint, To: b.Endpoint, Amount: amount}
	first, err := client.Transfer(ctx, a.Token, tr, key)
	if err != nil {
		log.Fatalf("transfer: %v", err)
	}
	replay, err := client.Transfer(ctx, a.Token, tr, key)
	if err != nil {
		log.Fatalf("replay: %v", err)
	}
	if replay.ID != first.ID {
		log.Fatalf("idempotent replay posted twice: %s != %s", first.ID, replay.ID)
	}

	balA, balB := balance(a), balance(b)
	if balA+balB != startA+startB {
		log.Fatalf("ledger conservation failed: %d + %d", balA, balB)
	}
	if balA != startA-amount || balB != startB+amount {
		log.Fatalf("unexpected balances: A=%d B=%d", balA, balB)
	}

	fmt.Printf("bankd smoke test passed: accounts=%s,%s\n", a.Endpoint, b.Endpoint)
}
