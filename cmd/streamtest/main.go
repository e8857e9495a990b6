// streamtest connects to an updown server, prints its frames to the console,
// and optionally places a wager on every tick interval.
// Usage: go run ./cmd/streamtest -url ws://localhost:3000/ws -market normal -every 5s
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rickgao/updown/internal/connection"
	"github.com/rickgao/updown/internal/model"
)

func main() {
	url := flag.String("url", "ws://localhost:3000/ws", "server WebSocket URL")
	marketID := flag.String("market", "normal", "market to bet on")
	direction := flag.String("direction", "up", "bet direction (up or down)")
	amount := flag.Float64("amount", 10, "bet amount")
	every := flag.Duration("every", 0, "place a bet at this interval (0 disables betting)")
	verbose := flag.Bool("verbose", false, "print full message JSON")
	flag.Parse()

	// Setup logger
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	dir, err := model.ParseDirection(*direction)
	if err != nil {
		logger.Error("invalid direction", "direction", *direction)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := connection.DefaultClientConfig()
	cfg.URL = *url
	client := connection.NewClient(cfg, logger)

	logger.Info("connecting", "url", *url)
	if err := client.Connect(ctx); err != nil {
		logger.Error("failed to connect", "error", err)
		os.Exit(1)
	}
	defer client.Close()

	if *every > 0 {
		go placeBets(ctx, client, *marketID, dir, *amount, *every, logger)
	}

	logger.Info("streaming started - press Ctrl+C to stop")

	for {
		select {
		case <-ctx.Done():
			logger.Info("shutdown complete")
			return
		case err := <-client.Errors():
			logger.Error("connection error", "error", err)
			return
		case msg, ok := <-client.Messages():
			if !ok {
				logger.Info("server closed connection")
				return
			}
			printMessage(msg, *verbose)
		}
	}
}

func placeBets(ctx context.Context, client connection.Client, marketID string, dir model.Direction, amount float64, every time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := client.PlaceBet(marketID, dir, amount); err != nil {
				logger.Warn("place bet failed", "error", err)
			}
		}
	}
}

func printMessage(msg connection.Message, verbose bool) {
	if verbose {
		fmt.Printf("[%s] %s\n", msg.Event, msg.Data)
		return
	}

	switch msg.Event {
	case model.EventInitialData:
		var d model.InitialData
		if err := json.Unmarshal(msg.Data, &d); err == nil {
			fmt.Printf("[INITIAL] markets=%d balance=%.2f\n", len(d.Markets), d.Balance)
		}
	case model.EventPriceUpdate:
		var u model.PriceUpdate
		if err := json.Unmarshal(msg.Data, &u); err == nil {
			fmt.Printf("[PRICE] market=%s price=%.2f\n", u.MarketID, u.Price)
		}
	case model.EventBetResult:
		var r model.BetResult
		if err := json.Unmarshal(msg.Data, &r); err == nil {
			fmt.Printf("[BET] success=%t message=%q\n", r.Success, r.Message)
		}
	case model.EventBetResolved:
		var r model.BetResolved
		if err := json.Unmarshal(msg.Data, &r); err == nil {
			fmt.Printf("[RESOLVED] market=%s direction=%s won=%t winnings=%.2f balance=%.2f %.2f -> %.2f\n",
				r.MarketID, r.Direction, r.Success, r.Winnings, r.NewBalance, r.PreviousPrice, r.CurrentPrice)
		}
	default:
		fmt.Printf("[%s] %s\n", msg.Event, msg.Data)
	}
}
