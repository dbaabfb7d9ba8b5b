// Command memoryctl plays the memory game against a running memoryd, picking
// cards from what it has already seen.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/jason-s-yu/arcana-memory/client"
	"github.com/jason-s-yu/arcana-memory/engine"
	"github.com/jason-s-yu/arcana-memory/internal/config"
	"github.com/jason-s-yu/arcana-memory/internal/logging"
	"github.com/sirupsen/logrus"
)

const maxRejections = 10

func main() {
	if err := config.LoadDotEnv(); err != nil {
		logrus.WithError(err).Fatal("Failed to load .env.")
	}
	cfg, err := config.LoadClient()
	if err != nil {
		logrus.WithError(err).Fatal("Invalid configuration.")
	}

	serverURL := flag.String("server", cfg.ServerURL, "game server base URL")
	games := flag.Int("games", 1, "number of games to play")
	fresh := flag.Bool("new", true, "start a new game before playing")
	clickInterval := flag.Duration("click-interval", cfg.MinClickInterval, "minimum time between clicks")
	mismatchDelay := flag.Duration("mismatch-delay", cfg.MismatchDelay, "how long a mismatched pair stays face up")
	logLevel := flag.String("log-level", cfg.LogLevel, "log level")
	flag.Parse()

	if *clickInterval < 0 || *mismatchDelay < 0 {
		logrus.Fatal("-click-interval and -mismatch-delay must not be negative.")
	}

	log, err := logging.New(*logLevel, cfg.LogFormat)
	if err != nil {
		logrus.WithError(err).Fatal("Invalid logging configuration.")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fc, err := client.NewFlipClient(*serverURL, client.WithLogger(log))
	if err != nil {
		log.WithError(err).Fatal("Invalid server URL.")
	}
	recall := client.NewRecall()
	tc := client.NewTurnController(fc, client.MultiPresenter{recall, client.LogPresenter{Log: log}}, client.Options{
		MinClickInterval: orOff(*clickInterval),
		MismatchDelay:    orOff(*mismatchDelay),
		Logger:           log,
	})

	for i := 0; i < *games; i++ {
		if *fresh || i > 0 {
			if err := tc.NewGame(ctx); err != nil {
				log.WithError(err).Fatal("Could not start a new game.")
			}
			recall.Forget()
		}
		flips, err := play(ctx, tc, recall, *clickInterval)
		if err != nil {
			log.WithError(err).Fatal("Game aborted.")
		}
		fmt.Printf("game %d: score %d in %d flips, %s\n", i+1, tc.Score(), flips, tc.Elapsed().Round(time.Millisecond))
	}
}

// play clicks until the game is over and returns the number of accepted flips.
func play(ctx context.Context, tc *client.TurnController, recall *client.Recall, interval time.Duration) (int, error) {
	flips, rejections := 0, 0
	for !tc.GameOver() {
		if err := ctx.Err(); err != nil {
			return flips, err
		}
		pending, ok := tc.Pending()
		if !ok {
			pending = engine.NoCard
		}
		next := recall.Next(tc.Cards(), pending)
		if next == engine.NoCard {
			return flips, errors.New("no card left to flip")
		}

		err := tc.RequestFlip(ctx, next)
		var rejected *client.ServerRejectedError
		switch {
		case err == nil:
			flips++
			rejections = 0
			if err := client.Sleep(ctx, interval); err != nil {
				return flips, err
			}
		case errors.Is(err, client.ErrRateLimited), errors.Is(err, client.ErrRateLimitExceeded):
			if err := client.Sleep(ctx, interval); err != nil {
				return flips, err
			}
		case errors.As(err, &rejected):
			// The local board is out of step with the server's; -new=true avoids this.
			rejections++
			if rejections > maxRejections {
				return flips, fmt.Errorf("server keeps rejecting moves: %w", err)
			}
			if err := client.Sleep(ctx, rejected.Backoff); err != nil {
				return flips, err
			}
		default:
			return flips, err
		}
	}
	return flips, nil
}

// orOff maps a zero setting to client.Off. A zero Options field takes the
// default instead.
func orOff(d time.Duration) time.Duration {
	if d == 0 {
		return client.Off
	}
	return d
}
