package client

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/arcana-memory/engine"
	"github.com/jason-s-yu/arcana-memory/internal/game"
	"github.com/jason-s-yu/arcana-memory/protocol"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const click = 250 * time.Millisecond

func setupController(f Flipper) (*TurnController, *recordingPresenter, *fakeClock) {
	clock := newFakeClock()
	pres := &recordingPresenter{}
	log, _ := test.NewNullLogger()
	tc := NewTurnController(f, pres, Options{
		Now:    clock.Now,
		Sleep:  clock.Sleep,
		Logger: log,
	})
	return tc, pres, clock
}

func first(index, value int) protocol.FlipResult {
	return protocol.FlipResult{Valid: true, CardIndex: index, CardValue: value, FirstCard: index, Message: "Pick one more card"}
}

func TestRequestFlipMatch(t *testing.T) {
	f := (&scriptedFlipper{}).
		push(first(0, 5)).
		push(protocol.FlipResult{Valid: true, CardIndex: 7, CardValue: 5, TurnComplete: true, IsMatch: true, FirstCard: 0, PlayerScore: 1, Message: "Match!"})
	tc, pres, clock := setupController(f)
	ctx := context.Background()

	require.NoError(t, tc.RequestFlip(ctx, 0))
	assert.Equal(t, AwaitingSecond, tc.State())
	pending, ok := tc.Pending()
	assert.True(t, ok)
	assert.Equal(t, 0, pending)

	clock.Advance(click)
	require.NoError(t, tc.RequestFlip(ctx, 7))

	cards := tc.Cards()
	assert.Equal(t, engine.Matched, cards[0].State)
	assert.Equal(t, engine.Matched, cards[7].State)
	assert.Equal(t, 5, cards[7].Value)
	assert.Equal(t, 1, tc.Score())
	assert.Equal(t, Idle, tc.State())
	_, ok = tc.Pending()
	assert.False(t, ok)
	assert.Empty(t, clock.Sleeps(), "a match is not delayed")

	assert.Equal(t, []string{
		"revealed 0 5",
		"info: Pick one more card",
		"revealed 7 5",
		"matched 0",
		"matched 7",
		"success: Match!",
		"score 1",
	}, pres.Lines())

	// Matched cards can never be flipped again, and no request is sent.
	clock.Advance(click)
	err := tc.RequestFlip(ctx, 0)
	assert.ErrorIs(t, err, ErrInvalidMove)
	assert.Equal(t, []int{0, 7}, f.Calls())
}

func TestRequestFlipMismatch(t *testing.T) {
	f := (&scriptedFlipper{}).
		push(first(0, 5)).
		push(protocol.FlipResult{Valid: true, CardIndex: 3, CardValue: 9, TurnComplete: true, FirstCard: 0, Message: "No match, try again"})
	tc, pres, clock := setupController(f)
	ctx := context.Background()

	require.NoError(t, tc.RequestFlip(ctx, 0))
	clock.Advance(click)
	require.NoError(t, tc.RequestFlip(ctx, 3))

	assert.Equal(t, []time.Duration{time.Second}, clock.Sleeps())
	cards := tc.Cards()
	assert.Equal(t, engine.FaceDown, cards[0].State)
	assert.Equal(t, engine.FaceDown, cards[3].State)
	assert.Zero(t, cards[3].Value)
	assert.Equal(t, Idle, tc.State())
	assert.Zero(t, tc.Score())

	lines := pres.Lines()
	require.Len(t, lines, 6)
	assert.Equal(t, "revealed 3 9", lines[2])
	assert.Equal(t, "info: No match, try again", lines[3])
	assert.Equal(t, []string{"hidden 0", "hidden 3"}, lines[4:])

	// Both cards are playable again.
	assert.NoError(t, tc.grid.CanFlip(0))
	assert.NoError(t, tc.grid.CanFlip(3))
	f.push(first(3, 9))
	clock.Advance(click)
	assert.NoError(t, tc.RequestFlip(ctx, 3))
}

func TestRequestFlipRejectsFaceUpCard(t *testing.T) {
	f := (&scriptedFlipper{}).push(first(4, 2))
	tc, pres, clock := setupController(f)
	ctx := context.Background()

	require.NoError(t, tc.RequestFlip(ctx, 4))
	clock.Advance(click)
	pres.Reset()

	err := tc.RequestFlip(ctx, 4)
	assert.ErrorIs(t, err, ErrInvalidMove)
	assert.Equal(t, []string{"warning: " + MsgCannotFlip}, pres.Lines())

	err = tc.RequestFlip(ctx, engine.MaxCards)
	assert.ErrorIs(t, err, ErrInvalidMove)
	assert.Equal(t, []int{4}, f.Calls())
}

func TestRequestFlipClickInterval(t *testing.T) {
	f := (&scriptedFlipper{}).push(first(0, 1)).push(first(1, 2))
	tc, pres, clock := setupController(f)
	ctx := context.Background()

	require.NoError(t, tc.RequestFlip(ctx, 0))
	clock.Advance(150 * time.Millisecond)
	pres.Reset()

	err := tc.RequestFlip(ctx, 1)
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.Equal(t, []int{0}, f.Calls(), "no request for a throttled click")
	assert.Equal(t, []string{"warning: " + MsgSlowDown}, pres.Lines())
	card, _ := tc.grid.Card(1)
	assert.False(t, card.Loading)

	clock.Advance(60 * time.Millisecond)
	f.replies = nil
	f.push(protocol.FlipResult{Valid: true, CardIndex: 1, CardValue: 2, TurnComplete: true, FirstCard: 0})
	assert.NoError(t, tc.RequestFlip(ctx, 1))
}

func TestRequestFlipWithLimitsOff(t *testing.T) {
	f := (&scriptedFlipper{}).
		push(first(0, 1)).
		push(protocol.FlipResult{Valid: true, CardIndex: 1, CardValue: 2, TurnComplete: true, FirstCard: 0})
	clock := newFakeClock()
	log, _ := test.NewNullLogger()
	tc := NewTurnController(f, nil, Options{
		MinClickInterval: Off,
		MismatchDelay:    Off,
		Now:              clock.Now,
		Sleep:            clock.Sleep,
		Logger:           log,
	})
	ctx := context.Background()

	require.NoError(t, tc.RequestFlip(ctx, 0))
	require.NoError(t, tc.RequestFlip(ctx, 1), "back-to-back clicks are allowed")
	assert.Equal(t, []int{0, 1}, f.Calls())
	assert.Equal(t, []time.Duration{0}, clock.Sleeps())
	assert.Equal(t, Idle, tc.State())
}

// blockingFlipper holds each flip until released.
type blockingFlipper struct {
	started chan int
	release chan protocol.FlipResult
}

func (b *blockingFlipper) Flip(_ context.Context, index int) (protocol.FlipResult, error) {
	b.started <- index
	return <-b.release, nil
}

func (b *blockingFlipper) NewGame(context.Context) error { return nil }

func TestRequestFlipOneInFlight(t *testing.T) {
	f := &blockingFlipper{started: make(chan int, 1), release: make(chan protocol.FlipResult)}
	tc, _, clock := setupController(f)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() { done <- tc.RequestFlip(ctx, 0) }()
	assert.Equal(t, 0, <-f.started)
	assert.True(t, tc.Processing())
	card, _ := tc.grid.Card(0)
	assert.True(t, card.Loading)

	clock.Advance(click)
	err := tc.RequestFlip(ctx, 1)
	assert.ErrorIs(t, err, ErrInvalidMove)
	assert.ErrorIs(t, tc.NewGame(ctx), ErrInvalidMove)

	f.release <- first(0, 3)
	require.NoError(t, <-done)
	assert.False(t, tc.Processing())
	assert.Len(t, f.started, 0, "the second click never reached the server")
}

func TestRequestFlipServerRejected(t *testing.T) {
	f := (&scriptedFlipper{}).
		push(first(0, 5)).
		push(protocol.FlipResult{Valid: false, CardIndex: 2, FirstCard: 0, Message: "stale board", Backoff: 0.5})
	tc, pres, clock := setupController(f)
	ctx := context.Background()

	require.NoError(t, tc.RequestFlip(ctx, 0))
	clock.Advance(click)
	pres.Reset()

	err := tc.RequestFlip(ctx, 2)
	var rejected *ServerRejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, "stale board", rejected.Message)
	assert.Equal(t, 500*time.Millisecond, rejected.Backoff)
	assert.Equal(t, []string{"warning: stale board"}, pres.Lines())

	// Nothing moved.
	assert.Equal(t, AwaitingSecond, tc.State())
	cards := tc.Cards()
	assert.Equal(t, engine.FaceUp, cards[0].State)
	assert.Equal(t, engine.FaceDown, cards[2].State)
	assert.False(t, cards[2].Loading)
	assert.False(t, tc.Processing())

	// Input stays blocked for the backoff.
	clock.Advance(300 * time.Millisecond)
	assert.ErrorIs(t, tc.RequestFlip(ctx, 2), ErrRateLimited)
	clock.Advance(250 * time.Millisecond)
	f.push(protocol.FlipResult{Valid: true, CardIndex: 2, CardValue: 5, TurnComplete: true, IsMatch: true, FirstCard: 0, PlayerScore: 1})
	assert.NoError(t, tc.RequestFlip(ctx, 2))
	assert.Equal(t, 1, tc.Score())
}

func TestRequestFlipServerRejectedDefaultBackoff(t *testing.T) {
	f := (&scriptedFlipper{}).push(protocol.FlipResult{Valid: false, CardIndex: 1, FirstCard: -1})
	tc, pres, _ := setupController(f)

	var rejected *ServerRejectedError
	require.ErrorAs(t, tc.RequestFlip(context.Background(), 1), &rejected)
	assert.Equal(t, 200*time.Millisecond, rejected.Backoff)
	assert.Equal(t, []string{"warning: " + MsgCannotFlip}, pres.Lines())
}

func TestRequestFlipServerRejectedHugeBackoff(t *testing.T) {
	f := (&scriptedFlipper{}).push(protocol.FlipResult{Valid: false, CardIndex: 1, FirstCard: -1, Backoff: 1e12})
	tc, _, clock := setupController(f)
	ctx := context.Background()

	var rejected *ServerRejectedError
	require.ErrorAs(t, tc.RequestFlip(ctx, 1), &rejected)
	assert.Equal(t, MaxBackoff, rejected.Backoff)

	clock.Advance(MaxBackoff)
	f.push(first(1, 3))
	assert.NoError(t, tc.RequestFlip(ctx, 1))
}

func TestRequestFlipNetworkError(t *testing.T) {
	netErr := &NetworkError{Op: "flip 6", StatusCode: 500}
	f := (&scriptedFlipper{}).pushErr(netErr).push(first(6, 4))
	tc, pres, clock := setupController(f)
	ctx := context.Background()

	err := tc.RequestFlip(ctx, 6)
	var ne *NetworkError
	require.ErrorAs(t, err, &ne)
	assert.Equal(t, 500, ne.StatusCode)
	assert.Equal(t, []string{"error: " + MsgNetworkError}, pres.Lines())

	card, _ := tc.grid.Card(6)
	assert.Equal(t, engine.FaceDown, card.State)
	assert.False(t, card.Loading)
	assert.False(t, tc.Processing())
	assert.Equal(t, Idle, tc.State())

	// No lockup: the next click goes through.
	clock.Advance(click)
	assert.NoError(t, tc.RequestFlip(ctx, 6))
}

func TestRequestFlipRateLimitExceeded(t *testing.T) {
	f := (&scriptedFlipper{}).pushErr(fmt.Errorf("flip 1: %w after 3 attempts", ErrRateLimitExceeded))
	tc, pres, clock := setupController(f)
	ctx := context.Background()

	assert.ErrorIs(t, tc.RequestFlip(ctx, 1), ErrRateLimitExceeded)
	assert.Equal(t, []string{"warning: " + MsgServerBusy}, pres.Lines())
	assert.False(t, tc.Processing())

	// Blocked for the default backoff, then usable again.
	clock.Advance(100 * time.Millisecond)
	assert.ErrorIs(t, tc.RequestFlip(ctx, 1), ErrRateLimited)
	clock.Advance(150 * time.Millisecond)
	f.push(first(1, 1))
	assert.NoError(t, tc.RequestFlip(ctx, 1))
}

func TestRequestFlipServerStartsNewTurn(t *testing.T) {
	f := (&scriptedFlipper{}).push(first(0, 5)).push(first(9, 8))
	tc, pres, clock := setupController(f)
	ctx := context.Background()

	require.NoError(t, tc.RequestFlip(ctx, 0))
	clock.Advance(click)
	require.NoError(t, tc.RequestFlip(ctx, 9))

	pending, _ := tc.Pending()
	assert.Equal(t, 9, pending)
	assert.Equal(t, []int{9}, tc.grid.FaceUpUnmatched())
	assert.Contains(t, pres.Lines(), "hidden 0")
}

func TestGameOverAndNewGame(t *testing.T) {
	f := (&scriptedFlipper{}).
		push(first(0, 22)).
		push(protocol.FlipResult{Valid: true, CardIndex: 1, CardValue: 22, TurnComplete: true, IsMatch: true, FirstCard: 0, PlayerScore: 22, GameOver: true, Message: "All pairs found! Final score: 22"})
	tc, pres, clock := setupController(f)
	ctx := context.Background()

	require.NoError(t, tc.RequestFlip(ctx, 0))
	clock.Advance(click)
	require.NoError(t, tc.RequestFlip(ctx, 1))

	assert.True(t, tc.GameOver())
	assert.Contains(t, pres.Lines(), "game over: All pairs found! Final score: 22")
	assert.Equal(t, click, tc.Elapsed())

	// Input stays disabled and the clock is frozen.
	clock.Advance(time.Minute)
	assert.ErrorIs(t, tc.RequestFlip(ctx, 2), ErrInvalidMove)
	assert.Equal(t, click, tc.Elapsed())
	assert.Equal(t, []int{0, 1}, f.Calls())

	pres.Reset()
	require.NoError(t, tc.NewGame(ctx))
	assert.Equal(t, 1, f.newGames)
	assert.False(t, tc.GameOver())
	assert.Zero(t, tc.Score())
	assert.Zero(t, tc.Elapsed())
	assert.Equal(t, Idle, tc.State())
	for _, c := range tc.Cards() {
		assert.Equal(t, engine.FaceDown, c.State)
	}
	assert.Equal(t, []string{"hidden 0", "hidden 1", "score 0", "info: " + MsgPickFirst}, pres.Lines())

	f.push(first(2, 3))
	assert.NoError(t, tc.RequestFlip(ctx, 2))
}

func TestNewGameFailure(t *testing.T) {
	f := (&scriptedFlipper{newErr: &NetworkError{Op: "new game", Err: errors.New("connection refused")}}).push(first(0, 5))
	tc, pres, _ := setupController(f)
	ctx := context.Background()

	require.NoError(t, tc.RequestFlip(ctx, 0))
	pres.Reset()

	var ne *NetworkError
	assert.ErrorAs(t, tc.NewGame(ctx), &ne)
	assert.Equal(t, []string{"error: " + MsgNetworkError}, pres.Lines())
	assert.Equal(t, AwaitingSecond, tc.State(), "board kept when the server did not reset")
	assert.False(t, tc.Processing())
}

func TestElapsedRunsFromFirstFlip(t *testing.T) {
	f := (&scriptedFlipper{}).push(first(0, 5))
	tc, _, clock := setupController(f)

	clock.Advance(time.Hour)
	assert.Zero(t, tc.Elapsed())
	require.NoError(t, tc.RequestFlip(context.Background(), 0))
	clock.Advance(3 * time.Second)
	assert.Equal(t, 3*time.Second, tc.Elapsed())
}

// gameFlipper plays against an in-process game.
type gameFlipper struct {
	g *game.MemoryGame
}

func (f *gameFlipper) Flip(_ context.Context, index int) (protocol.FlipResult, error) {
	res, err := f.g.Flip(index)
	if errors.Is(err, engine.ErrIndexOutOfRange) {
		return res, &NetworkError{Op: "flip", StatusCode: 400}
	}
	return res, err
}

func (f *gameFlipper) NewGame(context.Context) error { return nil }

// TestRandomClicksKeepBoardConsistent clicks at random against a real game and
// checks the board after every click.
func TestRandomClicksKeepBoardConsistent(t *testing.T) {
	for seed := uint64(1); seed <= 5; seed++ {
		t.Run(fmt.Sprintf("seed=%d", seed), func(t *testing.T) {
			g := game.NewMemoryGame(uuid.New(), seed, engine.DefaultHouseRules())
			tc, _, clock := setupController(&gameFlipper{g: g})
			rng := rand.New(rand.NewPCG(seed, 99))
			ctx := context.Background()

			for i := 0; i < 20000 && !tc.GameOver(); i++ {
				clock.Advance(time.Duration(rng.IntN(400)) * time.Millisecond)
				err := tc.RequestFlip(ctx, rng.IntN(engine.MaxCards+2)-1)
				if err != nil && !errors.Is(err, ErrInvalidMove) && !errors.Is(err, ErrRateLimited) {
					var ne *NetworkError
					require.ErrorAs(t, err, &ne)
				}

				up := tc.grid.FaceUpUnmatched()
				require.LessOrEqual(t, len(up), 1, "face-up cards %v", up)
				require.Zero(t, tc.grid.MatchedCount()%2)
				require.False(t, tc.Processing())
			}
			require.True(t, tc.GameOver())
			assert.Equal(t, engine.MaxCards, tc.grid.MatchedCount())
			player, _ := g.Board.Scores()
			assert.Equal(t, player, tc.Score())
		})
	}
}

func TestRecallPlaysPerfectGameAfterSeeingTheBoard(t *testing.T) {
	g := game.NewMemoryGame(uuid.New(), 11, engine.DefaultHouseRules())
	recall := NewRecall()
	clock := newFakeClock()
	log, _ := test.NewNullLogger()
	log.SetLevel(logrus.PanicLevel)
	tc := NewTurnController(&gameFlipper{g: g}, recall, Options{Now: clock.Now, Sleep: clock.Sleep, Logger: log})
	ctx := context.Background()

	clicks := 0
	for !tc.GameOver() {
		pending, ok := tc.Pending()
		if !ok {
			pending = engine.NoCard
		}
		next := recall.Next(tc.Cards(), pending)
		require.NotEqual(t, engine.NoCard, next)
		clock.Advance(click)
		require.NoError(t, tc.RequestFlip(ctx, next))
		clicks++
		require.Less(t, clicks, 4*engine.MaxCards)
	}
	// Every card is revealed at most twice by a remembering player.
	assert.LessOrEqual(t, clicks, 2*engine.MaxCards)
	assert.Equal(t, engine.MaxCards/2, tc.Score())
}
