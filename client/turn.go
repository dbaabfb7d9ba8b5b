package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jason-s-yu/arcana-memory/engine"
	"github.com/jason-s-yu/arcana-memory/protocol"
	"github.com/sirupsen/logrus"
)

// TurnState is where the player is within a turn.
type TurnState int

const (
	Idle           TurnState = iota // no card pending
	AwaitingSecond                  // one card pending
	Resolving                       // both cards up, match or mismatch being shown
)

func (s TurnState) String() string {
	switch s {
	case Idle:
		return "idle"
	case AwaitingSecond:
		return "awaiting_second"
	case Resolving:
		return "resolving"
	default:
		return "unknown"
	}
}

// Status messages shown to the player.
const (
	MsgPickFirst    = "Pick two cards"
	MsgPickSecond   = "Pick one more card"
	MsgMatch        = "Match!"
	MsgNoMatch      = "No match, try again"
	MsgBusy         = "Hold on, still flipping"
	MsgCannotFlip   = "That card can't be flipped"
	MsgGameOver     = "Game over! Start a new game"
	MsgSlowDown     = "Slow down a little"
	MsgServerBusy   = "The server is busy, try again in a moment"
	MsgNetworkError = "Something went wrong, please try again"
)

// Flipper is the server side of a game.
type Flipper interface {
	Flip(ctx context.Context, index int) (protocol.FlipResult, error)
	NewGame(ctx context.Context) error
}

// Off turns off MinClickInterval or MismatchDelay.
const Off time.Duration = -1

// Options configures a TurnController. Zero fields take defaults; Off (or
// any negative duration) turns the click interval or mismatch delay off.
type Options struct {
	Cards            int           // board size, default 44
	MinClickInterval time.Duration // default 200ms
	MismatchDelay    time.Duration // how long a mismatched pair stays up, default 1s
	DefaultBackoff   time.Duration // input block after a rejection without a hint, default 200ms
	Now              func() time.Time
	Sleep            SleepFunc
	Logger           logrus.FieldLogger
}

func (o *Options) setDefaults() {
	if o.Cards <= 0 {
		o.Cards = engine.MaxCards
	}
	switch {
	case o.MinClickInterval == 0:
		o.MinClickInterval = 200 * time.Millisecond
	case o.MinClickInterval < 0:
		o.MinClickInterval = 0
	}
	switch {
	case o.MismatchDelay == 0:
		o.MismatchDelay = time.Second
	case o.MismatchDelay < 0:
		o.MismatchDelay = 0
	}
	if o.DefaultBackoff == 0 {
		o.DefaultBackoff = 200 * time.Millisecond
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Sleep == nil {
		o.Sleep = Sleep
	}
	if o.Logger == nil {
		o.Logger = logrus.StandardLogger()
	}
}

// TurnController sequences one player's flips against the server. It keeps
// at most one request in flight and is the only writer of its Grid.
//
// Presenter callbacks are made without holding the controller's lock, in the
// order the changes happened.
type TurnController struct {
	mu sync.Mutex

	flipper   Flipper
	presenter Presenter
	opts      Options
	log       logrus.FieldLogger

	grid         *Grid
	limiter      *ClickLimiter
	state        TurnState
	pending      int
	processing   bool
	gameOver     bool
	blockedUntil time.Time
	score        int
	startedAt    time.Time
	stoppedAt    time.Time
}

// NewTurnController returns a controller for a fresh board.
func NewTurnController(flipper Flipper, presenter Presenter, opts Options) *TurnController {
	opts.setDefaults()
	if presenter == nil {
		presenter = NopPresenter{}
	}
	return &TurnController{
		flipper:   flipper,
		presenter: presenter,
		opts:      opts,
		log:       opts.Logger,
		grid:      NewGrid(opts.Cards),
		limiter:   NewClickLimiter(opts.MinClickInterval),
		pending:   engine.NoCard,
	}
}

// effects collects presenter calls made while the lock is held.
type effects []func(Presenter)

func (e *effects) add(f func(Presenter)) { *e = append(*e, f) }

func (e *effects) status(msg string, sev Severity) {
	e.add(func(p Presenter) { p.OnStatus(msg, sev) })
}

func (t *TurnController) run(fx effects) {
	for _, f := range fx {
		f(t.presenter)
	}
}

// RequestFlip handles a click on the card at index.
//
// Clicks that break a local rule return an error wrapping ErrInvalidMove or
// ErrRateLimited without contacting the server. Otherwise the flip is sent
// and RequestFlip returns once the turn has been resolved on screen,
// including the mismatch delay.
func (t *TurnController) RequestFlip(ctx context.Context, index int) error {
	if err := t.admit(index); err != nil {
		return err
	}
	defer t.release(index)

	res, err := t.flipper.Flip(ctx, index)
	if err != nil {
		t.fail(index, err)
		return err
	}
	if !res.Valid {
		return t.reject(index, res)
	}

	hide, ok := t.apply(index, res)
	if !ok {
		return nil
	}
	if err := t.opts.Sleep(ctx, t.opts.MismatchDelay); err != nil {
		t.log.WithError(err).Debug("Mismatch delay cut short.")
	}
	t.hide(hide)
	return nil
}

// admit checks a click and, if it is accepted, marks the request in flight.
func (t *TurnController) admit(index int) error {
	var fx effects
	defer func() { t.run(fx) }()

	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.opts.Now()
	switch {
	case t.gameOver:
		fx.status(MsgGameOver, SeverityWarning)
		return fmt.Errorf("%w: game is over", ErrInvalidMove)
	case t.processing:
		fx.status(MsgBusy, SeverityWarning)
		return fmt.Errorf("%w: a flip is already in progress", ErrInvalidMove)
	}
	if err := t.grid.CanFlip(index); err != nil {
		fx.status(MsgCannotFlip, SeverityWarning)
		return err
	}
	if now.Before(t.blockedUntil) {
		fx.status(MsgSlowDown, SeverityWarning)
		return fmt.Errorf("%w: wait %s", ErrRateLimited, t.blockedUntil.Sub(now).Round(time.Millisecond))
	}
	if !t.limiter.Allow(now) {
		fx.status(MsgSlowDown, SeverityWarning)
		return fmt.Errorf("%w: clicks must be %s apart", ErrRateLimited, t.opts.MinClickInterval)
	}

	t.processing = true
	t.grid.SetLoading(index, true)
	return nil
}

// release ends the request started by admit.
func (t *TurnController) release(index int) {
	t.mu.Lock()
	t.grid.SetLoading(index, false)
	t.processing = false
	t.mu.Unlock()
}

// fail restores the board after the request could not be completed.
func (t *TurnController) fail(index int, err error) {
	var fx effects
	defer func() { t.run(fx) }()

	t.mu.Lock()
	defer t.mu.Unlock()

	t.grid.SetLoading(index, false)
	if errors.Is(err, ErrRateLimitExceeded) {
		t.blockedUntil = t.opts.Now().Add(t.opts.DefaultBackoff)
		fx.status(MsgServerBusy, SeverityWarning)
	} else {
		fx.status(MsgNetworkError, SeverityError)
	}
	t.log.WithError(err).WithField("index", index).Warn("Flip failed.")
}

// reject handles valid:false. The board and turn are left as they were and
// input is blocked for the server's backoff.
func (t *TurnController) reject(index int, res protocol.FlipResult) error {
	var fx effects
	defer func() { t.run(fx) }()

	t.mu.Lock()
	defer t.mu.Unlock()

	backoff := backoffDuration(res.Backoff)
	if backoff <= 0 {
		backoff = t.opts.DefaultBackoff
	}
	t.grid.SetLoading(index, false)
	t.blockedUntil = t.opts.Now().Add(backoff)

	msg := res.Message
	if msg == "" {
		msg = MsgCannotFlip
	}
	fx.status(msg, SeverityWarning)
	if res.GameOver && !t.gameOver {
		t.endGame(&fx, msg)
	}
	t.log.WithFields(logrus.Fields{"index": index, "message": res.Message, "backoff": backoff}).Info("Flip rejected by server.")
	return &ServerRejectedError{Message: res.Message, Backoff: backoff}
}

// apply reveals a flipped card and settles the turn as far as it can right
// away. It reports the pair to hide after the mismatch delay, if any.
//
// The server's turn_complete wins over the local turn state.
func (t *TurnController) apply(index int, res protocol.FlipResult) ([2]int, bool) {
	var fx effects
	defer func() { t.run(fx) }()

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.startedAt.IsZero() {
		t.startedAt = t.opts.Now()
	}
	t.grid.Reveal(index, res.CardValue)
	value := res.CardValue
	fx.add(func(p Presenter) { p.OnCardRevealed(index, value) })

	var (
		hide     [2]int
		mismatch bool
	)
	if !res.TurnComplete {
		if t.state == AwaitingSecond && t.pending != index {
			// The server started a new turn; the old first card is no longer up.
			stale := t.pending
			t.grid.Hide(stale)
			fx.add(func(p Presenter) { p.OnCardHidden(stale) })
		}
		t.state = AwaitingSecond
		t.pending = index
		fx.status(messageOr(res.Message, MsgPickSecond), SeverityInfo)
	} else {
		first := res.FirstCard
		if first < 0 || first == index {
			first = t.pending
		}
		t.state = Resolving
		t.pending = engine.NoCard

		if res.IsMatch {
			t.grid.Match(first)
			t.grid.Match(index)
			fx.add(func(p Presenter) {
				p.OnCardMatched(first)
				p.OnCardMatched(index)
			})
			t.state = Idle
			fx.status(messageOr(res.Message, MsgMatch), SeveritySuccess)
		} else {
			hide, mismatch = [2]int{first, index}, true
			fx.status(messageOr(res.Message, MsgNoMatch), SeverityInfo)
		}
	}

	if res.PlayerScore != t.score {
		t.score = res.PlayerScore
		score := t.score
		fx.add(func(p Presenter) { p.OnScoreChanged(score) })
	}
	if res.GameOver {
		t.endGame(&fx, res.Message)
	}
	t.log.WithFields(logrus.Fields{"index": index, "value": value, "state": t.state, "score": t.score}).Debug("Flip applied.")
	return hide, mismatch
}

// hide turns a mismatched pair face down and ends the turn.
func (t *TurnController) hide(pair [2]int) {
	var fx effects
	defer func() { t.run(fx) }()

	t.mu.Lock()
	defer t.mu.Unlock()

	for _, i := range pair {
		if c, ok := t.grid.Card(i); ok && c.State == engine.FaceUp {
			t.grid.Hide(i)
			fx.add(func(p Presenter) { p.OnCardHidden(i) })
		}
	}
	t.state = Idle
}

// endGame assumes t.mu is held.
func (t *TurnController) endGame(fx *effects, msg string) {
	t.gameOver = true
	t.stoppedAt = t.opts.Now()
	msg = messageOr(msg, MsgGameOver)
	fx.add(func(p Presenter) { p.OnGameOver(msg) })
	t.log.WithFields(logrus.Fields{"score": t.score, "elapsed": t.stoppedAt.Sub(t.startedAt)}).Info("Game over.")
}

// NewGame asks the server for a new board and resets the controller.
func (t *TurnController) NewGame(ctx context.Context) error {
	t.mu.Lock()
	if t.processing {
		t.mu.Unlock()
		t.presenter.OnStatus(MsgBusy, SeverityWarning)
		return fmt.Errorf("%w: a flip is already in progress", ErrInvalidMove)
	}
	t.processing = true
	t.mu.Unlock()

	err := t.flipper.NewGame(ctx)

	var fx effects
	t.mu.Lock()
	t.processing = false
	if err != nil {
		fx.status(MsgNetworkError, SeverityError)
		t.log.WithError(err).Warn("New game failed.")
	} else {
		for _, c := range t.grid.Cards() {
			if c.State != engine.FaceDown {
				i := c.Index
				fx.add(func(p Presenter) { p.OnCardHidden(i) })
			}
		}
		t.grid.Reset(t.opts.Cards)
		t.limiter.Reset()
		t.state = Idle
		t.pending = engine.NoCard
		t.gameOver = false
		t.blockedUntil = time.Time{}
		t.score = 0
		t.startedAt, t.stoppedAt = time.Time{}, time.Time{}
		fx.add(func(p Presenter) { p.OnScoreChanged(0) })
		fx.status(MsgPickFirst, SeverityInfo)
	}
	t.mu.Unlock()
	t.run(fx)
	return err
}

// State returns the turn state.
func (t *TurnController) State() TurnState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Pending returns the face-up first card of the current turn.
func (t *TurnController) Pending() (int, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pending, t.pending != engine.NoCard
}

func (t *TurnController) Score() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.score
}

func (t *TurnController) GameOver() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.gameOver
}

// Processing reports whether a request is in flight.
func (t *TurnController) Processing() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.processing
}

// Cards returns a copy of the board.
func (t *TurnController) Cards() []GridCard {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.grid.Cards()
}

// Elapsed returns the time since the first flip, frozen once the game ends.
func (t *TurnController) Elapsed() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch {
	case t.startedAt.IsZero():
		return 0
	case t.gameOver:
		return t.stoppedAt.Sub(t.startedAt)
	default:
		return t.opts.Now().Sub(t.startedAt)
	}
}

func messageOr(msg, def string) string {
	if msg != "" {
		return msg
	}
	return def
}
