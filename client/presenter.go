package client

import "github.com/sirupsen/logrus"

// Severity grades a status message.
type Severity int

const (
	SeverityInfo Severity = iota
	SeveritySuccess
	SeverityWarning
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeveritySuccess:
		return "success"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return "unknown"
	}
}

// Presenter renders what the TurnController decides. Implementations only
// display; they never change game state.
type Presenter interface {
	OnCardRevealed(index, value int)
	OnCardHidden(index int)
	OnCardMatched(index int)
	OnScoreChanged(score int)
	OnStatus(message string, severity Severity)
	OnGameOver(message string)
}

// NopPresenter ignores every callback.
type NopPresenter struct{}

func (NopPresenter) OnCardRevealed(int, int)   {}
func (NopPresenter) OnCardHidden(int)          {}
func (NopPresenter) OnCardMatched(int)         {}
func (NopPresenter) OnScoreChanged(int)        {}
func (NopPresenter) OnStatus(string, Severity) {}
func (NopPresenter) OnGameOver(string)         {}

// LogPresenter writes every callback to a logger.
type LogPresenter struct {
	Log logrus.FieldLogger
}

func (p LogPresenter) OnCardRevealed(index, value int) {
	p.Log.WithFields(logrus.Fields{"index": index, "value": value}).Info("Card revealed.")
}

func (p LogPresenter) OnCardHidden(index int) {
	p.Log.WithField("index", index).Info("Card hidden.")
}

func (p LogPresenter) OnCardMatched(index int) {
	p.Log.WithField("index", index).Info("Card matched.")
}

func (p LogPresenter) OnScoreChanged(score int) {
	p.Log.WithField("score", score).Info("Score changed.")
}

func (p LogPresenter) OnStatus(message string, severity Severity) {
	e := p.Log.WithField("severity", severity)
	switch severity {
	case SeverityError:
		e.Error(message)
	case SeverityWarning:
		e.Warn(message)
	default:
		e.Info(message)
	}
}

func (p LogPresenter) OnGameOver(message string) {
	p.Log.WithField("game_over", true).Info(message)
}

// MultiPresenter forwards every callback to each presenter in order.
type MultiPresenter []Presenter

func (m MultiPresenter) OnCardRevealed(index, value int) {
	for _, p := range m {
		p.OnCardRevealed(index, value)
	}
}

func (m MultiPresenter) OnCardHidden(index int) {
	for _, p := range m {
		p.OnCardHidden(index)
	}
}

func (m MultiPresenter) OnCardMatched(index int) {
	for _, p := range m {
		p.OnCardMatched(index)
	}
}

func (m MultiPresenter) OnScoreChanged(score int) {
	for _, p := range m {
		p.OnScoreChanged(score)
	}
}

func (m MultiPresenter) OnStatus(message string, severity Severity) {
	for _, p := range m {
		p.OnStatus(message, severity)
	}
}

func (m MultiPresenter) OnGameOver(message string) {
	for _, p := range m {
		p.OnGameOver(message)
	}
}
