package config

import "time"

// Model is the consistency model a node runs under: push (origin-initiated
// invalidations) or pull (replica-initiated polling with a time-to-
// refresh). It is a tagged variant rather than a global enum so it can be
// threaded through node construction explicitly.
type Model struct {
	push bool
	ttr  time.Duration
}

// Push is the push consistency model.
func Push() Model { return Model{push: true} }

// Pull is the pull consistency model with the given time-to-refresh, in
// minutes.
func Pull(ttrMinutes int) Model { return Model{push: false, ttr: time.Duration(ttrMinutes) * time.Minute} }

// IsPush reports whether m is the push model.
func (m Model) IsPush() bool { return m.push }

// IsPull reports whether m is the pull model.
func (m Model) IsPull() bool { return !m.push }

// TTR returns the configured time-to-refresh. Only meaningful in pull
// mode.
func (m Model) TTR() time.Duration { return m.ttr }

func (m Model) String() string {
	if m.push {
		return "push"
	}
	return "pull " + m.ttr.String()
}
