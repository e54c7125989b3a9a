package ledger

import (
	"fmt"

	"github.com/iliyamo/pokernight/internal/model"
)

// MinPlayersToStart is the participant count a session needs before
// the host can start it.
const MinPlayersToStart = 2

// Event names a lifecycle transition.
type Event string

const (
	EventStart  Event = "start"
	EventFinish Event = "finish"
)

var transitions = map[model.Status]map[Event]model.Status{
	model.StatusPending: {EventStart: model.StatusActive},
	model.StatusActive:  {EventFinish: model.StatusFinished},
}

// Next returns the status reached from cur by ev, or
// ErrInvalidTransition when the table has no such edge.
func Next(cur model.Status, ev Event) (model.Status, error) {
	next, ok := transitions[cur][ev]
	if !ok {
		return cur, fmt.Errorf("%w: cannot %s a %s session", ErrInvalidTransition, ev, cur)
	}
	return next, nil
}

func requireHost(s model.Session, actorID uint64) error {
	if s.HostID != actorID {
		return ErrNotHost
	}
	return nil
}

// Start moves a pending session to active.  Only the host may start it
// and at least MinPlayersToStart participants must be seated.
func Start(s *model.Session, actorID uint64, players int) error {
	if err := requireHost(*s, actorID); err != nil {
		return err
	}
	next, err := Next(s.Status, EventStart)
	if err != nil {
		return err
	}
	if players < MinPlayersToStart {
		return fmt.Errorf("%w: need at least %d players, have %d", ErrInvalidTransition, MinPlayersToStart, players)
	}
	s.Status = next
	return nil
}

// CanFinish checks the finish guard without mutating anything.
func CanFinish(s model.Session, actorID uint64) error {
	if err := requireHost(s, actorID); err != nil {
		return err
	}
	_, err := Next(s.Status, EventFinish)
	return err
}

// CanAddParticipant allows the host to seat players before the game
// and late entrants while it runs.
func CanAddParticipant(s model.Session, actorID uint64) error {
	if err := requireHost(s, actorID); err != nil {
		return err
	}
	if s.Status != model.StatusPending && s.Status != model.StatusActive {
		return fmt.Errorf("%w: cannot add players to a %s session", ErrInvalidTransition, s.Status)
	}
	return nil
}

// CanRemoveParticipant allows removal only before the game starts.
// The host's own seat cannot be removed.
func CanRemoveParticipant(s model.Session, actorID uint64, p model.Participant) error {
	if err := requireHost(s, actorID); err != nil {
		return err
	}
	if s.Status != model.StatusPending {
		return fmt.Errorf("%w: players can only be removed before the session starts", ErrInvalidTransition)
	}
	if p.UserID == s.HostID {
		return fmt.Errorf("%w: the host cannot be removed", ErrInvalidInput)
	}
	return nil
}

// CanEditPlay guards buy-ins, cash-outs and other per-player ledger
// edits: host only, active sessions only.
func CanEditPlay(s model.Session, actorID uint64) error {
	if err := requireHost(s, actorID); err != nil {
		return err
	}
	if s.Status != model.StatusActive {
		return fmt.Errorf("%w: session is %s, not active", ErrInvalidTransition, s.Status)
	}
	return nil
}

// CanMarkPaid guards the moneyPaid flag, the one field that stays
// editable after a session is finished.
func CanMarkPaid(s model.Session, actorID uint64) error {
	return requireHost(s, actorID)
}
