package session

import (
	"context"
	"errors"

	"eraforge/internal/genesis"
	"eraforge/internal/metrics"
	"eraforge/internal/oracle"
	"eraforge/internal/store"
	"eraforge/internal/turn"
)

// UserMessage turns any failure into text fit to show a player. The raw
// error belongs in the log, not in the reply.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var transition *TransitionError
	switch {
	case errors.As(err, &transition):
		return "You can't do that right now. " + nextStep(transition.State)
	case errors.Is(err, ErrNoSession):
		return "No game in progress. Start a new game first."
	case errors.Is(err, ErrTurnInProgress):
		return "Your previous action is still being resolved. Please wait for it to finish."
	case errors.Is(err, turn.ErrEmptyInitiative):
		return "Describe your initiative first."
	case errors.Is(err, turn.ErrMissingFacts):
		return "The chroniclers could not make sense of what happened. Nothing changed; try again."
	case errors.Is(err, metrics.ErrParse):
		return "The state of the realm could not be measured this year. Nothing changed; try again."
	case errors.Is(err, turn.ErrPersistence):
		return "The chronicle could not be saved. Nothing changed; try again."
	case errors.Is(err, oracle.ErrUnavailable), errors.Is(err, context.DeadlineExceeded):
		return "The oracle is silent right now. Nothing changed; try again in a moment."
	case errors.Is(err, genesis.ErrEmptyWorld):
		return "The world refused to take shape. Try starting again."
	case errors.Is(err, genesis.ErrEmptyCharacter):
		return "Your character could not be imagined. Try describing them again."
	case errors.Is(err, store.ErrNotFound):
		return "That world no longer exists. Start a new game."
	default:
		return "Something went wrong. Try again."
	}
}

func nextStep(s State) string {
	switch s {
	case Idle:
		return "Create a world to begin."
	case WorldCreated:
		return "Create your character next."
	case CharacterCreated:
		return "Begin your initiatives."
	case AwaitingInitiative:
		return "Submit an initiative."
	case TurnResolving:
		return "Your last initiative is still being resolved."
	default:
		return ""
	}
}
