package ticket

import "github.com/guildkit/ticketd/internal/model"

type Action string

const (
	ActionClaim        Action = "claim"
	ActionJoin         Action = "join"
	ActionRequestClose Action = "request_close"
	ActionConfirmClose Action = "confirm_close"
	ActionRate         Action = "rate"
)

// transitionMap lists the statuses each action may fire from. Claim is
// allowed from claimed so staff can reassign; confirm-close accepts
// open/claimed directly for the close-with-reason path that skips the
// pending prompt.
var transitionMap = map[Action][]model.SessionStatus{
	ActionClaim:        {model.SessionOpen, model.SessionClaimed},
	ActionJoin:         {model.SessionOpen, model.SessionClaimed, model.SessionPendingClose},
	ActionRequestClose: {model.SessionOpen, model.SessionClaimed},
	ActionConfirmClose: {model.SessionOpen, model.SessionClaimed, model.SessionPendingClose},
	ActionRate:         {model.SessionClosed},
}

func ValidTransition(action Action, from model.SessionStatus) bool {
	allowed, ok := transitionMap[action]
	if !ok {
		return false
	}
	for _, status := range allowed {
		if status == from {
			return true
		}
	}
	return false
}
