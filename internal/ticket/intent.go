package ticket

import (
	"fmt"
	"strconv"
	"strings"
)

// Intents are decoded once at the platform boundary from component custom
// ids; everything past the boundary dispatches on the type, never on string
// prefixes.

type Intent interface{ isIntent() }

type OpenIntent struct {
	Category string
}

type ClaimIntent struct {
	ThreadID string
}

type JoinIntent struct {
	ThreadID string
}

// RequestCloseIntent asks for the in-thread confirmation prompt.
type RequestCloseIntent struct{}

// CloseWithReasonIntent carries a free-text reason from the structured
// input and confirms directly.
type CloseWithReasonIntent struct {
	Reason string
}

type ConfirmCloseIntent struct{}

type RateIntent struct {
	GuildID  string
	ThreadID string
	Score    int
}

func (OpenIntent) isIntent()            {}
func (ClaimIntent) isIntent()           {}
func (JoinIntent) isIntent()            {}
func (RequestCloseIntent) isIntent()    {}
func (CloseWithReasonIntent) isIntent() {}
func (ConfirmCloseIntent) isIntent()    {}
func (RateIntent) isIntent()            {}

const (
	idOpen         = "ticket.open"
	idClaim        = "ticket.claim"
	idJoin         = "ticket.join"
	idClose        = "ticket.close"
	idCloseReason  = "ticket.close_reason"
	idCloseSubmit  = "ticket.close_submit"
	idCloseConfirm = "ticket.close_confirm"
	idRate         = "ticket.rate"
)

// OpenCustomID builds the custom id for an intake button.
func OpenCustomID(category string) string { return idOpen + ":" + category }

func ClaimCustomID(threadID string) string { return idClaim + ":" + threadID }
func JoinCustomID(threadID string) string  { return idJoin + ":" + threadID }

func RateCustomID(guildID, threadID string, score int) string {
	return fmt.Sprintf("%s:%s:%s:%d", idRate, guildID, threadID, score)
}

// CloseReasonModalID is the custom id of the reason modal; the submitted
// text arrives separately and is attached by the caller.
const CloseReasonModalID = idCloseReason

// ParseIntent decodes a component custom id. The submitted modal text for a
// close-with-reason arrives out of band; callers build CloseWithReasonIntent
// themselves from the idCloseSubmit id plus the input value.
func ParseIntent(customID string) (Intent, error) {
	name, arg, _ := strings.Cut(customID, ":")
	switch name {
	case idOpen:
		return OpenIntent{Category: arg}, nil
	case idClaim:
		if arg == "" {
			return nil, fmt.Errorf("%w: claim without thread id", ErrUnknownIntent)
		}
		return ClaimIntent{ThreadID: arg}, nil
	case idJoin:
		if arg == "" {
			return nil, fmt.Errorf("%w: join without thread id", ErrUnknownIntent)
		}
		return JoinIntent{ThreadID: arg}, nil
	case idClose:
		return RequestCloseIntent{}, nil
	case idCloseConfirm:
		return ConfirmCloseIntent{}, nil
	case idRate:
		parts := strings.Split(arg, ":")
		if len(parts) != 3 {
			return nil, fmt.Errorf("%w: malformed rate id %q", ErrUnknownIntent, customID)
		}
		score, err := strconv.Atoi(parts[2])
		if err != nil {
			return nil, fmt.Errorf("%w: rate score %q", ErrUnknownIntent, parts[2])
		}
		return RateIntent{GuildID: parts[0], ThreadID: parts[1], Score: score}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownIntent, customID)
	}
}
