package ticket

import (
	"testing"

	"github.com/guildkit/ticketd/internal/model"
)

func TestValidTransition(t *testing.T) {
	tests := []struct {
		name   string
		action Action
		from   model.SessionStatus
		want   bool
	}{
		{"claim open", ActionClaim, model.SessionOpen, true},
		{"reclaim claimed", ActionClaim, model.SessionClaimed, true},
		{"claim pending", ActionClaim, model.SessionPendingClose, false},
		{"claim closed", ActionClaim, model.SessionClosed, false},

		{"join open", ActionJoin, model.SessionOpen, true},
		{"join claimed", ActionJoin, model.SessionClaimed, true},
		{"join pending", ActionJoin, model.SessionPendingClose, true},
		{"join closed", ActionJoin, model.SessionClosed, false},

		{"request close open", ActionRequestClose, model.SessionOpen, true},
		{"request close claimed", ActionRequestClose, model.SessionClaimed, true},
		{"request close pending", ActionRequestClose, model.SessionPendingClose, false},
		{"request close closed", ActionRequestClose, model.SessionClosed, false},

		{"confirm close open", ActionConfirmClose, model.SessionOpen, true},
		{"confirm close claimed", ActionConfirmClose, model.SessionClaimed, true},
		{"confirm close pending", ActionConfirmClose, model.SessionPendingClose, true},
		{"confirm close closed", ActionConfirmClose, model.SessionClosed, false},

		{"rate closed", ActionRate, model.SessionClosed, true},
		{"rate open", ActionRate, model.SessionOpen, false},
		{"rate pending", ActionRate, model.SessionPendingClose, false},

		{"unknown action", Action("archive"), model.SessionOpen, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidTransition(tt.action, tt.from); got != tt.want {
				t.Errorf("ValidTransition(%s, %s) = %v, want %v", tt.action, tt.from, got, tt.want)
			}
		})
	}
}
