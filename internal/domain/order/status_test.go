package order

import (
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStatus(t *testing.T) {
	tests := []struct {
		in   string
		want Status
	}{
		{"Received", StatusReceived},
		{"Preparing", StatusPreparing},
		{"Ready", StatusReady},
		{"Completed", StatusCompleted},
		{"Cancelled", StatusCancelled},
		{"Rejected", StatusRejected},
		{"", StatusReceived},
		{"completed", StatusReceived},
		{"Delivered", StatusReceived},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseStatus(tt.in))
		})
	}
}

func TestCanTransition_Allowed(t *testing.T) {
	tests := []struct {
		actor    Actor
		from, to Status
	}{
		{ActorVendor, StatusReceived, StatusPreparing},
		{ActorVendor, StatusReceived, StatusRejected},
		{ActorStudent, StatusReceived, StatusCancelled},
		{ActorVendor, StatusPreparing, StatusReady},
		{ActorStudent, StatusReady, StatusCompleted},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.NoError(t, CanTransition(tt.actor, tt.from, tt.to))
		})
	}
}

func TestCanTransition_Rejected(t *testing.T) {
	tests := []struct {
		name     string
		actor    Actor
		from, to Status
	}{
		{"rejected from preparing", ActorVendor, StatusPreparing, StatusRejected},
		{"student accepts", ActorStudent, StatusReceived, StatusPreparing},
		{"vendor cancels", ActorVendor, StatusReceived, StatusCancelled},
		{"vendor completes", ActorVendor, StatusReady, StatusCompleted},
		{"cancel after preparing", ActorStudent, StatusPreparing, StatusCancelled},
		{"skip preparing", ActorVendor, StatusReceived, StatusReady},
		{"leave completed", ActorVendor, StatusCompleted, StatusReceived},
		{"leave cancelled", ActorStudent, StatusCancelled, StatusReceived},
		{"leave rejected", ActorVendor, StatusRejected, StatusPreparing},
		{"self loop", ActorVendor, StatusReceived, StatusReceived},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CanTransition(tt.actor, tt.from, tt.to)
			require.Error(t, err)

			var te *TransitionError
			require.True(t, errors.As(err, &te))
			assert.Equal(t, tt.from, te.From)
			assert.Equal(t, tt.to, te.To)
		})
	}
}

func TestTerminalStatesHaveNoExits(t *testing.T) {
	all := []Status{StatusReceived, StatusPreparing, StatusReady, StatusCompleted, StatusCancelled, StatusRejected}
	for _, from := range all {
		if !from.Terminal() {
			continue
		}
		for _, to := range all {
			assert.Error(t, CanTransition(ActorVendor, from, to))
			assert.Error(t, CanTransition(ActorStudent, from, to))
		}
	}
}
