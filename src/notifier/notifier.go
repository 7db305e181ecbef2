package notifier

import (
	"context"

	"signalauditor/src/model"
)

// Notifier delivers a message once per record transition to a terminal state.
// Delivery is fire-and-forget: implementations log failures and never return
// them, a lost message must not roll back the persisted state change.
type Notifier interface {
	SignalClosed(ctx context.Context, rec model.SignalRecord)
}

// Nop discards all notifications.
type Nop struct{}

func (Nop) SignalClosed(context.Context, model.SignalRecord) {}
