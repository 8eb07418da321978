package dispatcher

import (
	"context"

	"github.com/zedaapi/eventspine/internal/locks"
)

// deliveryDedupeWindow bounds how long an event_id is remembered as
// delivered, covering the window between a successful platform call and
// the ack landing (a crash in between causes JetStream to redeliver).
const deliveryDedupeWindow = 6 * 60 * 60

// alreadyDelivered reports whether eventID has already been sent to the
// platform, guarding against a double send on redelivery after a crash
// between the HTTP call succeeding and the message being acked.
func alreadyDelivered(ctx context.Context, dedupe locks.Manager, eventID string) (bool, error) {
	if dedupe == nil || eventID == "" {
		return false, nil
	}
	_, acquired, err := dedupe.Acquire(ctx, "dispatcher:delivered:"+eventID, deliveryDedupeWindow)
	if err != nil {
		return false, err
	}
	return !acquired, nil
}
