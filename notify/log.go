package notify

import (
	"context"
	"log"

	"github.com/bandroom/studio-scheduler/schedule"
)

// Log is a schedule.Notifier that only writes to the process log.
// Used in development and anywhere a bot token is not configured.
type Log struct{}

func (Log) NotifyBooking(_ context.Context, ev schedule.BookingEvent) error {
	log.Printf("notify: booking %s %v by %s", ev.Day, ev.Hours, ev.Actor.DisplayName())
	return nil
}

func (Log) NotifyCancellation(_ context.Context, ev schedule.CancellationEvent) error {
	log.Printf("notify: cancellation %s %v by %s (admin=%v, affected=%d)",
		ev.Day, ev.Hours, ev.Actor.DisplayName(), ev.ByAdmin, len(ev.AffectedAccounts))
	return nil
}

func (Log) NotifyAccessRequest(_ context.Context, account schedule.Account) error {
	log.Printf("notify: access request from %s", account.DisplayName())
	return nil
}

func (Log) NotifyApproval(_ context.Context, account schedule.Account) error {
	log.Printf("notify: approval for %s", account.DisplayName())
	return nil
}
