package settlement

import (
	"time"

	"libra-pay/internal/domain"
)

// Event is one input to the settlement reducer. The watcher merges pushed
// status changes and clock ticks into a single stream so there is exactly one
// place where PaymentState advances.
type Event interface {
	isEvent()
}

// StatusEvent is a pushed status change from the payment hub.
type StatusEvent struct {
	Status domain.TransactionStatus
}

// Tick is a one-second clock tick. It drives both the expiry countdown and,
// once the state is terminal, the navigation countdown.
type Tick struct {
	Now time.Time
}

func (StatusEvent) isEvent() {}
func (Tick) isEvent()        {}

type Effect int

const (
	EffectNone Effect = iota
	// EffectNavigate fires exactly once per watcher, when the navigation
	// countdown reaches zero.
	EffectNavigate
)

// Reduce advances PaymentState by one event. It is pure: no timers, no I/O.
//
// Transitions it enforces:
//   - a PENDING status event never regresses a further-along state;
//   - any terminal status event settles the state and zeroes the countdown,
//     idempotently (a second terminal event updates the status for display
//     but does not restart the navigation countdown);
//   - a tick while PENDING with a known deadline recomputes LeftTime and
//     expires the state locally once the deadline passes;
//   - a tick after settlement counts the navigation countdown down and emits
//     EffectNavigate exactly once, at zero.
func Reduce(s domain.PaymentState, sess *domain.PaymentSession, ev Event) (domain.PaymentState, Effect) {
	switch ev := ev.(type) {
	case StatusEvent:
		if ev.Status == domain.TransactionPending {
			return s, EffectNone
		}
		s.Status = ev.Status
		s.LeftTime = 0
		s.CanNavigate = true
		return s, EffectNone

	case Tick:
		if s.CanNavigate {
			if s.NavCountdown <= 0 {
				return s, EffectNone
			}
			s.NavCountdown--
			if s.NavCountdown == 0 {
				return s, EffectNavigate
			}
			return s, EffectNone
		}
		if s.Status != domain.TransactionPending || sess == nil || sess.ExpiredAt == nil {
			return s, EffectNone
		}
		left := sess.ExpiredAt.Sub(ev.Now)
		if left <= 0 {
			s.Status = domain.TransactionExpired
			s.LeftTime = 0
			s.CanNavigate = true
			return s, EffectNone
		}
		s.LeftTime = left
		return s, EffectNone
	}
	return s, EffectNone
}
