package domain

import "time"

// PaymentSession is the payable side of one attempt: the QR payload the user
// scans plus the deadline that drives the expiry countdown. At most one
// session is active per watcher; attaching a new one discards the previous
// countdown state.
type PaymentSession struct {
	OrderCode   int64
	QRCode      string
	Description string
	ExpiredAt   *time.Time
}

// NavCountdownStart is how many one-second ticks elapse between settlement
// and the automatic navigation away from the payment screen.
const NavCountdownStart = 5

// PaymentState is the single source of truth the UI renders from.
//
// Invariants: CanNavigate implies Status != PENDING, and once true it never
// reverts for the lifetime of the watcher.
type PaymentState struct {
	Status       TransactionStatus
	LeftTime     time.Duration
	CanNavigate  bool
	NavCountdown int
}

func NewPaymentState() PaymentState {
	return PaymentState{
		Status:       TransactionPending,
		NavCountdown: NavCountdownStart,
	}
}
