package reconcile

import "github.com/invobr/paysync/app/models"

// paymentTransitions is the forward-only payment lattice. Gateway state is
// authoritative going forward only; processors deliver stale notifications
// out of order, so a reported state that would move backward is ignored.
var paymentTransitions = map[string][]string{
	models.PaymentStatusPending: {
		models.PaymentStatusApproved,
		models.PaymentStatusRejected,
		models.PaymentStatusInProcess,
		models.PaymentStatusCancelled,
	},
	models.PaymentStatusInProcess: {
		models.PaymentStatusApproved,
		models.PaymentStatusRejected,
		models.PaymentStatusCancelled,
	},
	models.PaymentStatusApproved: {
		models.PaymentStatusRefunded,
	},
}

// ValidPaymentTransition reports whether from -> to is a legal forward move.
// Equal states are not a transition; callers treat them as a no-op.
func ValidPaymentTransition(from, to string) bool {
	for _, next := range paymentTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ValidOrderTransition reports whether a merchant order may move from one
// status to another. Closed and expired are terminal.
func ValidOrderTransition(from, to string) bool {
	if from != models.MerchantOrderStatusOpened {
		return false
	}
	return to == models.MerchantOrderStatusClosed || to == models.MerchantOrderStatusExpired
}
