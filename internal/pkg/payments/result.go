package payments

import (
	"errors"

	"gorm.io/gorm"

	"github.com/invobr/paysync/internal/pkg/gateway"
	"github.com/invobr/paysync/internal/pkg/reconcile"
	"github.com/invobr/paysync/internal/pkg/tenant"
)

// Result kinds carried to callers. Controllers map these onto HTTP status
// codes; the queue worker maps them onto retry decisions.
const (
	KindOK                 = "ok"
	KindQueued             = "queued"
	KindDuplicate          = "duplicate"
	KindInFlight           = "in_flight"
	KindValidation         = "validation"
	KindBadSignature       = "invalid_signature"
	KindAmbiguousTenant    = "ambiguous_tenant"
	KindGatewayUnavailable = "gateway_unavailable"
	KindInvalidTransition  = "invalid_transition"
	KindAlreadyTerminal    = "already_terminal"
	KindNotRefundable      = "not_refundable"
	KindNotFound           = "not_found"
	KindInternal           = "internal"
)

// Result is the uniform envelope the service layer hands to controllers.
type Result struct {
	Success bool        `json:"success"`
	Kind    string      `json:"kind"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func ok(data interface{}) Result {
	return Result{Success: true, Kind: KindOK, Data: data}
}

func failure(kind, message string) Result {
	return Result{Success: false, Kind: kind, Message: message}
}

// classify maps lower-layer errors onto result kinds.
func classify(err error) Result {
	switch {
	case errors.Is(err, reconcile.ErrValidation):
		return failure(KindValidation, err.Error())
	case errors.Is(err, tenant.ErrAmbiguousTenant):
		return failure(KindAmbiguousTenant, err.Error())
	case errors.Is(err, tenant.ErrMalformedReference):
		return failure(KindValidation, err.Error())
	case errors.Is(err, gateway.ErrUnavailable):
		return failure(KindGatewayUnavailable, err.Error())
	case errors.Is(err, reconcile.ErrResourceMissing),
		errors.Is(err, gateway.ErrNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return failure(KindNotFound, err.Error())
	case errors.Is(err, gateway.ErrAlreadyTerminal), errors.Is(err, reconcile.ErrAlreadyTerminal):
		return failure(KindAlreadyTerminal, err.Error())
	case errors.Is(err, reconcile.ErrNotRefundable):
		return failure(KindNotRefundable, err.Error())
	case errors.Is(err, reconcile.ErrInvalidTransition):
		return failure(KindInvalidTransition, err.Error())
	default:
		var apiErr *gateway.APIError
		if errors.As(err, &apiErr) {
			return failure(KindValidation, apiErr.Error())
		}
		return failure(KindInternal, err.Error())
	}
}
