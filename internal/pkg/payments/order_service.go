package payments

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/invobr/paysync/app/models"
	"github.com/invobr/paysync/internal/pkg/reconcile"
)

// MerchantOrderService exposes the merchant-order side: explicit
// synchronization and listing. Order mutation happens only through
// reconciliation; there is no direct write API.
type MerchantOrderService struct {
	repo   Repository
	engine *reconcile.Engine
}

func NewMerchantOrderService(repo Repository, engine *reconcile.Engine) *MerchantOrderService {
	return &MerchantOrderService{repo: repo, engine: engine}
}

// SyncMerchantOrderStatus fetches the authoritative order snapshot,
// reconciles it together with every payment it references, and returns the
// stored record.
func (s *MerchantOrderService) SyncMerchantOrderStatus(ctx context.Context, tenantID uint, gatewayOrderID string) Result {
	if tenantID == 0 || strings.TrimSpace(gatewayOrderID) == "" {
		return failure(KindValidation, "tenant_id and order_id are required")
	}
	o, err := s.engine.SyncOrderStatus(ctx, tenantID, gatewayOrderID)
	if err != nil {
		return classify(err)
	}
	return ok(o)
}

// CancelMerchantOrder cancels every non-terminal payment of an opened order,
// then resynchronizes. The gateway has no direct order-cancel call; an order
// with no payable payments left expires on its own.
func (s *MerchantOrderService) CancelMerchantOrder(ctx context.Context, tenantID uint, gatewayOrderID string) Result {
	if tenantID == 0 || strings.TrimSpace(gatewayOrderID) == "" {
		return failure(KindValidation, "tenant_id and order_id are required")
	}
	o, err := s.engine.SyncOrderStatus(ctx, tenantID, gatewayOrderID)
	if err != nil {
		return classify(err)
	}
	if o.IsTerminal() {
		return failure(KindAlreadyTerminal, "order is "+o.Status)
	}

	for _, paymentID := range o.PaymentIDs {
		p, err := s.repo.PaymentByGatewayID(ctx, tenantID, paymentID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			continue
		}
		if err != nil {
			return classify(err)
		}
		if p.IsTerminal() {
			continue
		}
		if _, err := s.engine.CancelPayment(ctx, tenantID, paymentID); err != nil {
			return classify(err)
		}
	}

	o, err = s.engine.SyncOrderStatus(ctx, tenantID, gatewayOrderID)
	if err != nil {
		return classify(err)
	}
	return ok(o)
}

// ListMerchantOrders returns a tenant's orders, optionally filtered by status.
func (s *MerchantOrderService) ListMerchantOrders(ctx context.Context, tenantID uint, status string, limit, offset int) Result {
	if tenantID == 0 {
		return failure(KindValidation, "tenant_id is required")
	}
	switch status {
	case "", models.MerchantOrderStatusOpened, models.MerchantOrderStatusClosed, models.MerchantOrderStatusExpired:
	default:
		return failure(KindValidation, "unknown order status: "+status)
	}
	orders, total, err := s.repo.ListOrders(ctx, tenantID, status, clampLimit(limit), maxInt(offset, 0))
	if err != nil {
		return classify(err)
	}
	return ok(map[string]interface{}{
		"orders": orders,
		"total":  total,
	})
}
