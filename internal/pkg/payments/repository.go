package payments

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/invobr/paysync/app/models"
)

// Repository provides the DB operations used by the payment services. It
// also satisfies the store interfaces of the reconciliation engine, the
// tenant resolver and the mail sink.
type Repository interface {
	PaymentByGatewayID(ctx context.Context, tenantID uint, gatewayPaymentID string) (*models.Payment, error)
	CreatePayment(ctx context.Context, p *models.Payment) error
	UpdatePayment(ctx context.Context, p *models.Payment) error
	ListPayments(ctx context.Context, tenantID uint, status string, limit, offset int) ([]models.Payment, int64, error)

	OrderByGatewayID(ctx context.Context, tenantID uint, gatewayOrderID string) (*models.MerchantOrder, error)
	CreateOrder(ctx context.Context, o *models.MerchantOrder) error
	UpdateOrder(ctx context.Context, o *models.MerchantOrder) error
	ListOrders(ctx context.Context, tenantID uint, status string, limit, offset int) ([]models.MerchantOrder, int64, error)

	ByGatewayUserID(ctx context.Context, gatewayUserID string) (*models.ProviderCredential, error)
	Single(ctx context.Context) (*models.ProviderCredential, error)
	CredentialByTenant(ctx context.Context, tenantID uint) (*models.ProviderCredential, error)
	UpsertCredential(ctx context.Context, cred *models.ProviderCredential) error
	NotifyEmail(ctx context.Context, tenantID uint) (string, error)

	CreatePreference(ctx context.Context, pref *models.PaymentPreference) error
	PreferenceByID(ctx context.Context, preferenceID string) (*models.PaymentPreference, error)
	MarkPreferenceExpired(ctx context.Context, preferenceID string) error

	ParkWebhook(ctx context.Context, parked *models.ParkedWebhook) error
	UnresolvedParkedWebhook(ctx context.Context, topic, resourceID string) (*models.ParkedWebhook, error)
	ListParkedWebhooks(ctx context.Context, limit, offset int) ([]models.ParkedWebhook, int64, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a payment repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) PaymentByGatewayID(ctx context.Context, tenantID uint, gatewayPaymentID string) (*models.Payment, error) {
	var p models.Payment
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND gateway_payment_id = ?", tenantID, gatewayPaymentID).
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *gormRepository) CreatePayment(ctx context.Context, p *models.Payment) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *gormRepository) UpdatePayment(ctx context.Context, p *models.Payment) error {
	return r.db.WithContext(ctx).Save(p).Error
}

func (r *gormRepository) ListPayments(ctx context.Context, tenantID uint, status string, limit, offset int) ([]models.Payment, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.Payment{}).Where("tenant_id = ?", tenantID)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var payments []models.Payment
	err := q.Order("created_at DESC").Limit(limit).Offset(offset).Find(&payments).Error
	return payments, total, err
}

func (r *gormRepository) OrderByGatewayID(ctx context.Context, tenantID uint, gatewayOrderID string) (*models.MerchantOrder, error) {
	var o models.MerchantOrder
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND gateway_order_id = ?", tenantID, gatewayOrderID).
		First(&o).Error
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *gormRepository) CreateOrder(ctx context.Context, o *models.MerchantOrder) error {
	return r.db.WithContext(ctx).Create(o).Error
}

func (r *gormRepository) UpdateOrder(ctx context.Context, o *models.MerchantOrder) error {
	return r.db.WithContext(ctx).Save(o).Error
}

func (r *gormRepository) ListOrders(ctx context.Context, tenantID uint, status string, limit, offset int) ([]models.MerchantOrder, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.MerchantOrder{}).Where("tenant_id = ?", tenantID)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var orders []models.MerchantOrder
	err := q.Order("created_at DESC").Limit(limit).Offset(offset).Find(&orders).Error
	return orders, total, err
}

func (r *gormRepository) ByGatewayUserID(ctx context.Context, gatewayUserID string) (*models.ProviderCredential, error) {
	var cred models.ProviderCredential
	err := r.db.WithContext(ctx).Where("gateway_user_id = ?", gatewayUserID).First(&cred).Error
	if err != nil {
		return nil, err
	}
	return &cred, nil
}

func (r *gormRepository) Single(ctx context.Context) (*models.ProviderCredential, error) {
	var creds []models.ProviderCredential
	if err := r.db.WithContext(ctx).Limit(2).Find(&creds).Error; err != nil {
		return nil, err
	}
	if len(creds) != 1 {
		return nil, gorm.ErrRecordNotFound
	}
	return &creds[0], nil
}

func (r *gormRepository) CredentialByTenant(ctx context.Context, tenantID uint) (*models.ProviderCredential, error) {
	var cred models.ProviderCredential
	err := r.db.WithContext(ctx).Where("tenant_id = ?", tenantID).First(&cred).Error
	if err != nil {
		return nil, err
	}
	return &cred, nil
}

func (r *gormRepository) UpsertCredential(ctx context.Context, cred *models.ProviderCredential) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "tenant_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"gateway_user_id",
			"access_token",
			"webhook_secret",
			"notify_email",
			"updated_at",
		}),
	}).Create(cred).Error
}

func (r *gormRepository) NotifyEmail(ctx context.Context, tenantID uint) (string, error) {
	cred, err := r.CredentialByTenant(ctx, tenantID)
	if err != nil {
		return "", err
	}
	return cred.NotifyEmail, nil
}

func (r *gormRepository) CreatePreference(ctx context.Context, pref *models.PaymentPreference) error {
	return r.db.WithContext(ctx).Create(pref).Error
}

func (r *gormRepository) PreferenceByID(ctx context.Context, preferenceID string) (*models.PaymentPreference, error) {
	var pref models.PaymentPreference
	err := r.db.WithContext(ctx).Where("preference_id = ?", preferenceID).First(&pref).Error
	if err != nil {
		return nil, err
	}
	return &pref, nil
}

func (r *gormRepository) MarkPreferenceExpired(ctx context.Context, preferenceID string) error {
	now := time.Now()
	return r.db.WithContext(ctx).Model(&models.PaymentPreference{}).
		Where("preference_id = ? AND expired_at IS NULL", preferenceID).
		Update("expired_at", &now).Error
}

func (r *gormRepository) ParkWebhook(ctx context.Context, parked *models.ParkedWebhook) error {
	return r.db.WithContext(ctx).Create(parked).Error
}

func (r *gormRepository) UnresolvedParkedWebhook(ctx context.Context, topic, resourceID string) (*models.ParkedWebhook, error) {
	var parked models.ParkedWebhook
	err := r.db.WithContext(ctx).
		Where("topic = ? AND resource_id = ? AND resolved_at IS NULL", topic, resourceID).
		First(&parked).Error
	if err != nil {
		return nil, err
	}
	return &parked, nil
}

func (r *gormRepository) ListParkedWebhooks(ctx context.Context, limit, offset int) ([]models.ParkedWebhook, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.ParkedWebhook{}).Where("resolved_at IS NULL")
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var parked []models.ParkedWebhook
	err := q.Order("created_at ASC").Limit(limit).Offset(offset).Find(&parked).Error
	return parked, total, err
}
