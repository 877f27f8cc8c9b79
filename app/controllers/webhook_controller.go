package controllers

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/invobr/paysync/app/models"
	"github.com/invobr/paysync/internal/pkg/payments"
)

const webhookTimeout = 15 * time.Second

// flexID accepts the id fields the gateway serializes both as JSON numbers
// and as strings, depending on webhook version.
type flexID string

func (f *flexID) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "null" {
		s = ""
	}
	*f = flexID(s)
	return nil
}

func (f flexID) String() string { return string(f) }

// webhookBody is the JSON shape of a gateway notification. Older deliveries
// carry topic/id as query parameters instead, with an empty body.
type webhookBody struct {
	ID     flexID `json:"id"`
	Type   string `json:"type"`
	Action string `json:"action"`
	UserID flexID `json:"user_id"`
	Data   struct {
		ID flexID `json:"id"`
	} `json:"data"`
	Resource string `json:"resource"`
}

// HandlePaymentWebhook receives payment notifications.
func HandlePaymentWebhook(c *fiber.Ctx) error {
	return handleWebhook(c, models.WebhookTopicPayment)
}

// HandleMerchantOrderWebhook receives merchant-order notifications.
func HandleMerchantOrderWebhook(c *fiber.Ctx) error {
	return handleWebhook(c, models.WebhookTopicMerchantOrder)
}

// HandleGatewayWebhook dispatches on the topic/type carried by the delivery
// itself. Used as the single notification_url endpoint.
func HandleGatewayWebhook(c *fiber.Ctx) error {
	return handleWebhook(c, "")
}

func handleWebhook(c *fiber.Ctx, forcedTopic string) error {
	rawBody := append([]byte(nil), c.BodyRaw()...)

	var body webhookBody
	if len(rawBody) > 0 {
		// A malformed body is tolerated; query parameters may still
		// identify the resource.
		_ = json.Unmarshal(rawBody, &body)
	}

	topic := forcedTopic
	if topic == "" {
		topic = firstNonEmpty(body.Type, c.Query("topic"), c.Query("type"))
	}
	resourceID := firstNonEmpty(body.Data.ID.String(), c.Query("data.id"), c.Query("id"), resourceIDFromURL(body.Resource))

	in := payments.WebhookInput{
		Topic:           topic,
		ResourceID:      resourceID,
		NotificationID:  body.ID.String(),
		GatewayUserID:   body.UserID.String(),
		TenantParam:     strings.TrimSpace(c.Query("tenant_id")),
		SignatureHeader: strings.TrimSpace(c.Get("x-signature")),
		RequestID:       strings.TrimSpace(c.Get("x-request-id")),
		RawBody:         rawBody,
		ReceivedAt:      time.Now(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), webhookTimeout)
	defer cancel()

	res := services.Webhooks.Ingest(ctx, in)
	return respondWebhook(c, res)
}

// respondWebhook maps a result onto the gateway's redelivery contract: 2xx
// acknowledges and stops redelivery, anything else makes the gateway retry.
func respondWebhook(c *fiber.Ctx, res payments.Result) error {
	status := fiber.StatusOK
	switch res.Kind {
	case payments.KindBadSignature:
		status = fiber.StatusUnauthorized
	case payments.KindAmbiguousTenant, payments.KindInternal:
		// No ack: parked or failed deliveries must keep redelivering.
		status = fiber.StatusInternalServerError
	case payments.KindInFlight:
		// A concurrent deliverer owns the slot; redeliver until it
		// settles either way.
		status = fiber.StatusConflict
	case payments.KindNotFound:
		// The gateway notifies moments before the resource is queryable.
		// Redelivery is the retry.
		status = fiber.StatusServiceUnavailable
	case payments.KindGatewayUnavailable:
		status = fiber.StatusServiceUnavailable
	case payments.KindValidation:
		// Garbage is acknowledged so the gateway stops resending it.
		status = fiber.StatusOK
	}
	return c.Status(status).JSON(res)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}

// resourceIDFromURL extracts the trailing id of a resource URL, the form
// legacy merchant-order notifications use.
func resourceIDFromURL(resource string) string {
	resource = strings.TrimRight(strings.TrimSpace(resource), "/")
	if resource == "" {
		return ""
	}
	if idx := strings.LastIndexByte(resource, '/'); idx >= 0 {
		return resource[idx+1:]
	}
	// A bare id is already what we want; anything else is not a URL.
	if strings.ContainsAny(resource, ":.") {
		return ""
	}
	return resource
}
