package tenant

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2/log"

	"github.com/invobr/paysync/app/models"
)

// ErrAmbiguousTenant is returned when no resolution path yields a tenant.
// The delivery must be parked, never guessed.
var ErrAmbiguousTenant = errors.New("cannot resolve tenant for webhook")

// ErrMalformedReference is returned for an external_reference that does not
// follow the tenant:<id>:<purpose>:<ref> contract.
var ErrMalformedReference = errors.New("malformed external reference")

// CredentialStore looks up per-tenant gateway credentials.
type CredentialStore interface {
	ByGatewayUserID(ctx context.Context, gatewayUserID string) (*models.ProviderCredential, error)
	// Single returns the only credential when exactly one tenant is
	// configured, which makes resolution unambiguous by elimination.
	Single(ctx context.Context) (*models.ProviderCredential, error)
}

// ReferenceLookup fetches the external_reference of a gateway resource using
// platform credentials. Used as the last resolution step because it costs a
// gateway round trip.
type ReferenceLookup interface {
	ExternalReference(ctx context.Context, topic, resourceID string) (string, error)
}

// ResolveInput carries the tenant-relevant parts of an inbound delivery.
type ResolveInput struct {
	Topic         string
	ResourceID    string
	GatewayUserID string // "user_id" field of the webhook body
	TenantParam   string // explicit tenant route/query parameter
}

// Resolver determines which tenant a webhook belongs to. The gateway knows
// nothing about tenants, so resolution is out-of-band correlation only.
type Resolver struct {
	creds CredentialStore
	refs  ReferenceLookup
}

func NewResolver(creds CredentialStore, refs ReferenceLookup) *Resolver {
	return &Resolver{creds: creds, refs: refs}
}

// Resolve returns the owning tenant id or ErrAmbiguousTenant. Resolution
// order: explicit parameter, gateway account id, external_reference of the
// fetched resource, single-credential elimination.
func (r *Resolver) Resolve(ctx context.Context, in ResolveInput) (uint, error) {
	if p := strings.TrimSpace(in.TenantParam); p != "" {
		id, err := strconv.ParseUint(p, 10, 32)
		if err != nil || id == 0 {
			return 0, fmt.Errorf("%w: bad tenant parameter %q", ErrAmbiguousTenant, p)
		}
		return uint(id), nil
	}

	if uid := strings.TrimSpace(in.GatewayUserID); uid != "" {
		cred, err := r.creds.ByGatewayUserID(ctx, uid)
		if err == nil && cred != nil {
			return cred.TenantID, nil
		}
	}

	if r.refs != nil && in.ResourceID != "" {
		ref, err := r.refs.ExternalReference(ctx, in.Topic, in.ResourceID)
		if err == nil {
			if id, _, _, perr := ParseExternalReference(ref); perr == nil {
				return id, nil
			}
		} else {
			log.Warnf("[Tenant] external reference lookup failed for %s %s: %v", in.Topic, in.ResourceID, err)
		}
	}

	// Single-tenant installs are unambiguous by construction.
	if cred, err := r.creds.Single(ctx); err == nil && cred != nil {
		log.Infof("[Tenant] using single provider credential fallback, tenant %d", cred.TenantID)
		return cred.TenantID, nil
	}

	return 0, fmt.Errorf("%w: topic=%s resource=%s", ErrAmbiguousTenant, in.Topic, in.ResourceID)
}

// ParseExternalReference parses "tenant:<id>:<purpose>:<ref>", e.g.
// "tenant:42:invoice:7". The short form "tenant:<id>" denotes a generic
// payment with no related entity.
func ParseExternalReference(ref string) (tenantID uint, purpose, purposeRef string, err error) {
	parts := strings.Split(strings.TrimSpace(ref), ":")
	if len(parts) < 2 || parts[0] != "tenant" {
		return 0, "", "", fmt.Errorf("%w: %q", ErrMalformedReference, ref)
	}
	id, perr := strconv.ParseUint(parts[1], 10, 32)
	if perr != nil || id == 0 {
		return 0, "", "", fmt.Errorf("%w: bad tenant id in %q", ErrMalformedReference, ref)
	}
	switch len(parts) {
	case 2:
		return uint(id), models.PreferencePurposeGeneric, "", nil
	case 4:
		purpose = parts[2]
		purposeRef = parts[3]
		if purpose == "" || purposeRef == "" {
			return 0, "", "", fmt.Errorf("%w: empty purpose in %q", ErrMalformedReference, ref)
		}
		return uint(id), purpose, purposeRef, nil
	default:
		return 0, "", "", fmt.Errorf("%w: %q", ErrMalformedReference, ref)
	}
}

// FormatExternalReference builds the external_reference set at preference
// creation time.
func FormatExternalReference(tenantID uint, purpose, purposeRef string) string {
	if purpose == "" || purpose == models.PreferencePurposeGeneric {
		return fmt.Sprintf("tenant:%d", tenantID)
	}
	return fmt.Sprintf("tenant:%d:%s:%s", tenantID, purpose, purposeRef)
}
