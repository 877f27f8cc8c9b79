package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// VerifyWebhookSignature checks the gateway's x-signature header. The header
// carries "ts=<unix>,v1=<hex hmac>"; the HMAC-SHA256 manifest is
// "id:<resource id>;request-id:<x-request-id>;ts:<ts>;" keyed by the
// tenant's webhook secret.
func VerifyWebhookSignature(signatureHeader, requestID, resourceID, secret string) bool {
	sig := strings.TrimSpace(signatureHeader)
	if sig == "" || strings.TrimSpace(secret) == "" {
		return false
	}

	var ts, v1 string
	for _, part := range strings.Split(sig, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "ts":
			ts = kv[1]
		case "v1":
			v1 = kv[1]
		}
	}
	if ts == "" || v1 == "" {
		return false
	}

	expected, err := hex.DecodeString(strings.ToLower(v1))
	if err != nil {
		return false
	}

	manifest := fmt.Sprintf("id:%s;request-id:%s;ts:%s;", resourceID, requestID, ts)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(manifest))
	return hmac.Equal(mac.Sum(nil), expected)
}

// SignWebhookManifest produces the v1 signature for a manifest. Counterpart
// of VerifyWebhookSignature for local testing against the sandbox.
func SignWebhookManifest(ts, requestID, resourceID, secret string) string {
	manifest := fmt.Sprintf("id:%s;request-id:%s;ts:%s;", resourceID, requestID, ts)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(manifest))
	return hex.EncodeToString(mac.Sum(nil))
}
