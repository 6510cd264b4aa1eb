package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
)

// SignatureHeader carries the hex HMAC-SHA256 of the raw webhook body.
const SignatureHeader = "X-Signature"

// Sign returns the hex HMAC-SHA256 of body under secret.
func Sign(secret string, body []byte) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

// VerifySignature checks a webhook body against its signature header value.
// An optional "sha256=" prefix is accepted.
func VerifySignature(secret string, body []byte, signature string) bool {
	if secret == "" || signature == "" {
		return false
	}
	signature = strings.TrimPrefix(strings.TrimSpace(signature), "sha256=")
	got, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	want, _ := hex.DecodeString(Sign(secret, body))
	return hmac.Equal(got, want)
}

// WebhookEvent is the part of a provider notification the purchase flow needs.
type WebhookEvent struct {
	Reference string
	Status    string
	Payload   map[string]any
}

var ErrMalformedWebhook = errors.New("malformed webhook body")

// ParseWebhook accepts a flat {"reference","status"} body or a provider
// envelope {"data":{"object":{"id","status"}}}.
func ParseWebhook(body []byte) (WebhookEvent, error) {
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return WebhookEvent{}, errors.Join(ErrMalformedWebhook, err)
	}
	ev := WebhookEvent{Payload: payload}
	ev.Reference, _ = payload["reference"].(string)
	ev.Status, _ = payload["status"].(string)

	if data, ok := payload["data"].(map[string]any); ok {
		if obj, ok := data["object"].(map[string]any); ok {
			if ev.Reference == "" {
				ev.Reference, _ = obj["id"].(string)
			}
			if ev.Status == "" {
				ev.Status, _ = obj["status"].(string)
			}
		}
	}
	ev.Reference = strings.TrimSpace(ev.Reference)
	ev.Status = strings.TrimSpace(ev.Status)
	if ev.Reference == "" || ev.Status == "" {
		return ev, ErrMalformedWebhook
	}
	return ev, nil
}
