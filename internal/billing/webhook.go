package billing

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"tripplanner/internal/domain"
	"tripplanner/internal/storage"
)

// ErrInvalidSignature is returned for webhooks that fail verification.
var ErrInvalidSignature = errors.New("invalid webhook signature")

// Webhook event types acted upon.
const (
	EventCheckoutCompleted   = "checkout.session.completed"
	EventSubscriptionUpdated = "customer.subscription.updated"
	EventSubscriptionDeleted = "customer.subscription.deleted"
)

// Event is a payment provider webhook.
type Event struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

type checkoutObject struct {
	ClientReferenceID string            `json:"client_reference_id"`
	Customer          string            `json:"customer"`
	Metadata          map[string]string `json:"metadata"`
}

type subscriptionObject struct {
	Customer string `json:"customer"`
	Status   string `json:"status"`
	Items    struct {
		Data []struct {
			Price struct {
				ID string `json:"id"`
			} `json:"price"`
		} `json:"data"`
	} `json:"items"`
}

// VerifySignature checks a Stripe-Signature header ("t=<unix>,v1=<hex>")
// against payload. Signatures older than tolerance are rejected.
func VerifySignature(payload []byte, header, secret string, tolerance time.Duration, now time.Time) error {
	if secret == "" {
		return fmt.Errorf("%w: no webhook secret configured", ErrInvalidSignature)
	}
	var ts string
	var sigs []string
	for _, part := range strings.Split(header, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			ts = v
		case "v1":
			sigs = append(sigs, v)
		}
	}
	if ts == "" || len(sigs) == 0 {
		return fmt.Errorf("%w: malformed header", ErrInvalidSignature)
	}
	unix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: bad timestamp", ErrInvalidSignature)
	}
	if tolerance > 0 && now.Sub(time.Unix(unix, 0)) > tolerance {
		return fmt.Errorf("%w: timestamp outside tolerance", ErrInvalidSignature)
	}
	expected := Sign(payload, secret, unix)
	for _, sig := range sigs {
		got, err := hex.DecodeString(sig)
		if err != nil {
			continue
		}
		if hmac.Equal(got, expected) {
			return nil
		}
	}
	return ErrInvalidSignature
}

// Sign computes the v1 signature of payload sent at unix.
func Sign(payload []byte, secret string, unix int64) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(unix, 10)))
	mac.Write([]byte("."))
	mac.Write(payload)
	return mac.Sum(nil)
}

// SignatureHeader formats a Stripe-Signature header for payload.
func SignatureHeader(payload []byte, secret string, at time.Time) string {
	return fmt.Sprintf("t=%d,v1=%s", at.Unix(), hex.EncodeToString(Sign(payload, secret, at.Unix())))
}

// HandleWebhook verifies and applies a webhook. Checkout completion upgrades
// the referenced profile; subscription deletion downgrades the customer's
// profile. Other event types are acknowledged and ignored.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature string, now time.Time) (Event, error) {
	if err := VerifySignature(payload, signature, s.cfg.WebhookSecret, s.cfg.WebhookTolerance, now); err != nil {
		return Event{}, err
	}
	var ev Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return Event{}, fmt.Errorf("decode webhook: %w: %w", storage.ErrValidation, err)
	}
	log := s.logger.With("event_id", ev.ID, "event_type", ev.Type)

	switch ev.Type {
	case EventCheckoutCompleted:
		var obj checkoutObject
		if err := json.Unmarshal(ev.Data.Object, &obj); err != nil {
			return ev, fmt.Errorf("decode checkout session: %w", err)
		}
		userID := obj.ClientReferenceID
		if userID == "" {
			userID = obj.Metadata["user_id"]
		}
		if userID == "" {
			return ev, fmt.Errorf("checkout session without user reference: %w", storage.ErrValidation)
		}
		if _, err := s.setPlan(ctx, userID, domain.PlanPro, obj.Customer); err != nil {
			return ev, err
		}
	case EventSubscriptionUpdated, EventSubscriptionDeleted:
		var obj subscriptionObject
		if err := json.Unmarshal(ev.Data.Object, &obj); err != nil {
			return ev, fmt.Errorf("decode subscription: %w", err)
		}
		p, err := s.profileForCustomer(ctx, obj.Customer)
		if err != nil {
			return ev, err
		}
		plan := domain.PlanFree
		if ev.Type == EventSubscriptionUpdated && (obj.Status == "active" || obj.Status == "trialing") {
			plan = domain.PlanPro
			if len(obj.Items.Data) > 0 {
				if priced, ok := s.catalog.PlanForPrice(obj.Items.Data[0].Price.ID); ok {
					plan = priced.ID
				}
			}
		}
		if p.Plan != plan {
			if _, err := s.setPlan(ctx, p.ID, plan, ""); err != nil {
				return ev, err
			}
		}
	default:
		log.DebugContext(ctx, "ignoring webhook")
		return ev, nil
	}
	log.InfoContext(ctx, "webhook applied")
	return ev, nil
}
