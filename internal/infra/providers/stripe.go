package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"marketplace/internal/domain"
)

const stripeName = "stripe"

// StripeProvider charges cards. The HTTP client carries no timeout of its
// own; the payment service bounds every call through the request context.
type StripeProvider struct {
	baseURL       string
	secretKey     string
	webhookSecret string
	httpClient    *http.Client
}

func NewStripeProvider(baseURL, secretKey, webhookSecret string) *StripeProvider {
	return &StripeProvider{
		baseURL:       baseURL,
		secretKey:     secretKey,
		webhookSecret: webhookSecret,
		httpClient:    &http.Client{},
	}
}

func (p *StripeProvider) Name() string { return stripeName }

type stripeChargeResponse struct {
	ID             string `json:"id"`
	Status         string `json:"status"`
	FailureCode    string `json:"failure_code"`
	FailureMessage string `json:"failure_message"`
}

func (p *StripeProvider) Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	payload := map[string]interface{}{
		"amount":          req.Amount,
		"currency":        req.Currency,
		"idempotency_key": req.IntentID,
		"source":          req.Details["token"],
	}

	var out stripeChargeResponse
	if err := p.call(ctx, "/v1/charges", payload, &out); err != nil {
		return nil, err
	}

	result := &ChargeResult{ProviderRef: out.ID}
	switch out.Status {
	case "succeeded":
		result.Status = domain.PaymentCompleted
	case "failed":
		result.Status = domain.PaymentFailed
		result.FailureCode = out.FailureCode
		result.FailureReason = out.FailureMessage
	default:
		// Charge accepted but not settled; the webhook resolves it.
		result.Status = domain.PaymentProcessing
	}
	return result, nil
}

type stripeRefundResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

func (p *StripeProvider) Refund(ctx context.Context, req RefundRequest) (*RefundResult, error) {
	payload := map[string]interface{}{
		"charge":          req.ProviderRef,
		"amount":          req.Amount,
		"reason":          req.Reason,
		"idempotency_key": req.RefundID,
	}

	var out stripeRefundResponse
	if err := p.call(ctx, "/v1/refunds", payload, &out); err != nil {
		return nil, err
	}

	result := &RefundResult{ProviderRef: out.ID}
	switch out.Status {
	case "succeeded":
		result.Status = domain.RefundCompleted
	case "failed":
		result.Status = domain.RefundFailed
	default:
		result.Status = domain.RefundProcessing
	}
	return result, nil
}

func (p *StripeProvider) VerifySignature(payload []byte, signature string) bool {
	return VerifyHMAC(p.webhookSecret, payload, signature)
}

type stripeEvent struct {
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID             string `json:"id"`
			IdempotencyKey string `json:"idempotency_key"`
			FailureCode    string `json:"failure_code"`
			FailureMessage string `json:"failure_message"`
		} `json:"object"`
	} `json:"data"`
}

func (p *StripeProvider) ParseEvent(payload []byte) (*WebhookEvent, error) {
	var evt stripeEvent
	if err := json.Unmarshal(payload, &evt); err != nil {
		return nil, fmt.Errorf("%w: malformed stripe event: %v", domain.ErrValidation, err)
	}

	out := &WebhookEvent{
		ProviderRef:   evt.Data.Object.ID,
		IntentID:      evt.Data.Object.IdempotencyKey,
		FailureCode:   evt.Data.Object.FailureCode,
		FailureReason: evt.Data.Object.FailureMessage,
	}
	switch evt.Type {
	case "charge.succeeded":
		out.Kind = EventSucceeded
	case "charge.failed":
		out.Kind = EventFailed
	case "charge.canceled":
		out.Kind = EventCanceled
	case "refund.succeeded":
		out.Kind = EventRefundSucceeded
	case "refund.failed":
		out.Kind = EventRefundFailed
	default:
		return nil, fmt.Errorf("%w: unsupported stripe event type %q", domain.ErrValidation, evt.Type)
	}
	if out.ProviderRef == "" {
		return nil, fmt.Errorf("%w: stripe event without object id", domain.ErrValidation)
	}
	return out, nil
}

func (p *StripeProvider) call(ctx context.Context, path string, payload, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.secretKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("%w: stripe returned status %d", domain.ErrUpstreamUnavailable, resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("%w: stripe returned status %d", domain.ErrProviderRejected, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
