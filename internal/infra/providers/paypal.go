package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"marketplace/internal/domain"
)

const paypalName = "paypal"

// PaypalProvider handles wallet payments.
type PaypalProvider struct {
	baseURL       string
	clientSecret  string
	webhookSecret string
	httpClient    *http.Client
}

func NewPaypalProvider(baseURL, clientSecret, webhookSecret string) *PaypalProvider {
	return &PaypalProvider{
		baseURL:       baseURL,
		clientSecret:  clientSecret,
		webhookSecret: webhookSecret,
		httpClient:    &http.Client{},
	}
}

func (p *PaypalProvider) Name() string { return paypalName }

type paypalCaptureResponse struct {
	CaptureID string `json:"capture_id"`
	State     string `json:"state"`
	Reason    string `json:"reason"`
}

func (p *PaypalProvider) Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	payload := map[string]interface{}{
		"amount":       req.Amount,
		"currency":     req.Currency,
		"invoice_id":   req.IntentID,
		"payer_wallet": req.Details["walletId"],
	}

	var out paypalCaptureResponse
	if err := p.call(ctx, "/v2/payments/capture", payload, &out); err != nil {
		return nil, err
	}

	result := &ChargeResult{ProviderRef: out.CaptureID}
	switch out.State {
	case "completed":
		result.Status = domain.PaymentCompleted
	case "declined":
		result.Status = domain.PaymentFailed
		result.FailureCode = "declined"
		result.FailureReason = out.Reason
	default:
		result.Status = domain.PaymentProcessing
	}
	return result, nil
}

func (p *PaypalProvider) Refund(ctx context.Context, req RefundRequest) (*RefundResult, error) {
	payload := map[string]interface{}{
		"capture_id": req.ProviderRef,
		"amount":     req.Amount,
		"note":       req.Reason,
		"invoice_id": req.RefundID,
	}

	var out paypalCaptureResponse
	if err := p.call(ctx, "/v2/payments/refund", payload, &out); err != nil {
		return nil, err
	}

	result := &RefundResult{ProviderRef: out.CaptureID}
	switch out.State {
	case "completed":
		result.Status = domain.RefundCompleted
	case "declined":
		result.Status = domain.RefundFailed
	default:
		result.Status = domain.RefundProcessing
	}
	return result, nil
}

func (p *PaypalProvider) VerifySignature(payload []byte, signature string) bool {
	return VerifyHMAC(p.webhookSecret, payload, signature)
}

type paypalEvent struct {
	EventType string `json:"event_type"`
	Resource  struct {
		CaptureID string `json:"capture_id"`
		InvoiceID string `json:"invoice_id"`
		Reason    string `json:"reason"`
	} `json:"resource"`
}

func (p *PaypalProvider) ParseEvent(payload []byte) (*WebhookEvent, error) {
	var evt paypalEvent
	if err := json.Unmarshal(payload, &evt); err != nil {
		return nil, fmt.Errorf("%w: malformed paypal event: %v", domain.ErrValidation, err)
	}

	out := &WebhookEvent{
		ProviderRef:   evt.Resource.CaptureID,
		IntentID:      evt.Resource.InvoiceID,
		FailureReason: evt.Resource.Reason,
	}
	switch evt.EventType {
	case "PAYMENT.CAPTURE.COMPLETED":
		out.Kind = EventSucceeded
	case "PAYMENT.CAPTURE.DENIED":
		out.Kind = EventFailed
		out.FailureCode = "denied"
	case "PAYMENT.CAPTURE.REVERSED":
		out.Kind = EventCanceled
	case "PAYMENT.REFUND.COMPLETED":
		out.Kind = EventRefundSucceeded
	case "PAYMENT.REFUND.DENIED":
		out.Kind = EventRefundFailed
	default:
		return nil, fmt.Errorf("%w: unsupported paypal event type %q", domain.ErrValidation, evt.EventType)
	}
	if out.ProviderRef == "" {
		return nil, fmt.Errorf("%w: paypal event without capture id", domain.ErrValidation)
	}
	return out, nil
}

func (p *PaypalProvider) call(ctx context.Context, path string, payload, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.clientSecret)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("%w: paypal returned status %d", domain.ErrUpstreamUnavailable, resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("%w: paypal returned status %d", domain.ErrProviderRejected, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
