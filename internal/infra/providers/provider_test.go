package providers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"marketplace/internal/domain"
)

func TestVerifyHMAC(t *testing.T) {
	secret := "whsec_test"
	payload := []byte(`{"type":"charge.succeeded"}`)

	t.Run("round trip verifies", func(t *testing.T) {
		sig := SignHMAC(secret, payload)
		assert.True(t, VerifyHMAC(secret, payload, sig))
	})

	t.Run("tampered payload fails", func(t *testing.T) {
		sig := SignHMAC(secret, payload)
		assert.False(t, VerifyHMAC(secret, []byte(`{"type":"charge.failed"}`), sig))
	})

	t.Run("wrong secret fails", func(t *testing.T) {
		sig := SignHMAC("other-secret", payload)
		assert.False(t, VerifyHMAC(secret, payload, sig))
	})

	t.Run("empty secret or signature always fails", func(t *testing.T) {
		assert.False(t, VerifyHMAC("", payload, SignHMAC("", payload)))
		assert.False(t, VerifyHMAC(secret, payload, ""))
	})
}

func TestStripeProvider_ParseEvent(t *testing.T) {
	p := NewStripeProvider("https://api.stripe.test", "sk_test", "whsec_test")

	tests := []struct {
		name           string
		payload        string
		expectedKind   EventKind
		expectedRef    string
		expectedIntent string
		expectedError  error
	}{
		{
			name:         "charge succeeded",
			payload:      `{"type":"charge.succeeded","data":{"object":{"id":"ch_1"}}}`,
			expectedKind: EventSucceeded,
			expectedRef:  "ch_1",
		},
		{
			name:           "charge succeeded echoes the idempotency key",
			payload:        `{"type":"charge.succeeded","data":{"object":{"id":"ch_9","idempotency_key":"intent-9"}}}`,
			expectedKind:   EventSucceeded,
			expectedRef:    "ch_9",
			expectedIntent: "intent-9",
		},
		{
			name:         "charge failed carries failure detail",
			payload:      `{"type":"charge.failed","data":{"object":{"id":"ch_2","failure_code":"card_declined","failure_message":"do not honor"}}}`,
			expectedKind: EventFailed,
			expectedRef:  "ch_2",
		},
		{
			name:         "charge canceled",
			payload:      `{"type":"charge.canceled","data":{"object":{"id":"ch_3"}}}`,
			expectedKind: EventCanceled,
			expectedRef:  "ch_3",
		},
		{
			name:         "refund succeeded",
			payload:      `{"type":"refund.succeeded","data":{"object":{"id":"re_1"}}}`,
			expectedKind: EventRefundSucceeded,
			expectedRef:  "re_1",
		},
		{
			name:          "unsupported type",
			payload:       `{"type":"customer.created","data":{"object":{"id":"cus_1"}}}`,
			expectedError: domain.ErrValidation,
		},
		{
			name:          "missing object id",
			payload:       `{"type":"charge.succeeded","data":{"object":{}}}`,
			expectedError: domain.ErrValidation,
		},
		{
			name:          "malformed json",
			payload:       `{"type":`,
			expectedError: domain.ErrValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			evt, err := p.ParseEvent([]byte(tt.payload))

			if tt.expectedError != nil {
				assert.Nil(t, evt)
				assert.ErrorIs(t, err, tt.expectedError)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.expectedKind, evt.Kind)
			assert.Equal(t, tt.expectedRef, evt.ProviderRef)
			assert.Equal(t, tt.expectedIntent, evt.IntentID)
		})
	}
}

func TestPaypalProvider_ParseEvent(t *testing.T) {
	p := NewPaypalProvider("https://api.paypal.test", "secret", "whsec_test")

	tests := []struct {
		name           string
		payload        string
		expectedKind   EventKind
		expectedRef    string
		expectedIntent string
	}{
		{
			name:           "capture completed echoes the invoice id",
			payload:        `{"event_type":"PAYMENT.CAPTURE.COMPLETED","resource":{"capture_id":"cap_9","invoice_id":"intent-9"}}`,
			expectedKind:   EventSucceeded,
			expectedRef:    "cap_9",
			expectedIntent: "intent-9",
		},
		{
			name:         "capture completed",
			payload:      `{"event_type":"PAYMENT.CAPTURE.COMPLETED","resource":{"capture_id":"cap_1"}}`,
			expectedKind: EventSucceeded,
			expectedRef:  "cap_1",
		},
		{
			name:         "capture denied",
			payload:      `{"event_type":"PAYMENT.CAPTURE.DENIED","resource":{"capture_id":"cap_2"}}`,
			expectedKind: EventFailed,
			expectedRef:  "cap_2",
		},
		{
			name:         "refund completed",
			payload:      `{"event_type":"PAYMENT.REFUND.COMPLETED","resource":{"capture_id":"cap_3"}}`,
			expectedKind: EventRefundSucceeded,
			expectedRef:  "cap_3",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			evt, err := p.ParseEvent([]byte(tt.payload))

			assert.NoError(t, err)
			assert.Equal(t, tt.expectedKind, evt.Kind)
			assert.Equal(t, tt.expectedRef, evt.ProviderRef)
			assert.Equal(t, tt.expectedIntent, evt.IntentID)
		})
	}
}

func TestStripeProvider_Charge(t *testing.T) {
	t.Run("succeeded charge", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v1/charges", r.URL.Path)
			assert.Equal(t, "Bearer sk_test", r.Header.Get("Authorization"))
			w.Write([]byte(`{"id":"ch_live","status":"succeeded"}`))
		}))
		defer srv.Close()

		p := NewStripeProvider(srv.URL, "sk_test", "whsec")
		result, err := p.Charge(context.Background(), ChargeRequest{IntentID: "in_1", Amount: 9640, Currency: "usd"})

		assert.NoError(t, err)
		assert.Equal(t, "ch_live", result.ProviderRef)
		assert.Equal(t, domain.PaymentCompleted, result.Status)
	})

	t.Run("declined charge", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"id":"ch_bad","status":"failed","failure_code":"card_declined","failure_message":"insufficient funds"}`))
		}))
		defer srv.Close()

		p := NewStripeProvider(srv.URL, "sk_test", "whsec")
		result, err := p.Charge(context.Background(), ChargeRequest{IntentID: "in_2", Amount: 100, Currency: "usd"})

		assert.NoError(t, err)
		assert.Equal(t, domain.PaymentFailed, result.Status)
		assert.Equal(t, "card_declined", result.FailureCode)
	})

	t.Run("5xx maps to upstream unavailable", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		p := NewStripeProvider(srv.URL, "sk_test", "whsec")
		result, err := p.Charge(context.Background(), ChargeRequest{IntentID: "in_3", Amount: 100, Currency: "usd"})

		assert.Nil(t, result)
		assert.ErrorIs(t, err, domain.ErrUpstreamUnavailable)
	})

	t.Run("4xx maps to provider rejected", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnprocessableEntity)
		}))
		defer srv.Close()

		p := NewStripeProvider(srv.URL, "sk_test", "whsec")
		result, err := p.Charge(context.Background(), ChargeRequest{IntentID: "in_4", Amount: 100, Currency: "usd"})

		assert.Nil(t, result)
		assert.ErrorIs(t, err, domain.ErrProviderRejected)
	})
}
