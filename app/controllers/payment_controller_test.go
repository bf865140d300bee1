package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manas360/payments/internal/pkg/billing"
	"github.com/manas360/payments/internal/pkg/gateway"
)

type stubReconciler struct {
	outcome billing.Outcome
	err     error
	calls   int
	lastTxn string
	lastRes billing.GatewayResult
}

func (s *stubReconciler) Reconcile(_ context.Context, transactionID string, res billing.GatewayResult) (billing.Outcome, error) {
	s.calls++
	s.lastTxn = transactionID
	s.lastRes = res
	return s.outcome, s.err
}

func withStubReconciler(t *testing.T, stub *stubReconciler) {
	t.Helper()
	prev := newReconciler
	newReconciler = func() paymentReconciler { return stub }
	t.Cleanup(func() { newReconciler = prev })
}

func newWebhookTestApp() *fiber.App {
	app := fiber.New()
	app.Post("/api/v1/payment/webhook", HandlePaymentWebhook)
	return app
}

func postWebhook(t *testing.T, app *fiber.App, body []byte) (int, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payment/webhook", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var parsed map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&parsed))
	return resp.StatusCode, parsed
}

func TestWebhookMalformedBodyStillAcks(t *testing.T) {
	stub := &stubReconciler{}
	withStubReconciler(t, stub)

	status, body := postWebhook(t, newWebhookTestApp(), []byte("{not json"))

	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, true, body["received"])
	assert.Equal(t, true, body["error"])
	assert.Equal(t, 0, stub.calls, "unparseable notification must not reach the engine")
}

func TestWebhookMissingTransactionIDStillAcks(t *testing.T) {
	stub := &stubReconciler{}
	withStubReconciler(t, stub)

	payload, _ := json.Marshal(map[string]string{"code": gateway.CodePaymentSuccess})
	status, body := postWebhook(t, newWebhookTestApp(), payload)

	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, true, body["received"])
	assert.Equal(t, true, body["error"])
	assert.Equal(t, 0, stub.calls)
}

func TestWebhookUnknownTransactionStillAcks(t *testing.T) {
	stub := &stubReconciler{err: billing.ErrPaymentNotFound}
	withStubReconciler(t, stub)

	payload, _ := json.Marshal(map[string]string{
		"transaction_id": "tx-missing",
		"code":           gateway.CodePaymentSuccess,
	})
	status, body := postWebhook(t, newWebhookTestApp(), payload)

	assert.Equal(t, fiber.StatusOK, status, "gateway must always get a 200")
	assert.Equal(t, true, body["received"])
	assert.Equal(t, true, body["error"])
	assert.Equal(t, 1, stub.calls)
	assert.Equal(t, "tx-missing", stub.lastTxn)
}

func TestWebhookFailureNotificationAcksClean(t *testing.T) {
	stub := &stubReconciler{outcome: billing.OutcomeApplied}
	withStubReconciler(t, stub)

	payload, _ := json.Marshal(map[string]string{
		"transaction_id": "tx-1",
		"code":           gateway.CodePaymentError,
	})
	status, body := postWebhook(t, newWebhookTestApp(), payload)

	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, true, body["received"])
	_, hasError := body["error"]
	assert.False(t, hasError, "processed notification must not carry an error flag")

	require.Equal(t, 1, stub.calls)
	assert.False(t, stub.lastRes.Succeeded)
	assert.Equal(t, gateway.CodePaymentError, stub.lastRes.ErrorCode)
}

func TestErrorCodeFor(t *testing.T) {
	assert.Equal(t, "", errorCodeFor(&gateway.StatusResult{Code: gateway.CodePaymentSuccess}))
	assert.Equal(t, gateway.CodePaymentError, errorCodeFor(&gateway.StatusResult{Code: gateway.CodePaymentError}))
}

func TestFailureCode(t *testing.T) {
	assert.Equal(t, "", failureCode(gateway.CodePaymentSuccess))
	assert.Equal(t, gateway.CodePaymentError, failureCode(gateway.CodePaymentError))
	assert.Equal(t, "PAYMENT_DECLINED", failureCode("PAYMENT_DECLINED"))
}
