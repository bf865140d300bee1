package controllers

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	fiberlog "github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/manas360/payments/app/models"
	"github.com/manas360/payments/app/repository"
	"github.com/manas360/payments/internal/pkg/billing"
	"github.com/manas360/payments/internal/pkg/cache"
	"github.com/manas360/payments/internal/pkg/database"
	"github.com/manas360/payments/internal/pkg/entitlements"
	"github.com/manas360/payments/internal/pkg/gateway"
	"github.com/manas360/payments/internal/pkg/mail"
	"github.com/manas360/payments/internal/pkg/usercontext"
)

var gatewayClient gateway.Client

type paymentReconciler interface {
	Reconcile(ctx context.Context, transactionID string, res billing.GatewayResult) (billing.Outcome, error)
}

var newReconciler = func() paymentReconciler {
	return billing.NewServiceFromDB(database.GetDB())
}

// SetGatewayClient overrides the gateway client (used by tests and sandboxes).
func SetGatewayClient(c gateway.Client) {
	gatewayClient = c
}

func getGatewayClient() gateway.Client {
	if gatewayClient == nil {
		gatewayClient = gateway.NewClientFromEnv()
	}
	return gatewayClient
}

type createPaymentRequest struct {
	PlanID      string `json:"plan_id"`
	Source      string `json:"source"`
	TherapistID string `json:"therapist_id"`
}

// HandleCreatePayment opens a checkout session: it records the payment
// attempt in CREATED, asks the gateway for a redirect URL and bumps the
// row to PENDING with the gateway reference.
func HandleCreatePayment(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	var req createPaymentRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid JSON body"})
	}

	plan, err := billing.DefaultCatalog.Lookup(req.PlanID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_plan", "message": "Unknown plan_id"})
	}

	txnID, err := models.NewTransactionID()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
	}

	payment := &models.Payment{
		TransactionID: txnID,
		UserID:        userCtx.UserID,
		PlanID:        plan.ID,
		AmountPaise:   plan.PricePaise,
		Status:        models.PaymentStatusCreated,
		SourceScreen:  req.Source,
		TherapistID:   req.TherapistID,
	}

	paymentRepo := repository.GetGlobalFactory().GetPaymentRepository()
	if err := paymentRepo.Create(payment); err != nil {
		fiberlog.Errorf("create payment %s: %v", txnID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
	}

	ctx, cancel := context.WithTimeout(c.Context(), 20*time.Second)
	defer cancel()

	session, err := getGatewayClient().CreateCheckout(ctx, gateway.CheckoutRequest{
		TransactionID: txnID,
		UserRef:       userCtx.Username,
		AmountPaise:   plan.PricePaise,
	})
	if err != nil {
		fiberlog.Errorf("gateway checkout for %s: %v", txnID, err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "gateway_error", "message": "Payment initiation failed"})
	}

	if err := paymentRepo.MarkPending(txnID, session.GatewayRef); err != nil {
		fiberlog.Errorf("mark payment %s pending: %v", txnID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
	}

	return c.JSON(fiber.Map{
		"success":        true,
		"transaction_id": txnID,
		"payment_url":    session.PaymentURL,
	})
}

type verifyPaymentRequest struct {
	TransactionID string `json:"transaction_id"`
}

// HandleVerifyPayment is the client-initiated reconciliation entry point.
// It polls the gateway for the transaction's outcome and funnels it into
// the same engine the webhook uses.
func HandleVerifyPayment(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	var req verifyPaymentRequest
	if err := c.BodyParser(&req); err != nil || req.TransactionID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "transaction_id required"})
	}

	repos := repository.GetGlobalFactory()
	payment, err := repos.GetPaymentRepository().GetByTransactionIDForUser(req.TransactionID, userCtx.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Transaction not found"})
		}
		fiberlog.Errorf("load payment %s: %v", req.TransactionID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
	}

	if payment.IsTerminal() {
		return respondPaymentState(c, payment)
	}

	ctx, cancel := context.WithTimeout(c.Context(), 20*time.Second)
	defer cancel()

	status, err := getGatewayClient().FetchStatus(ctx, payment.TransactionID)
	if err != nil {
		fiberlog.Errorf("gateway status for %s: %v", payment.TransactionID, err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "gateway_error", "message": "Verification failed"})
	}
	if !status.Terminal() {
		return c.JSON(fiber.Map{"status": models.PaymentStatusPending, "transaction_id": payment.TransactionID})
	}

	if err := reconcileAndProject(ctx, payment.TransactionID, billing.GatewayResult{
		GatewayPaymentID: status.GatewayPaymentID,
		InstrumentType:   status.InstrumentType,
		Succeeded:        status.Succeeded(),
		ErrorCode:        errorCodeFor(status),
	}); err != nil {
		fiberlog.Errorf("reconcile %s from verify: %v", payment.TransactionID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Reconciliation failed"})
	}

	payment, err = repos.GetPaymentRepository().GetByTransactionID(payment.TransactionID)
	if err != nil {
		fiberlog.Errorf("reload payment %s: %v", req.TransactionID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
	}
	return respondPaymentState(c, payment)
}

// HandlePaymentStatus reports a payment's state to its owner, polling the
// gateway when the local row is still pending.
func HandlePaymentStatus(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	txnID := c.Params("txn")
	repos := repository.GetGlobalFactory()
	payment, err := repos.GetPaymentRepository().GetByTransactionIDForUser(txnID, userCtx.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Transaction not found"})
		}
		fiberlog.Errorf("load payment %s: %v", txnID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
	}

	if payment.IsTerminal() {
		return respondPaymentState(c, payment)
	}

	ctx, cancel := context.WithTimeout(c.Context(), 20*time.Second)
	defer cancel()

	status, err := getGatewayClient().FetchStatus(ctx, payment.TransactionID)
	if err != nil || !status.Terminal() {
		// Gateway unreachable or still processing: report pending, the
		// webhook or a later poll will finish the job.
		return c.JSON(fiber.Map{"status": models.PaymentStatusPending, "transaction_id": payment.TransactionID})
	}

	if err := reconcileAndProject(ctx, payment.TransactionID, billing.GatewayResult{
		GatewayPaymentID: status.GatewayPaymentID,
		InstrumentType:   status.InstrumentType,
		Succeeded:        status.Succeeded(),
		ErrorCode:        errorCodeFor(status),
	}); err != nil {
		fiberlog.Errorf("reconcile %s from status poll: %v", payment.TransactionID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
	}

	payment, err = repos.GetPaymentRepository().GetByTransactionID(txnID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
	}
	return respondPaymentState(c, payment)
}

type webhookNotification struct {
	TransactionID    string `json:"transaction_id"`
	Code             string `json:"code"`
	GatewayPaymentID string `json:"gateway_payment_id"`
	InstrumentType   string `json:"instrument_type"`
}

// HandlePaymentWebhook is the asynchronous server-to-server entry point.
// The gateway may deliver the same notification any number of times and
// may race the verify call; the engine's idempotency guard makes both
// safe. The gateway always gets a 200 so it stops redelivering.
func HandlePaymentWebhook(c *fiber.Ctx) error {
	var n webhookNotification
	if err := c.BodyParser(&n); err != nil || n.TransactionID == "" {
		fiberlog.Warnf("webhook: unparseable notification: %v", err)
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"received": true, "error": true})
	}

	fiberlog.Infof("webhook: %s -> %s", n.TransactionID, n.Code)

	result := billing.GatewayResult{
		GatewayPaymentID: n.GatewayPaymentID,
		InstrumentType:   n.InstrumentType,
		Succeeded:        n.Code == gateway.CodePaymentSuccess,
		ErrorCode:        failureCode(n.Code),
	}
	if err := reconcileAndProject(c.Context(), n.TransactionID, result); err != nil {
		fiberlog.Errorf("reconcile %s from webhook: %v", n.TransactionID, err)
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"received": true, "error": true})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"received": true})
}

// HandleGetEntitlement serves the cached entitlement projection, falling
// back to the user row on a cache miss.
func HandleGetEntitlement(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	if snap, ok, err := cache.GetEntitlement(userCtx.UserID); err == nil && ok {
		return c.JSON(entitlementResponse(snap, snap.ActiveAt(time.Now())))
	}

	user, err := repository.GetGlobalFactory().GetUserRepository().GetByID(userCtx.UserID)
	if err != nil {
		fiberlog.Errorf("load user %d: %v", userCtx.UserID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
	}

	snap := entitlements.FromUser(user)
	if err := cache.SetEntitlement(user.ID, snap); err != nil {
		fiberlog.Warnf("cache entitlement for user %d: %v", user.ID, err)
	}
	return c.JSON(entitlementResponse(snap, user.IsPremium(time.Now())))
}

func entitlementResponse(snap entitlements.Snapshot, active bool) fiber.Map {
	therapySessions, premiumTracks, anytimeBuddy := entitlements.AllowedFeatures(snap.Tier)
	return fiber.Map{
		"tier":    snap.Tier,
		"status":  snap.Status,
		"ends_at": snap.EndsAt,
		"active":  active,
		"features": fiber.Map{
			"therapy_sessions": therapySessions,
			"premium_tracks":   premiumTracks,
			"anytime_buddy":    anytimeBuddy,
		},
	}
}

// reconcileAndProject runs the engine and, when this call applied the
// transition, performs the best-effort post-commit effects: entitlement
// cache refresh and confirmation mail. Neither can undo the commit.
func reconcileAndProject(ctx context.Context, transactionID string, result billing.GatewayResult) error {
	outcome, err := newReconciler().Reconcile(ctx, transactionID, result)
	if err != nil {
		return err
	}
	if outcome != billing.OutcomeApplied || !result.Succeeded {
		return nil
	}

	repos := repository.GetGlobalFactory()
	payment, err := repos.GetPaymentRepository().GetByTransactionID(transactionID)
	if err != nil {
		fiberlog.Warnf("post-commit reload of %s failed: %v", transactionID, err)
		return nil
	}

	user, err := repos.GetUserRepository().GetByID(payment.UserID)
	if err != nil {
		fiberlog.Warnf("post-commit user load for %s failed: %v", transactionID, err)
		// Can't build a fresh snapshot; drop any stale one instead.
		if cerr := cache.InvalidateEntitlement(payment.UserID); cerr != nil {
			fiberlog.Warnf("invalidate entitlement for user %d: %v", payment.UserID, cerr)
		}
		return nil
	}

	if err := cache.SetEntitlement(user.ID, entitlements.FromUser(user)); err != nil {
		fiberlog.Warnf("entitlement cache refresh for user %d: %v", user.ID, err)
	}

	go func(email, txnID, planID string) {
		if err := mail.SendPaymentConfirmation(email, txnID, planID); err != nil {
			fiberlog.Warnf("confirmation mail for %s: %v", txnID, err)
		}
	}(user.Email, payment.TransactionID, payment.PlanID)

	return nil
}

// respondPaymentState answers a verify/status call from local state only.
func respondPaymentState(c *fiber.Ctx, payment *models.Payment) error {
	resp := fiber.Map{
		"status":         payment.Status,
		"transaction_id": payment.TransactionID,
	}
	if payment.PaymentMethod != "" {
		resp["payment_method"] = payment.PaymentMethod
	}
	if payment.ErrorCode != "" {
		resp["error"] = payment.ErrorCode
	}
	if payment.Status == models.PaymentStatusSuccess {
		sub, err := repository.GetGlobalFactory().GetSubscriptionRepository().GetByTransactionID(payment.TransactionID)
		if err == nil {
			resp["subscription_end"] = sub.EndsAt.UTC().Format(time.RFC3339)
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			fiberlog.Warnf("load subscription for %s: %v", payment.TransactionID, err)
		}
		if payment.TherapistID != "" {
			settlements, err := repository.GetGlobalFactory().GetSettlementRepository().GetByTransactionID(payment.TransactionID)
			if err != nil {
				fiberlog.Warnf("load settlement for %s: %v", payment.TransactionID, err)
			} else if len(settlements) > 0 {
				resp["settlement"] = settlements[0]
			}
		}
	}
	return c.JSON(resp)
}

func errorCodeFor(status *gateway.StatusResult) string {
	if status.Succeeded() {
		return ""
	}
	return status.Code
}

func failureCode(code string) string {
	if code == gateway.CodePaymentSuccess {
		return ""
	}
	return code
}
