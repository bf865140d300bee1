package controllers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	fiberlog "github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/manas360/payments/app/models"
	"github.com/manas360/payments/app/repository"
	"github.com/manas360/payments/internal/pkg/usercontext"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

func pagination(c *fiber.Ctx) (offset, limit int) {
	limit = c.QueryInt("limit", defaultPageSize)
	if limit < 1 || limit > maxPageSize {
		limit = defaultPageSize
	}
	offset = c.QueryInt("offset", 0)
	if offset < 0 {
		offset = 0
	}
	return offset, limit
}

// HandleListPayments returns the authenticated user's payment history,
// newest first.
func HandleListPayments(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	offset, limit := pagination(c)

	paymentRepo := repository.GetGlobalFactory().GetPaymentRepository()
	payments, err := paymentRepo.ListByUserID(userCtx.UserID, offset, limit)
	if err != nil {
		fiberlog.Errorf("list payments for user %d: %v", userCtx.UserID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
	}
	total, err := paymentRepo.CountByUserID(userCtx.UserID)
	if err != nil {
		fiberlog.Errorf("count payments for user %d: %v", userCtx.UserID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
	}

	return c.JSON(fiber.Map{
		"payments": payments,
		"total":    total,
		"offset":   offset,
		"limit":    limit,
	})
}

// HandleGetSubscription returns the authenticated user's subscription row.
// Users without one get an inactive placeholder rather than a 404.
func HandleGetSubscription(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	sub, err := repository.GetGlobalFactory().GetSubscriptionRepository().GetByUserID(userCtx.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.JSON(fiber.Map{"status": models.SubscriptionStatusInactive})
		}
		fiberlog.Errorf("load subscription for user %d: %v", userCtx.UserID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
	}

	return c.JSON(sub)
}
