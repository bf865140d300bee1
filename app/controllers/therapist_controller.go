package controllers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	fiberlog "github.com/gofiber/fiber/v2/log"

	"github.com/manas360/payments/app/models"
	"github.com/manas360/payments/app/repository"
	"github.com/manas360/payments/internal/pkg/usercontext"
)

// HandleTherapistEarnings lists a therapist's settlements together with the
// unpaid provider share. Therapists see their own ledger; admins may pass
// ?therapist_id= to inspect any.
func HandleTherapistEarnings(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	user, err := repository.GetGlobalFactory().GetUserRepository().GetByID(userCtx.UserID)
	if err != nil {
		fiberlog.Errorf("load user %d: %v", userCtx.UserID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
	}

	therapistID := strconv.FormatUint(uint64(user.ID), 10)
	switch user.Role {
	case models.ROLE_THERAPIST:
	case models.ROLE_ADMIN:
		if q := c.Query("therapist_id"); q != "" {
			therapistID = q
		}
	default:
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "forbidden", "message": "Therapist role required"})
	}

	offset, limit := pagination(c)

	settlementRepo := repository.GetGlobalFactory().GetSettlementRepository()
	settlements, err := settlementRepo.ListByTherapistID(therapistID, offset, limit)
	if err != nil {
		fiberlog.Errorf("list settlements for therapist %s: %v", therapistID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
	}
	pending, err := settlementRepo.SumPendingByTherapistID(therapistID)
	if err != nil {
		fiberlog.Errorf("sum pending for therapist %s: %v", therapistID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
	}

	return c.JSON(fiber.Map{
		"therapist_id":           therapistID,
		"settlements":            settlements,
		"pending_provider_share": pending,
		"offset":                 offset,
		"limit":                  limit,
	})
}
