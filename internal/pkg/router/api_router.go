package router

import (
	"github.com/manas360/payments/app/controllers"
	"github.com/manas360/payments/internal/pkg/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

type ApiRouter struct {
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api", limiter.New())
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "Hello from api",
		})
	})

	v1 := api.Group("/v1")

	auth := v1.Group("/auth")
	auth.Post("/register", controllers.HandleRegister)
	auth.Post("/login", controllers.HandleLogin)

	// The webhook is called server-to-server by the gateway and carries no
	// user API key. Everything else requires an authenticated user.
	payment := v1.Group("/payment")
	payment.Post("/webhook", controllers.HandlePaymentWebhook)

	authed := payment.Group("", middleware.APIKeyAuthMiddleware())
	authed.Post("/create", controllers.HandleCreatePayment)
	authed.Post("/verify", controllers.HandleVerifyPayment)
	authed.Get("/status/:txn", controllers.HandlePaymentStatus)

	me := v1.Group("/me", middleware.APIKeyAuthMiddleware())
	me.Get("/entitlement", controllers.HandleGetEntitlement)
	me.Get("/payments", controllers.HandleListPayments)
	me.Get("/subscription", controllers.HandleGetSubscription)
	me.Post("/password", controllers.HandleChangePassword)

	therapist := v1.Group("/therapist", middleware.APIKeyAuthMiddleware())
	therapist.Get("/earnings", controllers.HandleTherapistEarnings)
}

func NewApiRouter() *ApiRouter {
	return &ApiRouter{}
}
