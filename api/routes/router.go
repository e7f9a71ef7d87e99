package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/canvasly/canvasly-backend/api/controllers"
	"github.com/canvasly/canvasly-backend/api/middleware"
	checkoutsvc "github.com/canvasly/canvasly-backend/internal/checkout"
	"github.com/canvasly/canvasly-backend/internal/fulfillment"
	"github.com/canvasly/canvasly-backend/internal/notifications"
	"github.com/canvasly/canvasly-backend/internal/orders"
	"github.com/canvasly/canvasly-backend/internal/settlement"
	subscriptionsvc "github.com/canvasly/canvasly-backend/internal/subscriptions"
	"github.com/canvasly/canvasly-backend/pkg/config"
	"github.com/canvasly/canvasly-backend/pkg/db"
	"github.com/canvasly/canvasly-backend/pkg/logger"
	"github.com/canvasly/canvasly-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisP redis.Pinger,
	ordersService orders.Service,
	checkoutService checkoutsvc.Service,
	settlementService settlement.Service,
	fulfillmentService fulfillment.Service,
	subscriptionsService subscriptionsvc.Service,
	notificationsService notifications.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisP))
	})

	// Payment processor callbacks land here before the buyer has a
	// session, so this group skips the identity requirement.
	r.Route("/api/v1/checkout", func(r chi.Router) {
		r.Post("/confirm", controllers.ConfirmCheckoutSession(checkoutService, logg))
		r.Post("/payments/{paymentId}/capture", controllers.CaptureOrderPayment(checkoutService, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Identity(logg))

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", controllers.CreateOrder(ordersService, logg))
			r.Get("/", controllers.ListOrders(ordersService, logg))
			r.Get("/{orderId}", controllers.OrderDetail(ordersService, logg))
			r.Post("/{orderId}/delivered", controllers.ConfirmDelivery(settlementService, logg))
			r.Post("/{orderId}/label", controllers.PurchaseLabel(fulfillmentService, logg))
			r.Get("/{orderId}/tracking", controllers.OrderTracking(fulfillmentService, logg))
		})

		r.Get("/sales", controllers.ListSales(ordersService, logg))
		r.Post("/shipping/rates", controllers.ShippingRates(fulfillmentService, logg))

		r.Route("/subscriptions", func(r chi.Router) {
			r.Get("/me", controllers.GetSubscription(subscriptionsService, logg))
			r.Post("/activate", controllers.ActivateSubscription(subscriptionsService, logg))
			r.Post("/cancel", controllers.CancelSubscription(subscriptionsService, logg))
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(notificationsService, logg))
			r.Post("/{notificationId}/read", controllers.MarkNotificationRead(notificationsService, logg))
			r.Post("/read-all", controllers.MarkAllNotificationsRead(notificationsService, logg))
		})
	})

	return r
}
