package enums

// NotificationType maps to the notification_type enum in Postgres.
type NotificationType string

const (
	NotificationOrderPaid          NotificationType = "order_paid"
	NotificationOrderShipped       NotificationType = "order_shipped"
	NotificationOrderDelivered     NotificationType = "order_delivered"
	NotificationPayoutSent         NotificationType = "payout_sent"
	NotificationSubscriptionActive NotificationType = "subscription_active"
	NotificationSubscriptionLapsed NotificationType = "subscription_lapsed"
)

// IsValid reports whether the value is known.
func (n NotificationType) IsValid() bool {
	switch n {
	case NotificationOrderPaid,
		NotificationOrderShipped,
		NotificationOrderDelivered,
		NotificationPayoutSent,
		NotificationSubscriptionActive,
		NotificationSubscriptionLapsed:
		return true
	default:
		return false
	}
}
