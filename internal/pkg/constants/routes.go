package constants

// API route constants
const (
	ApiRoute     = "/api"
	WebhookRoute = "/webhooks/razorpay"
	CronRoute    = "/cron"
	OrdersRoute  = "/orders"

	CronReprocessWebhooksRoute  = "/reprocess-webhooks"
	CronRetryNotificationsRoute = "/retry-notifications"
	CronStatsRoute              = "/stats"
)

// Webhook headers sent by Razorpay
const (
	HeaderRazorpaySignature = "X-Razorpay-Signature"
	HeaderRazorpayEventID   = "X-Razorpay-Event-Id"
)
