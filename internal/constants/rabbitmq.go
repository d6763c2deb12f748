package constants

// RabbitMQ topology for run reporting.
const (
	ExchangeName         = "ingest_exchange"
	ExchangeType         = "direct"
	RoutingKeyRunReports = "reconcile.run_reports"
)
