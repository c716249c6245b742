package types

// Telemetry metric names. All metric backends MUST use these constants so
// CloudWatch and Prometheus series line up.
const (
	// Metric Names
	MetricAPILatency      = "APILatency"
	MetricAPIRequestCount = "APIRequestCount"
	MetricRelayOutcome    = "RelayOutcome"
	MetricDispatchAttempt = "DispatchAttempt"
	MetricDispatchLatency = "DispatchLatency"

	// Dimension Keys
	DimMethod    = "Method"
	DimEndpoint  = "Endpoint"
	DimStatus    = "Status"
	DimResult    = "Result"
	DimEventType = "EventType"

	// MetricNamespace is the default CloudWatch namespace.
	MetricNamespace = "RevenueRelay"
)
