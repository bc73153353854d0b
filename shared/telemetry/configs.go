package telemetry

// Predefined service configurations
var (
	// PaymentsServiceConfig is the telemetry configuration for the payments service
	PaymentsServiceConfig = Config{
		ServiceName:    "payments-service",
		ServiceVersion: "1.0.0",
	}

	// OrchestratorServiceConfig is the telemetry configuration for the saga orchestrator
	OrchestratorServiceConfig = Config{
		ServiceName:    "orchestrator-service",
		ServiceVersion: "1.0.0",
	}

	// DefaultConfig is the default telemetry configuration
	DefaultConfig = Config{
		ServiceName:    "unknown-service",
		ServiceVersion: "1.0.0",
	}
)

// WithOTLPEndpoint sets the OTLP endpoint for a config
func (c Config) WithOTLPEndpoint(endpoint string) Config {
	c.OTLPEndpoint = endpoint
	return c
}

// WithVersion sets the service version for a config
func (c Config) WithVersion(version string) Config {
	c.ServiceVersion = version
	return c
}
