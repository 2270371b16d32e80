package tracer

// Config defines the configuration for the OpenTelemetry tracer.
type Config struct {
	// ServiceName is recorded as the service.name resource attribute.
	ServiceName string `yaml:"service_name" envconfig:"TRACER_SERVICE_NAME"`

	// AppEnv is recorded as the deployment environment.
	AppEnv string `yaml:"app_env" envconfig:"APP_ENV"`

	// EnableExport sends spans to an OTLP/HTTP collector. The exporter reads
	// its endpoint from the standard OTEL_EXPORTER_OTLP_* environment variables.
	// When false spans are created and propagated but never exported.
	EnableExport bool `yaml:"enable_export" envconfig:"TRACER_ENABLE_EXPORT"`
}
