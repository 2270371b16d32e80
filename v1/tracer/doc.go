// Package tracer provides OpenTelemetry tracing for message flows.
//
// A producer writes its trace context into the message headers with
// GetCarrier; a consumer continues it with SetCarrierOnContext before starting
// its own span. The delivery package does both when given a *Tracer, so a
// message keeps one trace across every retry and its dead-lettering.
//
// # Usage
//
//	t, err := tracer.NewClient(tracer.Config{
//		ServiceName:  "rabbitctl",
//		AppEnv:       "development",
//		EnableExport: true,
//	}, log)
//	if err != nil {
//		return err
//	}
//	defer t.Shutdown(context.Background())
//
//	ctx, span := t.StartSpan(ctx, "orders.publish")
//	defer span.End()
//
//	headers := map[string]interface{}{}
//	for k, v := range t.GetCarrier(ctx) {
//		headers[k] = v
//	}
//
// # Configuration
//
//	TRACER_SERVICE_NAME=rabbitctl
//	APP_ENV=production
//	TRACER_ENABLE_EXPORT=true
//	OTEL_EXPORTER_OTLP_ENDPOINT=http://collector:4318
package tracer
