package assistant

import "go.opentelemetry.io/otel"

const scopeName = "github.com/i2y/parley/assistant"

var tracer = otel.Tracer(scopeName)
