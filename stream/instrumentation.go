package stream

import (
	"go.opentelemetry.io/otel"
)

const scopeName = "github.com/i2y/parley/stream"

var tracer = otel.Tracer(scopeName)
