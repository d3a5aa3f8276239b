// Copyright 2026 LinkDAO
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package linkdao

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// setupTracing configures the OpenTelemetry SDK. Spans are exported over
// OTLP HTTP (configured via the standard OTEL_EXPORTER_OTLP_* env vars)
// and optionally to stdout. The returned shutdown is registered so spans
// flush on node stop.
func (n *Node) setupTracing() error {
	var shutdownFuncs []func(context.Context) error
	handleErr := func(inErr error) error {
		var err error
		for _, fn := range shutdownFuncs {
			err = errors.Join(err, fn(context.TODO()))
		}
		return errors.Join(inErr, err)
	}
	prop := propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	)
	otel.SetTextMapPropagator(prop)
	var tracerProviderOpts []sdktrace.TracerProviderOption
	if n.config.tracingStdout {
		stdoutExporter, err := stdouttrace.New(
			stdouttrace.WithPrettyPrint(),
		)
		if err != nil {
			return handleErr(
				fmt.Errorf("failed to create stdout trace exporter: %w", err),
			)
		}
		tracerProviderOpts = append(
			tracerProviderOpts,
			sdktrace.WithBatcher(stdoutExporter),
		)
	}
	httpExporter, err := otlptracehttp.New(context.TODO())
	if err != nil {
		return handleErr(
			fmt.Errorf("failed to create OTLP trace exporter: %w", err),
		)
	}
	tracerProviderOpts = append(
		tracerProviderOpts,
		sdktrace.WithBatcher(httpExporter),
	)
	tracerProvider := sdktrace.NewTracerProvider(tracerProviderOpts...)
	shutdownFuncs = append(shutdownFuncs, tracerProvider.Shutdown)
	otel.SetTracerProvider(tracerProvider)
	n.shutdownFuncs = append(n.shutdownFuncs, shutdownFuncs...)
	return nil
}
