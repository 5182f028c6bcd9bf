package observe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// newMiddleware builds an instrumented mux with the voxsign route shape
// (readyz plus the translate endpoint) and returns the inspection handles.
// Tests that route through it cannot run in parallel because the global
// tracer provider is swapped.
func newMiddleware(t *testing.T, translate http.HandlerFunc) (http.Handler, *sdkmetric.ManualReader, *tracetest.InMemoryExporter) {
	t.Helper()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	origTP := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(origTP) })

	if translate == nil {
		translate = func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }
	}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	mux.HandleFunc("GET /ws/translate", translate)

	return Middleware(m)(mux), reader, exp
}

func TestMiddlewareSetsCorrelationID(t *testing.T) {
	var sessionCID string
	handler, _, _ := newMiddleware(t, func(w http.ResponseWriter, r *http.Request) {
		sessionCID = CorrelationID(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/ws/translate", nil))

	// The handler must see the same trace ID the client gets back, so a
	// reported session can be matched to its server-side logs.
	if sessionCID == "" {
		t.Fatal("translate handler saw no correlation ID")
	}
	if len(sessionCID) != 32 {
		t.Errorf("correlation ID length = %d, want 32", len(sessionCID))
	}
	if got := rec.Header().Get("X-Correlation-ID"); got != sessionCID {
		t.Errorf("response X-Correlation-ID = %q, handler saw %q", got, sessionCID)
	}
}

func TestMiddlewareCreatesSpanPerRequest(t *testing.T) {
	handler, _, exp := newMiddleware(t, nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/ws/translate", nil))

	spans := exp.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("spans = %d, want 1", len(spans))
	}
	if spans[0].Name != "HTTP GET /ws/translate" {
		t.Errorf("span name = %q, want %q", spans[0].Name, "HTTP GET /ws/translate")
	}
}

func TestMiddlewareRecordsRequestDuration(t *testing.T) {
	handler, reader, _ := newMiddleware(t, nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/readyz", nil))

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	met := findMetric(rm, "voxsign.http.request.duration")
	if met == nil {
		t.Fatal("voxsign.http.request.duration not recorded")
	}
	hist, ok := met.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatalf("metric data = %T, want float64 histogram", met.Data)
	}
	if len(hist.DataPoints) != 1 {
		t.Fatalf("data points = %d, want 1", len(hist.DataPoints))
	}

	dp := hist.DataPoints[0]
	if dp.Count != 1 {
		t.Errorf("sample count = %d, want 1", dp.Count)
	}
	var gotMethod, gotPath string
	for _, kv := range dp.Attributes.ToSlice() {
		switch string(kv.Key) {
		case "method":
			gotMethod = kv.Value.AsString()
		case "path":
			gotPath = kv.Value.AsString()
		}
	}
	if gotMethod != "GET" || gotPath != "/readyz" {
		t.Errorf("attributes = (%q, %q), want (GET, /readyz)", gotMethod, gotPath)
	}
}

func TestMiddlewareCapturesUpgradeRefusalStatus(t *testing.T) {
	// A refused websocket upgrade surfaces as a plain error status; the
	// span must carry it.
	handler, _, exp := newMiddleware(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "missing Connection header", http.StatusUpgradeRequired)
	})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/ws/translate", nil))

	if rec.Code != http.StatusUpgradeRequired {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUpgradeRequired)
	}
	spans := exp.GetSpans()
	if len(spans) == 0 {
		t.Fatal("no spans recorded")
	}
	found := false
	for _, a := range spans[0].Attributes {
		if string(a.Key) == "http.response.status_code" && a.Value.AsInt64() == int64(http.StatusUpgradeRequired) {
			found = true
		}
	}
	if !found {
		t.Error("span missing http.response.status_code attribute")
	}
}

func TestMiddlewareContinuesClientTrace(t *testing.T) {
	// A client that already carries W3C trace context (e.g. a gateway in
	// front of voxsign) must keep its trace ID through the session.
	const clientTraceID = "8de3f6a1b24c49d0a57e1f3240cb9a11"

	var sessionCID string
	handler, _, _ := newMiddleware(t, func(w http.ResponseWriter, r *http.Request) {
		sessionCID = CorrelationID(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest("GET", "/ws/translate", nil)
	req.Header.Set("traceparent", "00-"+clientTraceID+"-00f067aa0ba902b7-01")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if sessionCID != clientTraceID {
		t.Errorf("correlation ID = %q, want client trace ID %q", sessionCID, clientTraceID)
	}
	if got := rec.Header().Get("X-Correlation-ID"); got != clientTraceID {
		t.Errorf("response X-Correlation-ID = %q, want %q", got, clientTraceID)
	}
}

func TestMiddlewareUnwrapsForHijack(t *testing.T) {
	// The websocket upgrade reaches the underlying writer through
	// http.ResponseController, which follows Unwrap.
	rw := &responseWriter{ResponseWriter: httptest.NewRecorder(), status: http.StatusOK}
	if rw.Unwrap() == nil {
		t.Fatal("Unwrap returned nil")
	}
	if _, ok := rw.Unwrap().(*httptest.ResponseRecorder); !ok {
		t.Errorf("Unwrap returned %T, want the wrapped writer", rw.Unwrap())
	}
}
