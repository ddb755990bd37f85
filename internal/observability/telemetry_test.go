package observability

import (
	"context"
	"errors"
	"testing"
)

func TestDisabledByDefault(t *testing.T) {
	if Enabled() {
		t.Fatalf("tracing should be disabled until Init is called with Enabled=true")
	}
}

func TestInitNoopWhenDisabled(t *testing.T) {
	if err := Init(context.Background(), Config{Enabled: false}); err != nil {
		t.Fatalf("Init with Enabled=false should not error: %v", err)
	}
	if Enabled() {
		t.Fatalf("Init with Enabled=false should leave tracing disabled")
	}
}

func TestStartSpanWorksAgainstNoopTracer(t *testing.T) {
	ctx, span := StartSpan(context.Background(), "test.op", AttrFunctionID.String("fn1"))
	if ctx == nil {
		t.Fatalf("StartSpan returned nil context")
	}
	SetSpanOK(span)
	SetSpanError(span, errors.New("boom"))
	span.End()
}

func TestShutdownNoopWhenNeverInitialized(t *testing.T) {
	if err := Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown with no provider installed should not error: %v", err)
	}
}
