package reqctx

import (
	"context"
	"testing"
)

func TestRequestIDFromContext(t *testing.T) {
	if got := RequestIDFromContext(context.Background()); got != "" {
		t.Fatalf("empty context: got %q", got)
	}

	ctx := WithRequestMeta(context.Background(), &RequestMeta{RequestID: "req-1"})
	if got := RequestIDFromContext(ctx); got != "req-1" {
		t.Fatalf("got %q, want req-1", got)
	}

	ctx = WithRequestMeta(context.Background(), nil)
	if _, ok := RequestMetaFromContext(ctx); ok {
		t.Fatal("nil meta reported as present")
	}
}
