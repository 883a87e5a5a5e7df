package trace

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

func TestNewContext(t *testing.T) {
	ctx := New()
	if len(ctx.TraceID) != 32 {
		t.Errorf("trace ID should be 32 chars, got %d", len(ctx.TraceID))
	}
	if len(ctx.SpanID) != 16 {
		t.Errorf("span ID should be 16 chars, got %d", len(ctx.SpanID))
	}
	if ctx.ParentSpanID != "" {
		t.Error("new context should not have parent span ID")
	}
}

func TestIDsUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := New().TraceID
		if seen[id] {
			t.Error("generated duplicate trace ID")
		}
		seen[id] = true
	}
}

func TestNewChild(t *testing.T) {
	parent := New()
	child := NewChild(parent)

	if child.TraceID != parent.TraceID {
		t.Error("child should inherit trace ID")
	}
	if child.SpanID == parent.SpanID {
		t.Error("child should have new span ID")
	}
	if child.ParentSpanID != parent.SpanID {
		t.Error("child's parent should be parent's span ID")
	}

	if orphan := NewChild(Context{}); orphan.TraceID == "" || orphan.ParentSpanID != "" {
		t.Errorf("child of empty context should start a new trace, got %+v", orphan)
	}
}

func TestContinue(t *testing.T) {
	tc := Continue("abc", "def")
	if tc.TraceID != "abc" || tc.ParentSpanID != "def" || tc.SpanID == "" {
		t.Errorf("Continue() = %+v", tc)
	}
	if fresh := Continue("", "def"); len(fresh.TraceID) != 32 || fresh.ParentSpanID != "" {
		t.Errorf("Continue with empty trace = %+v", fresh)
	}
}

func TestContextRoundTrip(t *testing.T) {
	if _, ok := FromContext(context.Background()); ok {
		t.Error("empty context should not carry a trace")
	}

	tc := New()
	ctx := WithContext(context.Background(), tc)
	got, ok := FromContext(ctx)
	if !ok || got != tc {
		t.Errorf("FromContext() = %+v, %v", got, ok)
	}

	same, ensured := EnsureContext(ctx)
	if ensured != tc || same != ctx {
		t.Error("EnsureContext should keep an existing trace")
	}

	_, created := EnsureContext(context.Background())
	if created.TraceID == "" {
		t.Error("EnsureContext should create a trace when missing")
	}
}

func TestSpan(t *testing.T) {
	root := WithContext(context.Background(), New())
	ctx, span := StartSpan(root, "classify")

	parent, _ := FromContext(root)
	child, _ := FromContext(ctx)
	if child.TraceID != parent.TraceID || child.ParentSpanID != parent.SpanID {
		t.Errorf("span context %+v not a child of %+v", child, parent)
	}

	if span.Duration() != 0 {
		t.Error("open span should report zero duration")
	}
	span.SetAttr("category", "normal")
	time.Sleep(time.Millisecond)
	span.End()
	if span.Duration() <= 0 {
		t.Error("ended span should have positive duration")
	}
	if span.Attrs["category"] != "normal" {
		t.Error("attribute not recorded")
	}
	if v := span.LogValue(); len(v.Group()) != 5 {
		t.Errorf("LogValue has %d attrs, want 5", len(v.Group()))
	}
}

func TestLogger(t *testing.T) {
	if Logger(context.Background()) == nil {
		t.Fatal("Logger should fall back to default")
	}
	if Logger(WithContext(context.Background(), NewChild(New()))) == nil {
		t.Fatal("Logger returned nil")
	}
}

func TestMiddleware(t *testing.T) {
	var seen Context
	h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = FromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(TraceIDKey, "trace-1")
	req.Header.Set(SpanIDKey, "span-1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if seen.TraceID != "trace-1" || seen.ParentSpanID != "span-1" {
		t.Errorf("handler saw %+v", seen)
	}
	if rec.Header().Get(TraceIDKey) != "trace-1" {
		t.Errorf("response trace header = %q", rec.Header().Get(TraceIDKey))
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if len(rec.Header().Get(TraceIDKey)) != 32 {
		t.Errorf("missing header should start a new trace, got %q", rec.Header().Get(TraceIDKey))
	}
}

func TestUnaryServerInterceptor(t *testing.T) {
	md := metadata.Pairs(TraceIDKey, "trace-2", SpanIDKey, "span-2")
	ctx := metadata.NewIncomingContext(context.Background(), md)

	var seen Context
	handler := func(ctx context.Context, req any) (any, error) {
		seen, _ = FromContext(ctx)
		return nil, nil
	}
	if _, err := UnaryServerInterceptor()(ctx, nil, &grpc.UnaryServerInfo{}, handler); err != nil {
		t.Fatal(err)
	}
	if seen.TraceID != "trace-2" || seen.ParentSpanID != "span-2" {
		t.Errorf("handler saw %+v", seen)
	}
}

func TestUnaryClientInterceptor(t *testing.T) {
	tc := New()
	ctx := WithContext(context.Background(), tc)

	var md metadata.MD
	invoker := func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, opts ...grpc.CallOption) error {
		md, _ = metadata.FromOutgoingContext(ctx)
		return nil
	}
	if err := UnaryClientInterceptor()(ctx, "/x", nil, nil, nil, invoker); err != nil {
		t.Fatal(err)
	}
	if first(md, TraceIDKey) != tc.TraceID || first(md, SpanIDKey) != tc.SpanID {
		t.Errorf("outgoing metadata = %v", md)
	}
}
