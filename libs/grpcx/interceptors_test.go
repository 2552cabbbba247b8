package grpcx

import (
	"context"
	"testing"

	"github.com/md-rashed-zaman/timely/libs/httpx"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

func TestServerRequestIDInterceptor(t *testing.T) {
	info := &grpc.UnaryServerInfo{FullMethod: "/timely.auth.v1.TokenVerifier/Verify"}
	var seen string
	handler := func(ctx context.Context, _ any) (any, error) {
		seen = httpx.RequestIDFromContext(ctx)
		return nil, nil
	}

	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs(RequestIDMetadataKey, "req-1"))
	if _, err := UnaryServerRequestIDInterceptor()(ctx, nil, info, handler); err != nil {
		t.Fatalf("interceptor failed: %v", err)
	}
	if seen != "req-1" {
		t.Fatalf("expected incoming id, got %q", seen)
	}

	if _, err := UnaryServerRequestIDInterceptor()(context.Background(), nil, info, handler); err != nil {
		t.Fatalf("interceptor failed: %v", err)
	}
	if seen == "" || seen == "req-1" {
		t.Fatalf("expected a minted id, got %q", seen)
	}
}

func TestClientRequestIDInterceptor(t *testing.T) {
	var forwarded []string
	invoker := func(ctx context.Context, _ string, _, _ any, _ *grpc.ClientConn, _ ...grpc.CallOption) error {
		md, _ := metadata.FromOutgoingContext(ctx)
		forwarded = md.Get(RequestIDMetadataKey)
		return nil
	}

	ctx := httpx.ContextWithRequestID(context.Background(), "req-2")
	if err := UnaryClientRequestIDInterceptor()(ctx, "/m", nil, nil, nil, invoker); err != nil {
		t.Fatalf("interceptor failed: %v", err)
	}
	if len(forwarded) != 1 || forwarded[0] != "req-2" {
		t.Fatalf("unexpected metadata %v", forwarded)
	}

	if err := UnaryClientRequestIDInterceptor()(context.Background(), "/m", nil, nil, nil, invoker); err != nil {
		t.Fatalf("interceptor failed: %v", err)
	}
	if len(forwarded) != 0 {
		t.Fatalf("expected no id without a request context, got %v", forwarded)
	}
}
