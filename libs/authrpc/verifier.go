// Package authrpc exposes auth.Verifier over gRPC.
//
// The service is described with well-known protobuf types so no generated stubs are needed:
// the request is a StringValue holding the bearer token and the response is a Struct with
// user_id, email, name, token_id and expires_at (RFC3339).
package authrpc

import (
	"context"
	"errors"
	"time"

	"github.com/md-rashed-zaman/timely/libs/auth"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const (
	ServiceName      = "timely.auth.v1.TokenVerifier"
	verifyFullMethod = "/" + ServiceName + "/Verify"
)

// Register installs the TokenVerifier service backed by v.
func Register(s grpc.ServiceRegistrar, v auth.Verifier) {
	s.RegisterService(&serviceDesc, &server{verifier: v})
}

type verifierServer interface {
	Verify(ctx context.Context, in *wrapperspb.StringValue) (*structpb.Struct, error)
}

type server struct {
	verifier auth.Verifier
}

func (s *server) Verify(ctx context.Context, in *wrapperspb.StringValue) (*structpb.Struct, error) {
	if in.GetValue() == "" {
		return nil, status.Error(codes.Unauthenticated, "missing token")
	}
	id, err := s.verifier.Verify(ctx, in.GetValue())
	if err != nil {
		if errors.Is(err, auth.ErrUnauthorized) {
			return nil, status.Error(codes.Unauthenticated, "invalid token")
		}
		return nil, status.Error(codes.Unavailable, "verifier unavailable")
	}
	return identityToStruct(id)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*verifierServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Verify", Handler: verifyHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "timely/auth/v1/verifier.proto",
}

func verifyHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(verifierServer).Verify(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: verifyFullMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(verifierServer).Verify(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

// Client is an auth.Verifier that asks auth-service.
type Client struct {
	conn grpc.ClientConnInterface
}

func NewClient(conn grpc.ClientConnInterface) *Client {
	return &Client{conn: conn}
}

func (c *Client) Verify(ctx context.Context, token string) (auth.Identity, error) {
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, verifyFullMethod, wrapperspb.String(token), out); err != nil {
		if status.Code(err) == codes.Unauthenticated {
			return auth.Identity{}, auth.ErrUnauthorized
		}
		return auth.Identity{}, err
	}
	return identityFromStruct(out), nil
}

func identityToStruct(id auth.Identity) (*structpb.Struct, error) {
	fields := map[string]any{
		"user_id":  id.UserID,
		"email":    id.Email,
		"name":     id.Name,
		"token_id": id.TokenID,
	}
	if !id.ExpiresAt.IsZero() {
		fields["expires_at"] = id.ExpiresAt.UTC().Format(time.RFC3339)
	}
	return structpb.NewStruct(fields)
}

func identityFromStruct(s *structpb.Struct) auth.Identity {
	f := s.GetFields()
	id := auth.Identity{
		UserID:  f["user_id"].GetStringValue(),
		Email:   f["email"].GetStringValue(),
		Name:    f["name"].GetStringValue(),
		TokenID: f["token_id"].GetStringValue(),
	}
	if raw := f["expires_at"].GetStringValue(); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			id.ExpiresAt = t
		}
	}
	return id
}
