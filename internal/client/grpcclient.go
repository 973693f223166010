// Package client is the gRPC client of the auth service used by authctl.
package client

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/taskboard/internal/common"
	pb "github.com/dmitrijs2005/taskboard/internal/proto"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

const callTimeout = 12 * time.Second

// Tokens is the pair held by the client after register, login or refresh.
type Tokens struct {
	AccessToken      string    `json:"accessToken"`
	ExpiresAt        time.Time `json:"expiresAt"`
	RefreshToken     string    `json:"refreshToken"`
	RefreshExpiresAt time.Time `json:"refreshExpiresAt"`
}

// Identity is the caller as reported by the Me call.
type Identity struct {
	UserID    string    `json:"userId"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type GRPCClient struct {
	endpointURL string
	conn        *grpc.ClientConn
	client      pb.AuthClient

	mu     sync.Mutex
	tokens Tokens
}

func withAccessToken(ctx context.Context, token string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	md.Set(common.AuthorizationHeaderName, common.BearerPrefix+token)

	return metadata.NewOutgoingContext(ctx, md)
}

// accessTokenInterceptor attaches the current access token to Me calls.
// On Unauthenticated it rotates the refresh token once and retries.
func (s *GRPCClient) accessTokenInterceptor(
	ctx context.Context,
	method string,
	req, reply any,
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {
	if method != pb.Auth_Me_FullMethodName {
		return invoker(ctx, method, req, reply, cc, opts...)
	}

	current := s.Tokens()
	err := invoker(withAccessToken(ctx, current.AccessToken), method, req, reply, cc, opts...)
	if status.Code(err) != codes.Unauthenticated || current.RefreshToken == "" {
		return err
	}

	if _, rerr := s.Refresh(ctx, current.RefreshToken); rerr != nil {
		return err
	}

	return invoker(withAccessToken(ctx, s.Tokens().AccessToken), method, req, reply, cc, opts...)
}

// NewGRPCClient dials endpointURL lazily; extra options are appended to the
// defaults (insecure transport, token interceptor).
func NewGRPCClient(endpointURL string, opts ...grpc.DialOption) (*GRPCClient, error) {
	c := &GRPCClient{endpointURL: endpointURL}

	dial := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(c.accessTokenInterceptor),
	}, opts...)

	conn, err := grpc.NewClient(endpointURL, dial...)
	if err != nil {
		return nil, err
	}
	c.conn = conn
	c.client = pb.NewAuthClient(conn)
	return c, nil
}

// Tokens returns a copy of the held token pair.
func (s *GRPCClient) Tokens() Tokens {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tokens
}

// SetTokens replaces the held token pair, e.g. with one saved by an earlier run.
func (s *GRPCClient) SetTokens(t Tokens) {
	s.mu.Lock()
	s.tokens = t
	s.mu.Unlock()
}

func (s *GRPCClient) keep(resp *pb.TokenPairResponse) Tokens {
	t := Tokens{
		AccessToken:      resp.GetAccessToken(),
		ExpiresAt:        time.Unix(resp.GetExpiresAt(), 0).UTC(),
		RefreshToken:     resp.GetRefreshToken(),
		RefreshExpiresAt: time.Unix(resp.GetRefreshExpiresAt(), 0).UTC(),
	}
	s.SetTokens(t)
	return t
}

func (s *GRPCClient) Register(ctx context.Context, email, password, displayName string) (Tokens, error) {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	resp, err := s.client.Register(ctx, &pb.RegisterRequest{Email: email, Password: password, DisplayName: displayName})
	if err != nil {
		return Tokens{}, s.mapError(err)
	}
	return s.keep(resp), nil
}

func (s *GRPCClient) Login(ctx context.Context, email, password string) (Tokens, error) {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	resp, err := s.client.Login(ctx, &pb.LoginRequest{Email: email, Password: password})
	if err != nil {
		return Tokens{}, s.mapError(err)
	}
	return s.keep(resp), nil
}

func (s *GRPCClient) Refresh(ctx context.Context, refreshToken string) (Tokens, error) {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	resp, err := s.client.Refresh(ctx, &pb.RefreshTokenRequest{RefreshToken: refreshToken})
	if err != nil {
		return Tokens{}, s.mapError(err)
	}
	return s.keep(resp), nil
}

func (s *GRPCClient) Revoke(ctx context.Context, refreshToken string) error {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	if _, err := s.client.Revoke(ctx, &pb.RefreshTokenRequest{RefreshToken: refreshToken}); err != nil {
		return s.mapError(err)
	}
	return nil
}

func (s *GRPCClient) Me(ctx context.Context) (Identity, error) {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	resp, err := s.client.Me(ctx, &pb.MeRequest{})
	if err != nil {
		return Identity{}, s.mapError(err)
	}
	return Identity{
		UserID:    resp.GetUserId(),
		Email:     resp.GetEmail(),
		Name:      resp.GetName(),
		ExpiresAt: time.Unix(resp.GetExpiresAt(), 0).UTC(),
	}, nil
}

func (s *GRPCClient) Close() error {
	return s.conn.Close()
}

func (s *GRPCClient) mapError(err error) error {
	if err == nil {
		return nil
	}
	st, _ := status.FromError(err)
	switch st.Code() {
	case codes.Unauthenticated, codes.PermissionDenied:
		return ErrUnauthorized
	case codes.Unavailable, codes.DeadlineExceeded:
		return ErrUnavailable
	case codes.AlreadyExists:
		return ErrConflict
	case codes.NotFound:
		return ErrNotFound
	case codes.InvalidArgument:
		return fmt.Errorf("%w: %s", ErrInvalidInput, st.Message())
	default:
		return fmt.Errorf("rpc error: %w", err)
	}
}
