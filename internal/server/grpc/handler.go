package grpc

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/taskboard/internal/common"
	pb "github.com/dmitrijs2005/taskboard/internal/proto"
	"github.com/dmitrijs2005/taskboard/internal/server/models"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// toStatus maps service errors to gRPC codes with client-safe messages.
func toStatus(err error) error {
	switch {
	case errors.Is(err, common.ErrValidation):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, common.ErrConflict):
		return status.Error(codes.AlreadyExists, "email already registered")
	case errors.Is(err, common.ErrorUnauthorized):
		return status.Error(codes.Unauthenticated, "unauthorized")
	case errors.Is(err, common.ErrorNotFound):
		return status.Error(codes.NotFound, "refresh token not found")
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, "canceled")
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, "deadline exceeded")
	}
	return status.Error(codes.Internal, "internal error")
}

func toPair(p *models.TokenPair) *pb.TokenPairResponse {
	return &pb.TokenPairResponse{
		AccessToken:      p.AccessToken,
		ExpiresAt:        p.AccessExpiresAt.Unix(),
		RefreshToken:     p.RefreshToken,
		RefreshExpiresAt: p.RefreshExpiresAt.Unix(),
	}
}

func (s *GRPCServer) Register(ctx context.Context, req *pb.RegisterRequest) (*pb.TokenPairResponse, error) {
	pair, err := s.svc.Register(ctx, req.GetEmail(), req.GetPassword(), req.GetDisplayName())
	if err != nil {
		return nil, toStatus(err)
	}
	return toPair(pair), nil
}

func (s *GRPCServer) Login(ctx context.Context, req *pb.LoginRequest) (*pb.TokenPairResponse, error) {
	pair, err := s.svc.Login(ctx, req.GetEmail(), req.GetPassword())
	if err != nil {
		return nil, toStatus(err)
	}
	return toPair(pair), nil
}

func (s *GRPCServer) Refresh(ctx context.Context, req *pb.RefreshTokenRequest) (*pb.TokenPairResponse, error) {
	pair, err := s.svc.Refresh(ctx, req.GetRefreshToken())
	if err != nil {
		return nil, toStatus(err)
	}
	return toPair(pair), nil
}

func (s *GRPCServer) Revoke(ctx context.Context, req *pb.RefreshTokenRequest) (*pb.RevokeResponse, error) {
	if err := s.svc.Revoke(ctx, req.GetRefreshToken()); err != nil {
		return nil, toStatus(err)
	}
	return &pb.RevokeResponse{}, nil
}

func (s *GRPCServer) Me(ctx context.Context, _ *pb.MeRequest) (*pb.MeResponse, error) {
	claims, ok := claimsFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "unauthorized")
	}
	resp := &pb.MeResponse{UserId: claims.Subject, Email: claims.Email, Name: claims.Name}
	if claims.ExpiresAt != nil {
		resp.ExpiresAt = claims.ExpiresAt.Unix()
	}
	return resp, nil
}
