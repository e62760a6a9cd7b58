package grpcapi

import (
	"context"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// Заголовки, которые выставляет шлюз после аутентификации.
const (
	HeaderUserID         = "x-user-id"
	HeaderUserRole       = "x-user-role"
	HeaderIdempotencyKey = "idempotency-key"

	RoleAdmin = "admin"
)

type caller struct {
	UserID string
	Admin  bool
}

func firstHeader(md metadata.MD, key string) string {
	for _, v := range md.Get(key) {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// callerFromContext достаёт пользователя из входящих метаданных.
func callerFromContext(ctx context.Context) (caller, error) {
	md, _ := metadata.FromIncomingContext(ctx)
	userID := firstHeader(md, HeaderUserID)
	if userID == "" {
		return caller{}, status.Error(codes.Unauthenticated, HeaderUserID+" header is required")
	}
	return caller{
		UserID: userID,
		Admin:  strings.EqualFold(firstHeader(md, HeaderUserRole), RoleAdmin),
	}, nil
}

func requireAdmin(ctx context.Context) (caller, error) {
	c, err := callerFromContext(ctx)
	if err != nil {
		return caller{}, err
	}
	if !c.Admin {
		return caller{}, status.Error(codes.PermissionDenied, "admin role is required")
	}
	return c, nil
}

func readIdempotencyKey(ctx context.Context) (string, error) {
	md, _ := metadata.FromIncomingContext(ctx)
	key := firstHeader(md, HeaderIdempotencyKey)
	if key == "" {
		return "", status.Error(codes.InvalidArgument, HeaderIdempotencyKey+" header is required")
	}
	return key, nil
}
