package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Dosada05/tournament-manager/services"
)

var errNoClaims = errors.New("user claims not found in context")

func claimsFromContext(ctx context.Context) (*Claims, error) {
	claims, ok := ctx.Value(userContextKey).(*Claims)
	if !ok || claims == nil {
		return nil, errNoClaims
	}
	return claims, nil
}

func GetUserIDFromContext(ctx context.Context) (int, error) {
	claims, err := claimsFromContext(ctx)
	if err != nil {
		return 0, err
	}
	return claims.UserID, nil
}

func GetUserRoleFromContext(ctx context.Context) (string, error) {
	claims, err := claimsFromContext(ctx)
	if err != nil {
		return "", err
	}
	return claims.Role, nil
}

// ActorFromContext converts the authenticated claims into the caller of a service operation.
func ActorFromContext(ctx context.Context) (services.Actor, error) {
	claims, err := claimsFromContext(ctx)
	if err != nil {
		return services.Actor{}, err
	}
	return services.Actor{UserID: claims.UserID, Role: claims.Role}, nil
}

// WithClaims is used by tests and tools that bypass Authenticate.
func WithClaims(ctx context.Context, userID int, role string) context.Context {
	return context.WithValue(ctx, userContextKey, &Claims{UserID: userID, Role: role})
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
