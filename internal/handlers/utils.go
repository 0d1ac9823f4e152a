package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"chatstream-backend/internal/auth"
	"chatstream-backend/pkg/httputil"
)

// getUserIDFromContext extracts the authenticated user ID, writing a 401
// response when the middleware did not supply one.
func getUserIDFromContext(ctx context.Context, w http.ResponseWriter) (uuid.UUID, error) {
	userID, ok := auth.GetUserIDFromContext(ctx)
	if !ok {
		httputil.RespondError(w, http.StatusUnauthorized, "Authentication required")
		return uuid.Nil, errors.New("user_id not found in context")
	}
	return userID, nil
}
