package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/foozao/lao-cinema-sub007/internal/apperr"
	"github.com/foozao/lao-cinema-sub007/internal/identity"
	"github.com/foozao/lao-cinema-sub007/internal/logger"
	"github.com/foozao/lao-cinema-sub007/internal/respond"
	"github.com/foozao/lao-cinema-sub007/internal/videotoken"
)

type revokeRequest struct {
	Token string `json:"token" validate:"required"`
}

// POST /admin/video-tokens/revoke
func (s *Server) revokeVideoToken(w http.ResponseWriter, r *http.Request) {
	var req revokeRequest
	if err := decodeBody(r, &req); err != nil {
		respond.Err(w, r, err)
		return
	}
	err := s.Tokens.Revoke(r.Context(), req.Token)
	switch {
	case errors.Is(err, videotoken.ErrRevocationDisabled):
		respond.Error(w, http.StatusNotFound, apperr.CodeNotFound, "Token revocation is not enabled")
		return
	case errors.Is(err, videotoken.ErrInvalidToken):
		respond.Error(w, http.StatusBadRequest, apperr.CodeInvalidRequest, "Token is invalid or already expired")
		return
	case err != nil:
		respond.Err(w, r, apperr.Internalf(err, "revoke video token"))
		return
	}
	logger.FromContext(r.Context()).Info("video token revoked",
		"admin_id", identity.FromContext(r.Context()).UserID(),
	)
	s.record(r, "video_token.revoke", "video_token", "", nil)
	respond.JSON(w, http.StatusOK, map[string]bool{"revoked": true})
}

// defaultCleanupDays is how old anonymous data must be before the cleanup
// endpoint removes it when the body names no age.
const defaultCleanupDays = 90

type cleanupRequest struct {
	OlderThanDays int `json:"olderThanDays" validate:"omitempty,gte=1,lte=3650"`
}

// POST /admin/maintenance/anonymous-cleanup
func (s *Server) cleanupAnonymous(w http.ResponseWriter, r *http.Request) {
	var req cleanupRequest
	if err := decodeBody(r, &req); err != nil {
		respond.Err(w, r, err)
		return
	}
	days := req.OlderThanDays
	if days == 0 {
		days = defaultCleanupDays
	}
	res, err := s.Rentals.CleanupStaleAnonymous(r.Context(), time.Duration(days)*24*time.Hour)
	if err != nil {
		respond.Err(w, r, err)
		return
	}
	logger.FromContext(r.Context()).Info("stale anonymous data removed",
		"older_than_days", days,
		"rentals", res.Rentals,
		"watch_progress", res.WatchProgress,
	)
	s.record(r, "maintenance.anonymous_cleanup", "anonymous_data", "", map[string]interface{}{
		"olderThanDays": days,
		"rentals":       res.Rentals,
		"watchProgress": res.WatchProgress,
	})
	respond.JSON(w, http.StatusOK, res)
}
