package handlers

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/foozao/lao-cinema-sub007/internal/apperr"
	"github.com/foozao/lao-cinema-sub007/internal/catalog"
	"github.com/foozao/lao-cinema-sub007/internal/identity"
	"github.com/foozao/lao-cinema-sub007/internal/logger"
	"github.com/foozao/lao-cinema-sub007/internal/respond"
	"github.com/foozao/lao-cinema-sub007/internal/videotoken"
	"github.com/foozao/lao-cinema-sub007/pkg/streamlog"
)

type videoTokenRequest struct {
	MovieID       string `json:"movieId" validate:"required,resourceid"`
	VideoSourceID string `json:"videoSourceId" validate:"required,resourceid"`
}

type videoTokenResponse struct {
	URL       string `json:"url"`
	ExpiresIn int    `json:"expiresIn"`
}

// POST /video-tokens
func (s *Server) createVideoToken(w http.ResponseWriter, r *http.Request) {
	var req videoTokenRequest
	if err := decodeBody(r, &req); err != nil {
		respond.Err(w, r, err)
		return
	}
	ctx := r.Context()
	viewer := identity.FromContext(ctx)

	src, err := s.Catalog.FindVideoSource(ctx, req.VideoSourceID)
	if errors.Is(err, catalog.ErrNotFound) || (err == nil && src.MovieID != req.MovieID) {
		respond.Error(w, http.StatusNotFound, apperr.CodeNotFound, "Video source not found")
		return
	}
	if err != nil {
		respond.Err(w, r, apperr.Internalf(err, "find video source"))
		return
	}

	decision, err := s.Access.CheckAccess(ctx, req.MovieID, viewer)
	if err != nil {
		respond.Err(w, r, err)
		return
	}
	if !decision.Granted {
		respond.Error(w, http.StatusForbidden, apperr.CodeRentalRequired, "An active rental is required to watch this movie")
		return
	}

	tok, err := s.Tokens.Issue(req.MovieID, viewer, src.Path)
	if err != nil {
		respond.Err(w, r, apperr.Internalf(err, "issue video token"))
		return
	}
	logger.FromContext(ctx).Info("video token issued",
		"movie_id", req.MovieID,
		"access_type", decision.Type,
		"token_id", tok.ID,
	)

	respond.JSON(w, http.StatusOK, videoTokenResponse{
		URL:       s.playbackURL(src.Path, tok.Value),
		ExpiresIn: int(s.Tokens.TTL().Seconds()),
	})
}

func (s *Server) playbackURL(path, token string) string {
	return s.VideoServerURL + "/" + strings.TrimLeft(path, "/") + "?token=" + url.QueryEscape(token)
}

type validateResponse struct {
	Valid     bool   `json:"valid"`
	MovieID   string `json:"movieId,omitempty"`
	VideoPath string `json:"videoPath,omitempty"`
	Error     string `json:"error,omitempty"`
}

// GET /video-tokens/validate?token= and /video-tokens/validate/{token}
//
// Called by the video server. Every failure looks the same to the caller,
// and nothing about the viewer or the token is logged.
func (s *Server) validateVideoToken(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	if token == "" {
		token = r.URL.Query().Get("token")
	}

	claims, err := s.Tokens.Verify(r.Context(), token)
	switch {
	case errors.Is(err, videotoken.ErrInvalidToken):
		s.StreamLog.Log(streamlog.Fields{"event": "validate", "result": "invalid"})
		respond.JSON(w, http.StatusUnauthorized, validateResponse{Error: "Invalid or expired token"})
		return
	case err != nil:
		s.StreamLog.LogError(err, streamlog.Fields{"event": "validate", "result": "error"})
		respond.JSON(w, http.StatusServiceUnavailable, validateResponse{Error: "Token validation unavailable"})
		return
	}

	respond.JSON(w, http.StatusOK, validateResponse{
		Valid:     true,
		MovieID:   claims.MovieID,
		VideoPath: claims.VideoPath,
	})
}
