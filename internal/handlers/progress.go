package handlers

import (
	"net/http"

	"github.com/foozao/lao-cinema-sub007/internal/identity"
	"github.com/foozao/lao-cinema-sub007/internal/rental"
	"github.com/foozao/lao-cinema-sub007/internal/respond"
)

// GET /watch-progress/{movieId}
func (s *Server) getProgress(w http.ResponseWriter, r *http.Request) {
	movieID, err := pathID(r, "movieId")
	if err != nil {
		respond.Err(w, r, err)
		return
	}
	owner := rental.OwnerFor(identity.FromContext(r.Context()))
	p, err := s.Progress.Get(r.Context(), owner, movieID)
	if err != nil {
		respond.Err(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, p)
}

type saveProgressRequest struct {
	ProgressSeconds int  `json:"progressSeconds" validate:"gte=0"`
	DurationSeconds int  `json:"durationSeconds" validate:"gte=0"`
	Completed       bool `json:"completed"`
}

// PUT /watch-progress/{movieId}
func (s *Server) saveProgress(w http.ResponseWriter, r *http.Request) {
	movieID, err := pathID(r, "movieId")
	if err != nil {
		respond.Err(w, r, err)
		return
	}
	var req saveProgressRequest
	if err := decodeBody(r, &req); err != nil {
		respond.Err(w, r, err)
		return
	}
	owner := rental.OwnerFor(identity.FromContext(r.Context()))
	p, err := s.Progress.Save(r.Context(), owner, movieID, req.ProgressSeconds, req.DurationSeconds, req.Completed)
	if err != nil {
		respond.Err(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, p)
}
