package handlers

import (
	"net/http"
	"strconv"

	"github.com/foozao/lao-cinema-sub007/internal/identity"
	"github.com/foozao/lao-cinema-sub007/internal/logger"
	"github.com/foozao/lao-cinema-sub007/internal/respond"
	"github.com/foozao/lao-cinema-sub007/pkg/audit"
)

// record writes an audit entry for the caller. No-op without a recorder.
func (s *Server) record(r *http.Request, action, resourceType, resourceID string, details map[string]interface{}) {
	if s.Audit == nil {
		return
	}
	e := audit.Entry{
		ActorType:    "system",
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Details:      details,
	}
	switch id := identity.FromContext(r.Context()); {
	case id.IsUser():
		e.ActorType, e.ActorID = "user", id.UserID()
	case id.IsAnonymous():
		e.ActorType, e.ActorID = "anonymous", id.AnonymousID()
	}
	if err := s.Audit.Record(r.Context(), audit.WithRequest(r, e)); err != nil {
		logger.FromContext(r.Context()).Warn("audit entry not recorded", "action", action, "error", err)
	}
}

// GET /admin/audit-log?actorId=&action=&limit=
func (s *Server) listAuditLog(w http.ResponseWriter, r *http.Request) {
	if s.Audit == nil {
		respond.JSON(w, http.StatusOK, map[string]interface{}{"entries": []audit.Entry{}})
		return
	}
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	entries, err := s.Audit.Query(r.Context(), audit.Filter{
		ActorID: q.Get("actorId"),
		Action:  q.Get("action"),
		Limit:   limit,
	})
	if err != nil {
		respond.Err(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]interface{}{"entries": entries})
}
