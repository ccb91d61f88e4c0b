// fields.go - the only fields a stream log line may carry.
//
// Banned, among others: ip, x_forwarded_for, user_id, anonymous_id, token,
// jti, movie_id, video_path, user_agent, query_string, referer.
package streamlog

// PermittedFields is the allowlist.
var PermittedFields = map[string]struct{}{
	"request_id": {},
	"status":     {},
	"method":     {},

	// First two path segments only. Full paths carry the token.
	"path_prefix": {},

	"duration_ms": {},

	// valid | invalid | error
	"result": {},

	"error":   {},
	"service": {},
	"event":   {},
}

func isPermitted(field string) bool {
	_, ok := PermittedFields[field]
	return ok
}
