// SPDX-License-Identifier: MIT

package api

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// adminCredential extracts the presented admin credential: the Bearer
// header, or the token query parameter for EventSource clients that
// cannot set headers.
func adminCredential(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if cred, ok := strings.CutPrefix(h, "Bearer "); ok {
			return cred
		}
		return ""
	}
	return r.URL.Query().Get("token")
}

func (s *Server) isAdmin(r *http.Request) bool {
	cred := adminCredential(r)
	if cred == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(cred), []byte(s.cfg.AdminPassword)) == 1
}

// requireAdmin gates the management surface.
func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.isAdmin(r) {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleAuthCheck(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
