package server

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"vidframe/internal/httputil"
	"vidframe/internal/metrics"
	"vidframe/internal/sandbox"
)

// embedPolicy gives the proxied document an opaque origin and no popups.
const embedPolicy = "sandbox allow-scripts allow-forms allow-presentation"

// handleEmbed serves the session's current provider document with the
// blocker script injected. Anything the proxy cannot rewrite falls back
// to a redirect to the provider URL, where the blocker cannot reach.
func (s *Server) handleEmbed(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.withSession(w, r)
	if !ok {
		return
	}
	snap := sess.machine.Snapshot()
	if !snap.Playable() {
		writeJSON(w, http.StatusConflict, errorResponse{Error: "no playable URL"})
		return
	}

	page, blocked, err := s.fetchEmbed(r, snap.URL)
	if err != nil {
		s.logger.Debug().Err(err).Str("session", sess.id).Str("url", snap.URL).Msg("embed proxy falling back to redirect")
		http.Redirect(w, r, snap.URL, http.StatusFound)
		return
	}

	if blocked > 0 {
		sess.blocked.Add(int64(blocked))
		metrics.SandboxBlockedTotal.WithLabelValues("proxy").Add(float64(blocked))
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Security-Policy", embedPolicy)
	w.Header().Set("X-Content-Type-Options", "nosniff")
	_, _ = io.WriteString(w, page)
}

func (s *Server) fetchEmbed(r *http.Request, url string) (string, int, error) {
	resp, err := httputil.Get(r.Context(), s.opts.HTTPClient, url)
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); !strings.Contains(ct, "html") {
		return "", 0, fmt.Errorf("unexpected content type %q", ct)
	}
	return sandbox.InjectHTML(io.LimitReader(resp.Body, httputil.MaxBodySize), url)
}
