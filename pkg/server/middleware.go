package server

import (
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func (s *Server) cors(next http.Handler) http.Handler {
	allowAll := slices.Contains(s.allowedOrigins, "*")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		switch {
		case allowAll:
			w.Header().Set("Access-Control-Allow-Origin", "*")
		case origin != "" && slices.Contains(s.allowedOrigins, origin):
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Add("Vary", "Origin")
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type errorResponse struct {
	Error string `json:"error"`
}

// rateLimit rejects requests over the limit before they reach the
// workflow. A failing limiter backend lets the request through.
func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := clientKey(r)
		ok, err := s.limiter.Allow(r.Context(), key)
		if err != nil {
			s.logger.Warn("rate limiter unavailable, allowing request", "client", key, "error", err)
			ok = true
		}
		if !ok {
			s.logger.Info("rate limit exceeded", "client", key, "path", r.URL.Path)
			if s.metrics != nil {
				s.metrics.RateLimitRejected.WithLabelValues(r.URL.Path).Inc()
			}
			writeJSON(w, s.logger, http.StatusTooManyRequests, errorResponse{
				Error: "Rate limit exceeded: " + s.limitText,
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// instrument records request counts and durations per route pattern.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			s.metrics.RequestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
			s.metrics.RequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
		}()
		next.ServeHTTP(ww, r)
	})
}

// clientIP rewrites RemoteAddr to the forwarded client address, but only
// for requests arriving from a trusted proxy. The client is the rightmost
// X-Forwarded-For entry that is not itself a trusted proxy, since entries to
// its left are supplied by the client and can be forged. X-Real-IP is used
// when X-Forwarded-For is absent.
func (s *Server) clientIP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(s.trustedProxies) > 0 {
			if ip, ok := s.forwardedFor(r); ok {
				r.RemoteAddr = net.JoinHostPort(ip.String(), "0")
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) forwardedFor(r *http.Request) (netip.Addr, bool) {
	peer, err := netip.ParseAddrPort(r.RemoteAddr)
	if err != nil || !s.trusted(peer.Addr()) {
		return netip.Addr{}, false
	}

	var hops []string
	for _, value := range r.Header.Values("X-Forwarded-For") {
		hops = append(hops, strings.Split(value, ",")...)
	}
	for i := len(hops) - 1; i >= 0; i-- {
		addr, err := netip.ParseAddr(strings.TrimSpace(hops[i]))
		if err != nil {
			return netip.Addr{}, false
		}
		if !s.trusted(addr) {
			return addr.Unmap(), true
		}
	}
	if len(hops) > 0 {
		return netip.Addr{}, false
	}

	addr, err := netip.ParseAddr(strings.TrimSpace(r.Header.Get("X-Real-IP")))
	if err != nil {
		return netip.Addr{}, false
	}
	return addr.Unmap(), true
}

func (s *Server) trusted(addr netip.Addr) bool {
	addr = addr.Unmap()
	for _, p := range s.trustedProxies {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// clientKey is the client address without port, after clientIP.
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// describeLimit renders a limit the way rejections report it, e.g.
// "5 per 1 minute".
func describeLimit(limit int, window time.Duration) string {
	switch {
	case window%time.Hour == 0:
		return fmt.Sprintf("%d per %d hour", limit, window/time.Hour)
	case window%time.Minute == 0:
		return fmt.Sprintf("%d per %d minute", limit, window/time.Minute)
	case window%time.Second == 0:
		return fmt.Sprintf("%d per %d second", limit, window/time.Second)
	default:
		return fmt.Sprintf("%d per %s", limit, window)
	}
}
