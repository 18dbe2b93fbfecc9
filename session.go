/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/Seednode/escaperoom/internal/gateway"
	"github.com/Seednode/escaperoom/internal/session"
	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"
)

const qrSize = 320

// joinURL is the address players open to join a session.
func joinURL(cfg *Config, r *http.Request, key string) string {
	scheme := cfg.scheme()
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}

	u := url.URL{
		Scheme:   scheme,
		Host:     r.Host,
		Path:     cfg.prefix + "/",
		RawQuery: url.Values{"session": []string{key}}.Encode(),
	}
	return u.String()
}

// serveQR renders a PNG QR code pointing at a session's join URL.
func serveQR(cfg *Config, store session.Store) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		key := ps.ByName("key")

		_, err := store.FindSessionByKey(r.Context(), key)
		switch {
		case errors.Is(err, session.ErrNotFound):
			http.Error(w, "unknown session", http.StatusNotFound)
			return
		case err != nil:
			cfg.logger.Error().Err(err).Str("session", key).Msg("qr lookup failed")
			http.Error(w, "session lookup failed", http.StatusInternalServerError)
			return
		}

		png, err := qrcode.Encode(joinURL(cfg, r, key), qrcode.Medium, qrSize)
		if err != nil {
			http.Error(w, "qr generation failed", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "image/png")
		securityHeaders(cfg, w)

		_, err = w.Write(png)
		if err != nil {
			cfg.logger.Debug().Err(err).Str("remote", realIP(r)).Msg("qr write failed")
		}
	}
}

// registerSessionRoutes sets up:
//   - $prefix/ws              → WebSocket carrying game events
//   - $prefix/session/:key/qr → PNG QR code for the session's join URL
func registerSessionRoutes(cfg *Config, mux *httprouter.Router, hub *gateway.Hub, handler gateway.Handler, store session.Store) {
	mux.GET(cfg.prefix+"/ws", hub.ServeWS(handler))
	mux.GET(cfg.prefix+"/session/:key/qr", serveQR(cfg, store))
}
