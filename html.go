/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"html"
	"net/http"
	"strconv"
	"time"

	"github.com/julienschmidt/httprouter"
)

func serveHomePage(cfg *Config) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		securityHeaders(cfg, w)

		body := "Scan your session's QR code to join the game."
		if key := r.URL.Query().Get("session"); key != "" {
			body = "Connect to " + html.EscapeString(cfg.prefix) + "/ws and join session " + html.EscapeString(key) + "."
		}

		_, err := w.Write([]byte(newPage("Escape Room", body)))
		if err != nil {
			cfg.logger.Debug().Err(err).Str("remote", realIP(r)).Msg("home page write failed")
		}
	}
}

func serveHealthCheck(cfg *Config) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		securityHeaders(cfg, w)

		_, err := w.Write([]byte("Ok\n"))
		if err != nil {
			cfg.logger.Debug().Err(err).Str("remote", realIP(r)).Msg("health check write failed")
		}
	}
}

func serveRobots(cfg *Config) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		data := `User-agent: *
Disallow: /session/
Disallow: /ws`

		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.Header().Set("Expires", time.Now().Add(time.Hour).UTC().Format(http.TimeFormat))
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		securityHeaders(cfg, w)

		_, err := w.Write([]byte(data))
		if err != nil {
			cfg.logger.Debug().Err(err).Str("remote", realIP(r)).Msg("robots write failed")
		}
	}
}
