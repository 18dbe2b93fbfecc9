/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Seednode/escaperoom/internal/catalog"
	"github.com/Seednode/escaperoom/internal/game"
	"github.com/Seednode/escaperoom/internal/gateway"
	"github.com/julienschmidt/httprouter"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const (
	logDate string        = `2006-01-02T15:04:05.000-07:00`
	timeout time.Duration = 10 * time.Second
)

func securityHeaders(cfg *Config, w http.ResponseWriter) {
	w.Header().Set("Cross-Origin-Embedder-Policy", "require-corp")
	w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
	w.Header().Set("Cross-Origin-Resource-Policy", "same-site")
	w.Header().Set("Permissions-Policy", "geolocation=(), midi=(), sync-xhr=(), microphone=(), camera=(), magnetometer=(), gyroscope=(), fullscreen=(), payment=()")
	w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Content-Security-Policy", "default-src 'self'")

	if cfg.scheme() == "https" {
		w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains; preload")
	}
}

func realIP(r *http.Request) string {
	host, port, _ := net.SplitHostPort(r.RemoteAddr)
	if ip := r.Header.Get("CF-Connecting-IP"); ip != "" {
		if net.ParseIP(ip) != nil {
			host = ip
		}
	} else if ip := r.Header.Get("X-Real-IP"); ip != "" {
		if net.ParseIP(ip) != nil {
			host = ip
		}
	}
	if net.ParseIP(host) != nil && strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	if port != "" {
		return host + ":" + port
	}
	return host
}

func serveVersion(cfg *Config) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		startTime := time.Now()

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		securityHeaders(cfg, w)
		w.WriteHeader(http.StatusOK)

		written, err := w.Write([]byte("escaperoom v" + releaseVersion + "\n"))
		if err != nil {
			cfg.logger.Debug().Err(err).Str("remote", realIP(r)).Msg("version write failed")

			return
		}

		cfg.logger.Debug().
			Str("size", humanReadableSize(int64(written))).
			Str("remote", realIP(r)).
			Dur("elapsed", time.Since(startTime).Round(time.Microsecond)).
			Msg("served version page")
	}
}

func newRouter(cfg *Config) *httprouter.Router {
	mux := httprouter.New()

	mux.PanicHandler = func(w http.ResponseWriter, r *http.Request, i any) {
		cfg.logger.Error().Interface("panic", i).Str("path", r.URL.Path).Msg("handler panicked")

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		securityHeaders(cfg, w)
		w.WriteHeader(http.StatusInternalServerError)

		_, _ = io.WriteString(w, newPage("Server Error", "An error has occurred. Please try again."))
	}

	mux.GET(cfg.prefix+"/", serveHomePage(cfg))

	mux.GET(cfg.prefix+"/healthz", serveHealthCheck(cfg))

	mux.GET(cfg.prefix+"/robots.txt", serveRobots(cfg))

	mux.GET(cfg.prefix+"/version", serveVersion(cfg))

	if cfg.profile {
		registerProfileHandlers(cfg, mux)
	}

	return mux
}

func ServePage(ctx context.Context, cfg *Config) error {
	var err error

	timeZone := os.Getenv("TZ")
	if timeZone != "" {
		time.Local, err = time.LoadLocation(timeZone)
		if err != nil {
			return err
		}
	}

	cfg.logger.Info().Str("version", releaseVersion).Msg("starting escaperoom")

	cards, err := catalog.Load(cfg.catalog)
	if err != nil {
		return err
	}
	cfg.logger.Info().Int("cards", cards.Len()).Str("path", cfg.catalog).Msg("catalog loaded")

	store, err := openStore(ctx, cfg.database)
	if err != nil {
		return err
	}
	defer store.Close()

	hub := gateway.NewHub(gateway.Options{
		AllowedOrigins: cfg.allowedOrigins,
		RateLimit:      rate.Limit(cfg.rateLimit),
		RateBurst:      cfg.rateBurst,
		Logger:         cfg.logger.With().Str("component", "gateway").Logger(),
	})

	registry := game.NewRegistry(game.Options{
		Store:        store,
		Transport:    hub,
		Catalog:      cards,
		VoteTimeout:  cfg.voteTimeout,
		GameDuration: cfg.gameDuration,
		EscapeCodes:  cfg.escapeCodes,
		Logger:       cfg.logger.With().Str("component", "rooms").Logger(),
	})

	router := game.NewRouter(registry, store, cards, hub, cfg.logger.With().Str("component", "router").Logger())

	engine := game.NewEngine(registry, cfg.tick, cfg.logger.With().Str("component", "timer").Logger())

	cfg.prefix = strings.TrimSuffix(cfg.prefix, "/")

	mux := newRouter(cfg)

	registerSessionRoutes(cfg, mux, hub, router, store)

	srv := &http.Server{
		Addr:              net.JoinHostPort(cfg.bind, strconv.Itoa(cfg.port)),
		Handler:           mux,
		IdleTimeout:       10 * time.Minute,
		ReadHeaderTimeout: timeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return engine.Run(gctx)
	})

	g.Go(func() error {
		var err error

		cfg.logger.Info().Msgf("listening on %s://%s%s/", cfg.scheme(), srv.Addr, cfg.prefix)

		if cfg.tlsKey != "" && cfg.tlsCert != "" {
			err = srv.ListenAndServeTLS(cfg.tlsCert, cfg.tlsKey)
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()

		hub.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		return srv.Shutdown(shutdownCtx)
	})

	err = g.Wait()

	cfg.logger.Info().Int("rooms", registry.Len()).Msg("stopped")

	return err
}
