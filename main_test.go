package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Seednode/escaperoom/internal/session"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		bind:         "127.0.0.1",
		catalog:      "./data/answers.csv",
		escapeCodes:  []string{"1984"},
		gameDuration: 20 * time.Minute,
		port:         8080,
		rateBurst:    20,
		rateLimit:    10,
		tick:         time.Second,
		voteTimeout:  30 * time.Second,
		logger:       zerolog.Nop(),
	}
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"cert without key", func(c *Config) { c.tlsCert = "cert.pem" }, "--tls-cert and --tls-key"},
		{"port too high", func(c *Config) { c.port = 70000 }, "invalid port"},
		{"no catalog", func(c *Config) { c.catalog = "" }, "--catalog"},
		{"zero tick", func(c *Config) { c.tick = 0 }, "tick"},
		{"zero vote timeout", func(c *Config) { c.voteTimeout = 0 }, "vote timeout"},
		{"zero game duration", func(c *Config) { c.gameDuration = 0 }, "game duration"},
		{"zero burst", func(c *Config) { c.rateBurst = 0 }, "rate limit"},
		{"no escape codes", func(c *Config) { c.escapeCodes = nil }, "--escape-codes"},
		{"blank escape code", func(c *Config) { c.escapeCodes = []string{"1984", " "} }, "empty codes"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestScheme(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	assert.Equal(t, "http", cfg.scheme())

	cfg.tlsCert, cfg.tlsKey = "cert.pem", "key.pem"
	assert.Equal(t, "https", cfg.scheme())
}

func TestEnvironmentFillsFlags(t *testing.T) {
	t.Setenv("ESCAPEROOM_PORT", "9090")
	t.Setenv("ESCAPEROOM_VOTE_TIMEOUT", "45s")
	t.Setenv("ESCAPEROOM_ESCAPE_CODES", "red,green")

	cfg := &Config{}
	newCmd(cfg)

	assert.Equal(t, 9090, cfg.port)
	assert.Equal(t, 45*time.Second, cfg.voteTimeout)
	assert.Equal(t, []string{"red", "green"}, cfg.escapeCodes)
	assert.Equal(t, time.Second, cfg.tick)
}

func TestSessionCommands(t *testing.T) {
	t.Parallel()

	database := filepath.Join(t.TempDir(), "db", "sessions.db")
	ctx := context.Background()

	var out bytes.Buffer
	cmd := newCmd(&Config{})
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"session", "create", "--name", "Friday", "--mode", "escape", "--closed", "--database", database})
	require.NoError(t, cmd.ExecuteContext(ctx))

	key := strings.TrimSpace(out.String())
	require.NotEmpty(t, key)

	store, err := openStore(ctx, database)
	require.NoError(t, err)
	record, err := store.FindSessionByKey(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "Friday", record.Name)
	assert.Equal(t, session.ModeEscape, record.Mode)
	assert.False(t, record.Open)
	require.NoError(t, store.Close())

	out.Reset()
	cmd = newCmd(&Config{})
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"session", "open", key, "--database", database})
	require.NoError(t, cmd.ExecuteContext(ctx))
	assert.Contains(t, out.String(), "is open")

	store, err = openStore(ctx, database)
	require.NoError(t, err)
	defer store.Close()
	record, err = store.FindSessionByKey(ctx, key)
	require.NoError(t, err)
	assert.True(t, record.Open)
}

func TestSessionCreateRejectsUnknownMode(t *testing.T) {
	t.Parallel()

	cmd := newCmd(&Config{})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"session", "create", "--name", "x", "--mode", "racing", "--database", filepath.Join(t.TempDir(), "s.db")})

	assert.ErrorIs(t, cmd.ExecuteContext(context.Background()), session.ErrInvalid)
}

func TestHTTPHandlers(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	srv := httptest.NewServer(newRouter(cfg))
	t.Cleanup(srv.Close)

	tests := []struct {
		path string
		want string
	}{
		{"/healthz", "Ok\n"},
		{"/version", "escaperoom v" + releaseVersion + "\n"},
	}
	for _, tt := range tests {
		resp, err := http.Get(srv.URL + tt.path)
		require.NoError(t, err)

		var body bytes.Buffer
		_, err = body.ReadFrom(resp.Body)
		require.NoError(t, err)
		resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode, tt.path)
		assert.Equal(t, tt.want, body.String(), tt.path)
		assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
	}

	resp, err := http.Get(srv.URL + "/?session=%3Cb%3Ex%3C%2Fb%3E")
	require.NoError(t, err)
	var body bytes.Buffer
	_, _ = body.ReadFrom(resp.Body)
	resp.Body.Close()
	assert.Contains(t, body.String(), "&lt;b&gt;x&lt;/b&gt;")
}

func TestQRCode(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, err := openStore(ctx, filepath.Join(t.TempDir(), "s.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	record, err := store.CreateSession(ctx, session.Record{Name: "qr"})
	require.NoError(t, err)

	cfg := validConfig()
	mux := newRouter(cfg)
	mux.GET("/session/:key/qr", serveQR(cfg, store))

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/session/"+record.Key+"/qr", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG")))

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/session/missing/qr", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestJoinURL(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.prefix = "/games"

	r := httptest.NewRequest(http.MethodGet, "http://play.example.com/games/session/k/qr", nil)
	assert.Equal(t, "http://play.example.com/games/?session=k", joinURL(cfg, r, "k"))

	r.Header.Set("X-Forwarded-Proto", "https")
	assert.Equal(t, "https://play.example.com/games/?session=k", joinURL(cfg, r, "k"))
}

func TestHumanReadableSize(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "999 B", humanReadableSize(999))
	assert.Equal(t, "1.5 kB", humanReadableSize(1500))
	assert.Equal(t, "2.0 MB", humanReadableSize(2_000_000))
}
