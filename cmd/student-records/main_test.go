package main

import (
	"bufio"
	"context"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aanand-mishra/student-records/internal/config"
	"github.com/aanand-mishra/student-records/internal/storage/memory"
	"github.com/aanand-mishra/student-records/internal/storage/watch"
	"github.com/aanand-mishra/student-records/internal/types"
	"github.com/aanand-mishra/student-records/internal/validation"
)

func TestRouter_CreateThenEdit(t *testing.T) {
	mem := memory.New()
	mem.NewID = func() string { return "s1" }
	cfg := &config.Config{Forms: config.Forms{LoadTimeout: time.Second}}
	router := newRouter(watch.New(mem), validation.New(), cfg)

	send := func(method, path string, form url.Values) *httptest.ResponseRecorder {
		var body *strings.Reader
		if form != nil {
			body = strings.NewReader(form.Encode())
		} else {
			body = strings.NewReader("")
		}
		req := httptest.NewRequest(method, path, body)
		if form != nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	rec := send(http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/students", rec.Header().Get("Location"))

	rec = send(http.MethodPost, "/students/new", url.Values{
		"registrationNumber": {"A123"},
		"fullName":           {"Jane Doe"},
		"email":              {"jane@x.com"},
	})
	require.Equal(t, http.StatusSeeOther, rec.Code)

	rec = send(http.MethodGet, "/students/s1/edit", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `value="Jane Doe"`)

	rec = send(http.MethodGet, "/api/students/s1", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"registrationNumber":"A123"`)
}

func TestServer_ShutdownEndsWatchStreams(t *testing.T) {
	mem := memory.New()
	mem.Seed(types.Student{ID: "s1", StudentFields: types.StudentFields{
		RegistrationNumber: "A123",
		FullName:           "Jane Doe",
		Email:              "jane@x.com",
	}})
	cfg := &config.Config{Forms: config.Forms{LoadTimeout: time.Second}}
	server := newServer(cfg, newRouter(watch.New(mem), validation.New(), cfg))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	served := make(chan error, 1)
	go func() { served <- server.Serve(ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/api/students/s1/watch")
	require.NoError(t, err)
	defer resp.Body.Close()

	line, err := bufio.NewReader(resp.Body).ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "event: snapshot\n", line)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, server.Shutdown(ctx))
	assert.ErrorIs(t, <-served, http.ErrServerClosed)
}

func TestSetupLogger(t *testing.T) {
	for _, env := range []string{"dev", "staging", "prod", "other"} {
		assert.NotNil(t, setupLogger(env), env)
	}
	ctx := context.Background()
	assert.False(t, setupLogger("prod").Enabled(ctx, slog.LevelDebug), "prod drops debug")
	assert.True(t, setupLogger("dev").Enabled(ctx, slog.LevelDebug))
}
