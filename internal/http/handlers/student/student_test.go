package student

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aanand-mishra/student-records/internal/storage/memory"
	"github.com/aanand-mishra/student-records/internal/storage/watch"
	"github.com/aanand-mishra/student-records/internal/types"
	"github.com/aanand-mishra/student-records/internal/validation"
)

var jane = types.Student{ID: "s1", StudentFields: types.StudentFields{
	RegistrationNumber: "A123",
	FullName:           "Jane Doe",
	Email:              "jane@x.com",
}}

func newRouter(t *testing.T) (*http.ServeMux, *memory.Store, *watch.Store) {
	t.Helper()
	mem := memory.New()
	mem.Seed(jane)
	store := watch.New(mem)
	v := validation.New()

	router := http.NewServeMux()
	router.HandleFunc("POST /api/students", New(store, v))
	router.HandleFunc("GET /api/students", GetList(store))
	router.HandleFunc("GET /api/students/{id}", GetByID(store))
	router.HandleFunc("PUT /api/students/{id}", Update(store, v))
	router.HandleFunc("GET /api/students/{id}/watch", Watch(store))
	return router, mem, store
}

func do(router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestNew(t *testing.T) {
	router, mem, _ := newRouter(t)
	mem.NewID = func() string { return "s2" }

	rec := do(router, http.MethodPost, "/api/students",
		`{"registrationNumber":"B456","fullName":"John Roe","email":"john@x.com"}`)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"id":"s2"}`, rec.Body.String())

	got, err := mem.GetStudentByID(context.Background(), "s2")
	require.NoError(t, err)
	assert.Equal(t, "John Roe", got.FullName)
}

func TestNew_Errors(t *testing.T) {
	router, _, _ := newRouter(t)

	tests := []struct {
		name   string
		body   string
		status int
		substr string
	}{
		{"empty body", ``, http.StatusBadRequest, "request body is empty"},
		{"malformed", `{"fullName":`, http.StatusBadRequest, "error"},
		{"invalid", `{"registrationNumber":"A1","fullName":"Jo","email":"x"}`, http.StatusUnprocessableEntity, "invalid email"},
		{"duplicate", `{"registrationNumber":"A123","fullName":"Jane Twin","email":"twin@x.com"}`, http.StatusConflict, "already in use"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(router, http.MethodPost, "/api/students", tt.body)
			assert.Equal(t, tt.status, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.substr)
		})
	}
}

func TestNew_ValidationFieldsInBody(t *testing.T) {
	router, _, _ := newRouter(t)

	rec := do(router, http.MethodPost, "/api/students", `{"registrationNumber":"A1","fullName":"Jane Doe","email":"jane@x.com"}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var body struct {
		Fields map[string]string `json:"fields"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, map[string]string{"registrationNumber": validation.MsgRegistrationNumber}, body.Fields)
}

func TestGetByID(t *testing.T) {
	router, _, _ := newRouter(t)

	rec := do(router, http.MethodGet, "/api/students/s1", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"id":"s1","registrationNumber":"A123","fullName":"Jane Doe","email":"jane@x.com"}`, rec.Body.String())

	rec = do(router, http.MethodGet, "/api/students/s404", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetList(t *testing.T) {
	router, _, _ := newRouter(t)

	rec := do(router, http.MethodGet, "/api/students", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	var students []types.Student
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &students))
	assert.Equal(t, []types.Student{jane}, students)
}

func TestUpdate(t *testing.T) {
	router, _, _ := newRouter(t)

	rec := do(router, http.MethodPut, "/api/students/s1",
		`{"registrationNumber":"A123","fullName":"Jane Smith","email":"smith@x.com"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"id":"s1","registrationNumber":"A123","fullName":"Jane Smith","email":"smith@x.com"}`, rec.Body.String())

	rec = do(router, http.MethodPut, "/api/students/s404",
		`{"registrationNumber":"A999","fullName":"Nobody Here","email":"no@x.com"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(router, http.MethodPut, "/api/students/s1", `{"registrationNumber":"A1"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestWatch(t *testing.T) {
	router, _, store := newRouter(t)
	srv := httptest.NewServer(router)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/students/s1/watch", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	events := make(chan snapshotEvent, 8)
	go func() {
		defer close(events)
		sc := bufio.NewScanner(resp.Body)
		for sc.Scan() {
			line := sc.Text()
			if data, ok := strings.CutPrefix(line, "data: "); ok {
				var ev snapshotEvent
				if json.Unmarshal([]byte(data), &ev) == nil {
					events <- ev
				}
			}
		}
	}()

	nextEvent := func() snapshotEvent {
		select {
		case ev := <-events:
			return ev
		case <-ctx.Done():
			t.Fatal("timed out waiting for event")
			return snapshotEvent{}
		}
	}

	assert.Equal(t, "pending", nextEvent().Status)
	ev := nextEvent()
	assert.Equal(t, "found", ev.Status)
	require.NotNil(t, ev.Student)
	assert.Equal(t, "Jane Doe", ev.Student.FullName)

	edited := jane.Fields()
	edited.FullName = "Jane Smith"
	require.NoError(t, store.UpdateStudentByID(ctx, "s1", edited))

	ev = nextEvent()
	require.NotNil(t, ev.Student)
	assert.Equal(t, "Jane Smith", ev.Student.FullName)
}
