package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dkeye/Tutor/internal/config"
	"github.com/dkeye/Tutor/internal/core"
	"github.com/dkeye/Tutor/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type inlinePoster struct{}

func (inlinePoster) Post(fn func()) error { fn(); return nil }

type fullPoster struct{}

func (fullPoster) Post(func()) error { return errors.New("mailbox full") }

type fakeSession struct {
	joinErr  error
	leaveErr error
	joined   []domain.Purpose
	left     []domain.Purpose
	leaveAll int
	sent     []string
	sendOK   bool
}

func (s *fakeSession) Snapshot() core.SessionSnapshot {
	return core.SessionSnapshot{Role: "teacher", Identity: "alice", Channel: "room1", Initialized: true}
}

func (s *fakeSession) ChatEntries() []core.ChatEntry {
	return []core.ChatEntry{{Key: 7, Timestamp: "ts", Content: "hello"}}
}

func (s *fakeSession) SendChat(content string) bool {
	s.sent = append(s.sent, content)
	return s.sendOK
}

func (s *fakeSession) Join(p domain.Purpose) error {
	s.joined = append(s.joined, p)
	return s.joinErr
}

func (s *fakeSession) Leave(p domain.Purpose) error {
	s.left = append(s.left, p)
	return s.leaveErr
}

func (s *fakeSession) LeaveAll() { s.leaveAll++ }

func setup(sess Session, poster core.Poster) *gin.Engine {
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{Mode: "test", Secret: "secret"}
	return SetupRouter(context.Background(), cfg, sess, poster, nil)
}

func do(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestStateReturnsSnapshot(t *testing.T) {
	r := setup(&fakeSession{}, inlinePoster{})

	w := do(r, http.MethodGet, "/api/state", "")
	require.Equal(t, http.StatusOK, w.Code)

	var snap core.SessionSnapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	assert.Equal(t, "teacher", snap.Role)
	assert.Equal(t, "room1", snap.Channel)
	assert.True(t, snap.Initialized)
}

func TestClientTokenLivesInSession(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{Mode: "test", Secret: "secret"}
	r := SetupRouter(context.Background(), cfg, &fakeSession{}, inlinePoster{}, nil)
	var seen []string
	r.GET("/whoami", func(c *gin.Context) {
		seen = append(seen, c.GetString("client_token"))
		c.Status(http.StatusNoContent)
	})

	w := do(r, http.MethodGet, "/whoami", "")
	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "TutorSessions", cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.AddCookie(cookies[0])
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Empty(t, w.Result().Cookies())

	require.Len(t, seen, 2)
	assert.NotEmpty(t, seen[0])
	assert.Equal(t, seen[0], seen[1])
}

func TestChatLogAndSend(t *testing.T) {
	sess := &fakeSession{sendOK: true}
	r := setup(sess, inlinePoster{})

	w := do(r, http.MethodGet, "/api/chat", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"content":"hello"`)

	w = do(r, http.MethodPost, "/api/chat", `{"content":"hi there"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"hi there"}, sess.sent)

	w = do(r, http.MethodPost, "/api/chat", `{"content":""}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	sess.sendOK = false
	w = do(r, http.MethodPost, "/api/chat", `{"content":"lost"}`)
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestJoinMapsErrors(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code int
	}{
		{"accepted", nil, http.StatusAccepted},
		{"not initialized", domain.ErrNotInitialized, http.StatusConflict},
		{"primary not joined", domain.ErrPrimaryNotJoined, http.StatusConflict},
		{"not configured", domain.ErrPurposeNotConfigured, http.StatusNotFound},
		{"join failed", &domain.JoinFailedError{Purpose: domain.PurposeAvatar, Code: -2}, http.StatusBadGateway},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sess := &fakeSession{joinErr: tc.err}
			r := setup(sess, inlinePoster{})

			w := do(r, http.MethodPost, "/api/join/avatar", "")
			assert.Equal(t, tc.code, w.Code)
			assert.Equal(t, []domain.Purpose{domain.PurposeAvatar}, sess.joined)
		})
	}
}

func TestJoinRejectsUnknownPurpose(t *testing.T) {
	sess := &fakeSession{}
	r := setup(sess, inlinePoster{})

	w := do(r, http.MethodPost, "/api/join/webcam", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, sess.joined)
}

func TestLeaveRoutes(t *testing.T) {
	sess := &fakeSession{}
	r := setup(sess, inlinePoster{})

	assert.Equal(t, http.StatusAccepted, do(r, http.MethodPost, "/api/leave/screen_share", "").Code)
	assert.Equal(t, http.StatusAccepted, do(r, http.MethodPost, "/api/leave", "").Code)
	assert.Equal(t, []domain.Purpose{domain.PurposeScreenShare}, sess.left)
	assert.Equal(t, 1, sess.leaveAll)

	sess.leaveErr = domain.ErrNotFound
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodPost, "/api/leave/avatar", "").Code)
}

func TestBusyLoopAnswersUnavailable(t *testing.T) {
	r := setup(&fakeSession{}, fullPoster{})

	w := do(r, http.MethodGet, "/api/state", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	r := setup(&fakeSession{}, inlinePoster{})

	w := do(r, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "tutor_")
}
