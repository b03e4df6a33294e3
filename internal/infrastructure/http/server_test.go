package http

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finassist/finassist-go/internal/admin"
	"github.com/finassist/finassist-go/internal/audit"
	"github.com/finassist/finassist-go/internal/auth"
	"github.com/finassist/finassist-go/internal/domain/entities"
	"github.com/finassist/finassist-go/internal/domain/ports"
	"github.com/finassist/finassist-go/internal/domain/usecases"
	"github.com/finassist/finassist-go/internal/settings"
)

type memUsers struct {
	mu   sync.Mutex
	byID map[string]*entities.User
}

func newMemUsers() *memUsers { return &memUsers{byID: map[string]*entities.User{}} }

func (m *memUsers) CreateUser(ctx context.Context, u *entities.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *u
	m.byID[u.ID] = &cp
	return nil
}

func (m *memUsers) UserByID(ctx context.Context, id string) (*entities.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.byID[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, nil
}

func (m *memUsers) UserByUsername(ctx context.Context, username string) (*entities.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memUsers) UserByEmail(ctx context.Context, email string) (*entities.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memUsers) UserByResetToken(ctx context.Context, token string) (*entities.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if u.ResetToken != "" && u.ResetToken == token {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memUsers) UpdateUser(ctx context.Context, u *entities.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[u.ID]; !ok {
		return entities.NewError(entities.KindNotFound, "user not found")
	}
	cp := *u
	m.byID[u.ID] = &cp
	return nil
}

func (m *memUsers) ListUsers(ctx context.Context, f ports.UserFilter) ([]entities.User, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []entities.User
	for _, u := range m.byID {
		out = append(out, *u)
	}
	return out, len(out), nil
}

type memSessions struct {
	mu       sync.Mutex
	next     int
	sessions map[string]*entities.Session
	messages map[string][]entities.Message
}

func newMemSessions() *memSessions {
	return &memSessions{
		sessions: map[string]*entities.Session{},
		messages: map[string][]entities.Message{},
	}
}

func (m *memSessions) CreateSession(ctx context.Context, userID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next++
	id := fmt.Sprintf("sess-%d", m.next)
	now := time.Now()
	m.sessions[id] = &entities.Session{ID: id, UserID: userID, CreatedAt: now, LastActivity: now}
	return id, nil
}

func (m *memSessions) Session(ctx context.Context, id string) (*entities.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, nil
}

func (m *memSessions) AppendPair(ctx context.Context, id, userText, assistantText string, ts time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages[id] = append(m.messages[id],
		entities.Message{SessionID: id, Role: entities.RoleUser, Content: userText, Timestamp: ts},
		entities.Message{SessionID: id, Role: entities.RoleAssistant, Content: assistantText, Timestamp: ts.Add(time.Nanosecond)},
	)
	return nil
}

func (m *memSessions) History(ctx context.Context, id string, limit int) ([]entities.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msgs := m.messages[id]
	if len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return append([]entities.Message(nil), msgs...), nil
}

func (m *memSessions) Touch(ctx context.Context, id string) error { return nil }

func (m *memSessions) DeleteSession(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	delete(m.messages, id)
	return nil
}

func (m *memSessions) EvictInactive(ctx context.Context, cutoff time.Time) (int, error) {
	return 0, nil
}

func (m *memSessions) SessionsByUser(ctx context.Context, userID string, limit int) ([]entities.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []entities.Session
	for _, s := range m.sessions {
		if s.UserID == userID {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (m *memSessions) CountSessions(ctx context.Context, since time.Time) (int, error) {
	return len(m.sessions), nil
}

func (m *memSessions) CountMessages(ctx context.Context, since time.Time) (int, error) {
	n := 0
	for _, msgs := range m.messages {
		n += len(msgs)
	}
	return n, nil
}

type memDocs struct {
	mu   sync.Mutex
	byID map[string]*entities.DocumentRecord
}

func newMemDocs() *memDocs { return &memDocs{byID: map[string]*entities.DocumentRecord{}} }

func (m *memDocs) CreateDocument(ctx context.Context, d *entities.DocumentRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *d
	m.byID[d.ID] = &cp
	return nil
}

func (m *memDocs) Document(ctx context.Context, id string) (*entities.DocumentRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := m.byID[id]; ok {
		cp := *d
		return &cp, nil
	}
	return nil, nil
}

func (m *memDocs) DeleteDocument(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byID, id)
	return nil
}

func (m *memDocs) ListDocuments(ctx context.Context, f ports.DocumentFilter) ([]entities.DocumentRecord, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []entities.DocumentRecord
	for _, d := range m.byID {
		out = append(out, *d)
	}
	return out, len(out), nil
}

type memConfig struct {
	mu       sync.Mutex
	settings map[string]*entities.ConfigSetting
}

func (m *memConfig) AllSettings(ctx context.Context) ([]entities.ConfigSetting, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []entities.ConfigSetting
	for _, s := range m.settings {
		out = append(out, *s)
	}
	return out, nil
}

func (m *memConfig) Setting(ctx context.Context, name string) (*entities.ConfigSetting, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.settings[name]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, nil
}

func (m *memConfig) SaveSetting(ctx context.Context, name string, value interface{}, updatedBy string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.settings[name]
	if !ok {
		return entities.NewError(entities.KindNotFound, "setting not found")
	}
	s.Value = value
	s.UpdatedBy = updatedBy
	return nil
}

func (m *memConfig) SeedSetting(ctx context.Context, s entities.ConfigSetting) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.settings[s.Name]; !ok {
		cp := s
		m.settings[s.Name] = &cp
	}
	return nil
}

type memActivity struct {
	mu      sync.Mutex
	entries []entities.ActivityEntry
}

func (m *memActivity) AppendActivity(ctx context.Context, e *entities.ActivityEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, *e)
	return nil
}

func (m *memActivity) ListActivity(ctx context.Context, f ports.ActivityFilter) ([]entities.ActivityEntry, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []entities.ActivityEntry
	for _, e := range m.entries {
		if f.AdminID != "" && e.AdminID != f.AdminID {
			continue
		}
		if f.ResourceType != "" && e.ResourceType != f.ResourceType {
			continue
		}
		if f.ResourceID != "" && e.ResourceID != f.ResourceID {
			continue
		}
		out = append(out, e)
	}
	return out, len(out), nil
}

type nopMetrics struct{}

func (nopMetrics) RecordSample(ctx context.Context, s *entities.MetricSample) error { return nil }
func (nopMetrics) UsageSince(ctx context.Context, cutoff time.Time) (ports.UsageReport, error) {
	return ports.UsageReport{}, nil
}
func (nopMetrics) ErrorsSince(ctx context.Context, cutoff time.Time, limit int) ([]entities.MetricSample, error) {
	return nil, nil
}

type stubIndex struct{}

func (stubIndex) Upsert(ctx context.Context, chunks []entities.Chunk) error { return nil }
func (stubIndex) Search(ctx context.Context, vector []float32, k int, minScore float64) ([]entities.SearchHit, error) {
	return nil, nil
}
func (stubIndex) DeleteByDocument(ctx context.Context, documentID string) (int, error) {
	return 0, nil
}
func (stubIndex) Stats(ctx context.Context) (entities.IndexStats, error) {
	return entities.IndexStats{ChunksByType: map[string]int{}, RecentUploads: map[string]int{}}, nil
}
func (stubIndex) IsEmpty(ctx context.Context) bool { return true }

type stubEmbedder struct{}

func (stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{1, 0}, nil
}
func (stubEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = []float32{1, 0}
	}
	return out, nil
}

type stubLLM struct{ answer string }

func (l stubLLM) Generate(ctx context.Context, prompt string, opts ports.GenerationOptions) (string, error) {
	return l.answer, nil
}

type stubExtractor struct{}

func (stubExtractor) Extract(data []byte, fileType string) (string, error) {
	return string(data), nil
}
func (stubExtractor) SupportedTypes() []string { return []string{"pdf", "docx", "txt"} }

type lineSplitter struct{}

func (lineSplitter) Split(text string) ([]string, error) {
	return strings.Split(text, "\n"), nil
}

type harness struct {
	srv   *Server
	users *memUsers
	mgr   *settings.Manager
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	log := zerolog.Nop()

	users := newMemUsers()
	sessions := newMemSessions()
	docs := newMemDocs()
	index := stubIndex{}
	metrics := nopMetrics{}
	activity := &memActivity{}

	mgr, err := settings.NewManager(context.Background(), &memConfig{settings: map[string]*entities.ConfigSetting{}}, log)
	require.NoError(t, err)
	snap := mgr.Current

	authSvc := auth.NewService(users, snap, "test-secret", 4, log)
	auditLog := audit.NewLogger(activity, log)

	query := usecases.NewQueryUseCase(stubEmbedder{}, index, stubLLM{answer: "Cash flow is king."}, sessions, snap, log)
	ingest := usecases.NewIngestUseCase(stubExtractor{}, stubEmbedder{}, index, docs, snap,
		func(size, overlap int) ports.Splitter { return lineSplitter{} }, log)

	db, err := sql.Open("sqlite3", "file::memory:?cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	srv := NewServer(Options{
		Addr:           ":0",
		AllowedOrigins: "*",
		Debug:          true,
		Auth:           authSvc,
		Query:          query,
		Ingest:         ingest,
		Docs:           docs,
		Index:          index,
		Sessions:       sessions,
		Metrics:        metrics,
		Settings:       mgr,
		Audit:          auditLog,
		AdminUser:      admin.NewUserService(users, sessions, authSvc, auditLog, log),
		AdminDocs:      admin.NewDocumentService(docs, index, ingest, auditLog, log),
		Monitor:        admin.NewMonitorService(db, index, metrics, t.TempDir()),
		Analytics:      admin.NewAnalyticsService(users, sessions, docs, index),
		AdminCfg:       admin.NewConfigService(mgr, auditLog),
		Log:            log,
	})
	return &harness{srv: srv, users: users, mgr: mgr}
}

func (h *harness) upload(t *testing.T, token, filename string, data []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents/upload", &buf)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	h.srv.Router().ServeHTTP(rec, req)
	return rec
}

func (h *harness) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.srv.Router().ServeHTTP(rec, req)
	return rec
}

func (h *harness) registerAndLogin(t *testing.T, username string) string {
	t.Helper()
	rec := h.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"username": username,
		"email":    username + "@example.com",
		"password": "hunter2hunter2",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = h.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"username": username,
		"password": "hunter2hunter2",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "bearer", resp.TokenType)
	require.NotEmpty(t, resp.AccessToken)
	return resp.AccessToken
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) errorEnvelope {
	t.Helper()
	var env errorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func TestUnauthenticatedRequestsRejected(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodGet, "/api/v1/auth/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	env := decodeEnvelope(t, rec)
	assert.Equal(t, "AuthenticationError", env.Error)
	assert.NotEmpty(t, env.Details["request_id"])
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestRegisterLoginMe(t *testing.T) {
	h := newHarness(t)
	token := h.registerAndLogin(t, "alice")

	rec := h.do(t, http.MethodGet, "/api/v1/auth/me", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var me struct {
		Username string `json:"username"`
		Admin    bool   `json:"is_admin"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &me))
	assert.Equal(t, "alice", me.Username)
	assert.False(t, me.Admin)
}

func TestLoginWrongPassword(t *testing.T) {
	h := newHarness(t)
	h.registerAndLogin(t, "alice")

	rec := h.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"username": "alice",
		"password": "not-the-password",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestChatValidation(t *testing.T) {
	h := newHarness(t)
	token := h.registerAndLogin(t, "alice")

	rec := h.do(t, http.MethodPost, "/api/v1/chat", token, map[string]string{"query": "   "})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "ValidationError", decodeEnvelope(t, rec).Error)
}

func TestChatAnswersWithSession(t *testing.T) {
	h := newHarness(t)
	token := h.registerAndLogin(t, "alice")

	rec := h.do(t, http.MethodPost, "/api/v1/chat", token, map[string]string{
		"query": "What is cash flow?",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Response  string            `json:"response"`
		Sources   []entities.Source `json:"sources"`
		SessionID string            `json:"session_id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Cash flow is king.", resp.Response)
	assert.NotNil(t, resp.Sources)
	assert.Empty(t, resp.Sources)
	assert.NotEmpty(t, resp.SessionID)

	// Same session id comes back when the client pins it.
	rec = h.do(t, http.MethodPost, "/api/v1/chat", token, map[string]string{
		"query":      "And burn rate?",
		"session_id": resp.SessionID,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var second struct {
		SessionID string `json:"session_id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &second))
	assert.Equal(t, resp.SessionID, second.SessionID)
}

func TestAdminGate(t *testing.T) {
	h := newHarness(t)
	token := h.registerAndLogin(t, "alice")

	rec := h.do(t, http.MethodGet, "/api/v1/admin/users", token, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "AuthorizationError", decodeEnvelope(t, rec).Error)
}

func TestAdminSurface(t *testing.T) {
	h := newHarness(t)
	token := h.registerAndLogin(t, "root")
	promoteDirect(t, h, "root")

	rec := h.do(t, http.MethodGet, "/api/v1/admin/users", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = h.do(t, http.MethodGet, "/api/v1/admin/config", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var cfg struct {
		Settings []entities.ConfigSetting `json:"settings"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cfg))
	assert.NotEmpty(t, cfg.Settings)

	rec = h.do(t, http.MethodPut, "/api/v1/admin/config/top_k_chunks", token,
		map[string]interface{}{"value": 9})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = h.do(t, http.MethodGet, "/api/v1/admin/system/health", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = h.do(t, http.MethodGet, "/api/v1/admin/system/metrics", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var metrics admin.Metrics
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &metrics))
	assert.Positive(t, metrics.Goroutines)
}

func TestMustResetBlocksEverythingButPasswordChange(t *testing.T) {
	h := newHarness(t)
	token := h.registerAndLogin(t, "alice")

	u, err := h.users.UserByUsername(context.Background(), "alice")
	require.NoError(t, err)
	u.MustReset = true
	require.NoError(t, h.users.UpdateUser(context.Background(), u))

	rec := h.do(t, http.MethodPost, "/api/v1/chat", token, map[string]string{"query": "hi"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = h.do(t, http.MethodPost, "/api/v1/auth/change-password", token, map[string]string{
		"old_password": "hunter2hunter2",
		"new_password": "anothergoodpassword",
	})
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestUploadRequiresFileField(t *testing.T) {
	h := newHarness(t)
	token := h.registerAndLogin(t, "alice")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents/upload", strings.NewReader(""))
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "multipart/form-data; boundary=x")
	rec := httptest.NewRecorder()
	h.srv.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestForgotPasswordExposesTokenOnlyInDebug(t *testing.T) {
	h := newHarness(t)
	h.registerAndLogin(t, "alice")

	rec := h.do(t, http.MethodPost, "/api/v1/auth/forgot-password", "", map[string]string{
		"email": "alice@example.com",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp["reset_token"], "debug harness returns the token inline")

	// Unknown addresses get the same message and no token.
	rec = h.do(t, http.MethodPost, "/api/v1/auth/forgot-password", "", map[string]string{
		"email": "nobody@example.com",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var unknown map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &unknown))
	assert.Nil(t, unknown["reset_token"])
}

func TestUploadAcceptsFileExactlyAtLimit(t *testing.T) {
	h := newHarness(t)
	token := h.registerAndLogin(t, "alice")

	_, err := h.mgr.Update(context.Background(), "max_file_size_mb", 1, "test")
	require.NoError(t, err)
	limit := int(h.mgr.Current().MaxFileSizeBytes())

	rec := h.upload(t, token, "report.txt", bytes.Repeat([]byte("a"), limit))
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = h.upload(t, token, "report.txt", bytes.Repeat([]byte("a"), limit+1))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code, rec.Body.String())
}

func TestAdminUserActivityListsActionsOnUser(t *testing.T) {
	h := newHarness(t)
	adminToken := h.registerAndLogin(t, "root")
	promoteDirect(t, h, "root")
	h.registerAndLogin(t, "alice")

	alice, err := h.users.UserByUsername(context.Background(), "alice")
	require.NoError(t, err)
	root, err := h.users.UserByUsername(context.Background(), "root")
	require.NoError(t, err)

	rec := h.do(t, http.MethodPut, "/api/v1/admin/users/"+alice.ID+"/status", adminToken,
		map[string]bool{"is_active": false})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// The deactivation shows up under the target user, not the acting admin.
	rec = h.do(t, http.MethodGet, "/api/v1/admin/users/"+alice.ID+"/activity", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Activity []entities.ActivityEntry `json:"activity"`
		Total    int                      `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 1, resp.Total)
	assert.Equal(t, alice.ID, resp.Activity[0].ResourceID)
	assert.Equal(t, "root", resp.Activity[0].AdminUsername)

	rec = h.do(t, http.MethodGet, "/api/v1/admin/users/"+root.ID+"/activity", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Zero(t, resp.Total)
}

func TestDocumentListingPublic(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodGet, "/api/v1/documents", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = h.do(t, http.MethodGet, "/api/v1/documents/stats", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHealthEndpointPublic(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodGet, "/api/v1/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func promoteDirect(t *testing.T, h *harness, username string) {
	t.Helper()
	u, err := h.users.UserByUsername(context.Background(), username)
	require.NoError(t, err)
	require.NotNil(t, u)
	u.Admin = true
	require.NoError(t, h.users.UpdateUser(context.Background(), u))
}
