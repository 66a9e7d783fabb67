package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"omnichat/internal/catalog"
	"omnichat/internal/config"
	"omnichat/internal/models"
	"omnichat/internal/service/credentials"
	"omnichat/internal/storage"
	"omnichat/internal/worker"

	_ "github.com/mattn/go-sqlite3"
)

const testUserID int64 = 1

type fakeOrchestrator struct {
	submitConv *models.Conversation
	submitErr  error
	cancelErr  error
	cancelled  []int64
}

func (f *fakeOrchestrator) Submit(ctx context.Context, req worker.GenerateRequest) (*models.Conversation, error) {
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	return f.submitConv, nil
}

func (f *fakeOrchestrator) Cancel(ctx context.Context, userID, conversationID int64) error {
	if f.cancelErr != nil {
		return f.cancelErr
	}
	f.cancelled = append(f.cancelled, conversationID)
	return nil
}

func (f *fakeOrchestrator) Active(conversationID int64) bool { return false }

func (f *fakeOrchestrator) LiveSnapshot(conversationID int64) (worker.Snapshot, bool) {
	return worker.Snapshot{}, false
}

// newTestRouter registers the handler routes behind a stub identity
// middleware so tests skip the redis-backed token exchange.
func newTestRouter(t *testing.T, engine Orchestrator) (*gin.Engine, *storage.Store, *Handler) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := storage.Migrate(db, "sqlite3"); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	store := storage.NewStore(db, "sqlite3")

	t.Setenv("OMNICHAT_SECRET_KEY", strings.Repeat("s", 32))
	creds, err := credentials.NewService(store, &config.Config{})
	if err != nil {
		t.Fatalf("init credentials: %v", err)
	}

	h := NewHandler(store, nil, creds, catalog.New(), engine)

	router := gin.New()
	api := router.Group("/api")
	api.Use(func(c *gin.Context) {
		c.Set("auth_user_id", testUserID)
		c.Next()
	})
	api.POST("/chat", h.triggerChat)
	api.POST("/chat/:conversation_id/cancel", h.cancelChat)
	api.GET("/chat/:conversation_id/live", h.liveChat)
	api.GET("/conversations", h.listConversations)
	api.GET("/conversations/:conversation_id/messages", h.getMessages)
	api.PUT("/conversations/:conversation_id/title", h.renameConversation)
	api.GET("/credentials", h.listCredentials)
	api.PUT("/credentials", h.putCredential)
	api.DELETE("/credentials/:vendor", h.deleteCredential)
	api.GET("/models", h.listModels)
	api.GET("/rules", h.listRules)
	api.POST("/rules", h.createRule)
	api.DELETE("/rules/:name", h.deleteRule)
	api.GET("/usage", h.listUsage)
	return router, store, h
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), out); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
}

func TestTriggerChatAccepted(t *testing.T) {
	fake := &fakeOrchestrator{submitConv: &models.Conversation{ID: 42}}
	router, _, _ := newTestRouter(t, fake)

	w := doJSON(t, router, http.MethodPost, "/api/chat", map[string]any{
		"model_id": "gpt-4o-mini",
		"message":  "hello",
	})
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
	var body struct {
		OK             bool  `json:"ok"`
		ConversationID int64 `json:"conversation_id"`
	}
	decodeBody(t, w, &body)
	if !body.OK || body.ConversationID != 42 {
		t.Fatalf("body = %+v", body)
	}
}

func TestTriggerChatErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{models.ErrGenerationConflict, http.StatusConflict},
		{models.ErrModelNotFound, http.StatusNotFound},
		{models.ErrUnsupportedCapability, http.StatusBadRequest},
		{models.ErrAuth, http.StatusUnauthorized},
		{models.ErrProvider, http.StatusBadGateway},
	}
	for _, tc := range cases {
		fake := &fakeOrchestrator{submitErr: tc.err}
		router, _, _ := newTestRouter(t, fake)

		w := doJSON(t, router, http.MethodPost, "/api/chat", map[string]any{
			"model_id": "gpt-4o-mini",
			"message":  "hello",
		})
		if w.Code != tc.code {
			t.Errorf("err %v: status = %d, want %d", tc.err, w.Code, tc.code)
		}
	}
}

func TestTriggerChatRequiresModelID(t *testing.T) {
	router, _, _ := newTestRouter(t, &fakeOrchestrator{})

	w := doJSON(t, router, http.MethodPost, "/api/chat", map[string]any{"message": "hi"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestCancelChat(t *testing.T) {
	fake := &fakeOrchestrator{}
	router, _, _ := newTestRouter(t, fake)

	w := doJSON(t, router, http.MethodPost, "/api/chat/7/cancel", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
	if len(fake.cancelled) != 1 || fake.cancelled[0] != 7 {
		t.Fatalf("cancelled = %v", fake.cancelled)
	}

	w = doJSON(t, router, http.MethodPost, "/api/chat/abc/cancel", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("invalid id status = %d", w.Code)
	}
}

func TestConversationAndMessageReads(t *testing.T) {
	router, store, _ := newTestRouter(t, &fakeOrchestrator{})
	ctx := context.Background()

	conv, err := store.CreateConversation(ctx, testUserID, models.VendorGemini, "gemini-2.0-flash", "")
	if err != nil {
		t.Fatalf("create conversation: %v", err)
	}
	if _, err := store.AppendUserMessage(ctx, &models.Message{
		ConversationID: conv.ID, UserID: testUserID, Role: models.RoleUser, Content: "hi",
	}); err != nil {
		t.Fatalf("append message: %v", err)
	}

	w := doJSON(t, router, http.MethodGet, "/api/conversations", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d", w.Code)
	}
	var listBody struct {
		Conversations []models.Conversation `json:"conversations"`
	}
	decodeBody(t, w, &listBody)
	if len(listBody.Conversations) != 1 {
		t.Fatalf("conversations = %+v", listBody.Conversations)
	}

	w = doJSON(t, router, http.MethodGet, "/api/conversations/1/messages", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("messages status = %d", w.Code)
	}
	var msgBody struct {
		Messages []models.Message `json:"messages"`
	}
	decodeBody(t, w, &msgBody)
	if len(msgBody.Messages) != 1 || msgBody.Messages[0].Content != "hi" {
		t.Fatalf("messages = %+v", msgBody.Messages)
	}

	// Foreign conversations read as missing.
	w = doJSON(t, router, http.MethodGet, "/api/conversations/999/messages", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("missing conversation status = %d", w.Code)
	}
}

func TestCredentialRoundtripMasksSecret(t *testing.T) {
	router, _, _ := newTestRouter(t, &fakeOrchestrator{})

	w := doJSON(t, router, http.MethodPut, "/api/credentials", map[string]any{
		"vendor":        "openai",
		"secret":        "sk-verysecretvalue99",
		"default_model": "gpt-4o-mini",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("put status = %d body=%s", w.Code, w.Body.String())
	}

	w = doJSON(t, router, http.MethodGet, "/api/credentials", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	var body struct {
		Credentials []struct {
			Vendor string `json:"vendor"`
			Secret string `json:"secret"`
			Status string `json:"status"`
		} `json:"credentials"`
	}
	decodeBody(t, w, &body)
	if len(body.Credentials) != 1 {
		t.Fatalf("credentials = %+v", body.Credentials)
	}
	got := body.Credentials[0]
	if got.Vendor != "openai" || got.Status != "pending" {
		t.Fatalf("credential = %+v", got)
	}
	if strings.Contains(got.Secret, "verysecret") {
		t.Fatalf("secret leaked unmasked: %q", got.Secret)
	}
	if !strings.HasPrefix(got.Secret, "sk-v") || !strings.HasSuffix(got.Secret, "ue99") {
		t.Fatalf("mask shape unexpected: %q", got.Secret)
	}

	w = doJSON(t, router, http.MethodDelete, "/api/credentials/openai", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("delete status = %d", w.Code)
	}
	w = doJSON(t, router, http.MethodDelete, "/api/credentials/aol", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("unknown vendor status = %d", w.Code)
	}
}

func TestModelsEndpoint(t *testing.T) {
	router, _, _ := newTestRouter(t, &fakeOrchestrator{})

	w := doJSON(t, router, http.MethodGet, "/api/models", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var body struct {
		Models []models.ModelDescriptor `json:"models"`
	}
	decodeBody(t, w, &body)
	if len(body.Models) == 0 {
		t.Fatal("empty model listing")
	}
}

func TestRuleEndpoints(t *testing.T) {
	router, _, _ := newTestRouter(t, &fakeOrchestrator{})

	w := doJSON(t, router, http.MethodPost, "/api/rules", map[string]any{
		"name":         "tone",
		"content":      "Be concise.",
		"always_apply": true,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d body=%s", w.Code, w.Body.String())
	}

	w = doJSON(t, router, http.MethodGet, "/api/rules", nil)
	var body struct {
		Rules []models.Rule `json:"rules"`
	}
	decodeBody(t, w, &body)
	if len(body.Rules) != 1 || body.Rules[0].Name != "tone" {
		t.Fatalf("rules = %+v", body.Rules)
	}

	w = doJSON(t, router, http.MethodDelete, "/api/rules/tone", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("delete status = %d", w.Code)
	}

	w = doJSON(t, router, http.MethodPost, "/api/rules", map[string]any{"name": " ", "content": ""})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("blank rule status = %d", w.Code)
	}
}

func TestLiveChatWithoutSnapshot(t *testing.T) {
	router, store, _ := newTestRouter(t, &fakeOrchestrator{})

	conv, err := store.CreateConversation(context.Background(), testUserID, models.VendorOpenAI, "gpt-4o", "")
	if err != nil {
		t.Fatalf("create conversation: %v", err)
	}

	w := doJSON(t, router, http.MethodGet, "/api/chat/1/live", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
	var body struct {
		Generating bool `json:"generating"`
	}
	decodeBody(t, w, &body)
	if body.Generating {
		t.Fatalf("conversation %d should not be generating", conv.ID)
	}
}
