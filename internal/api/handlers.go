package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"omnichat/internal/auth"
	"omnichat/internal/catalog"
	"omnichat/internal/models"
	"omnichat/internal/service/credentials"
	"omnichat/internal/storage"
	"omnichat/internal/worker"
)

// Orchestrator is the slice of the generation engine the HTTP layer needs.
type Orchestrator interface {
	Submit(ctx context.Context, req worker.GenerateRequest) (*models.Conversation, error)
	Cancel(ctx context.Context, userID, conversationID int64) error
	Active(conversationID int64) bool
	LiveSnapshot(conversationID int64) (worker.Snapshot, bool)
}

// Handler wires HTTP routes to the orchestration core.
type Handler struct {
	store   *storage.Store
	auth    *auth.Service
	creds   *credentials.Service
	catalog *catalog.Catalog
	engine  Orchestrator
}

func NewHandler(store *storage.Store, authService *auth.Service, creds *credentials.Service, cat *catalog.Catalog, engine Orchestrator) *Handler {
	return &Handler{
		store:   store,
		auth:    authService,
		creds:   creds,
		catalog: cat,
		engine:  engine,
	}
}

// RegisterRoutes attaches all HTTP routes to the router.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api")
	api.Use(h.auth.Middleware())

	api.POST("/chat", h.triggerChat)
	api.POST("/chat/:conversation_id/cancel", h.cancelChat)
	api.GET("/chat/:conversation_id/live", h.liveChat)

	api.GET("/conversations", h.listConversations)
	api.GET("/conversations/:conversation_id/messages", h.getMessages)
	api.PUT("/conversations/:conversation_id/title", h.renameConversation)

	api.GET("/credentials", h.listCredentials)
	api.PUT("/credentials", h.putCredential)
	api.DELETE("/credentials/:vendor", h.deleteCredential)
	api.POST("/credentials/validate", h.validateCredential)
	api.POST("/credentials/validate-batch", h.validateBatch)

	api.GET("/models", h.listModels)

	api.GET("/rules", h.listRules)
	api.POST("/rules", h.createRule)
	api.DELETE("/rules/:name", h.deleteRule)

	api.GET("/usage", h.listUsage)
}

func (h *Handler) authorizedUserID(c *gin.Context) (int64, bool) {
	userID, ok := auth.UserIDFromContext(c)
	if !ok || userID <= 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
		return 0, false
	}
	return userID, true
}

func conversationParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("conversation_id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid conversation id"})
		return 0, false
	}
	return id, true
}

// statusForError maps the error taxonomy to transport codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, models.ErrValidation), errors.Is(err, models.ErrUnsupportedCapability):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrAuth):
		return http.StatusUnauthorized
	case errors.Is(err, models.ErrNotFound), errors.Is(err, models.ErrModelNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrGenerationConflict):
		return http.StatusConflict
	case errors.Is(err, models.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, models.ErrProvider):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	c.JSON(statusForError(err), gin.H{"error": err.Error()})
}

type chatRequest struct {
	ConversationID  int64               `json:"conversation_id"`
	ModelID         string              `json:"model_id"`
	Message         string              `json:"message"`
	Attachments     []models.Attachment `json:"attachments"`
	WebSearch       bool                `json:"web_search"`
	ReasoningEffort string              `json:"reasoning_effort"`
	SystemPrompt    string              `json:"system_prompt"`
}

// triggerChat admits a generation turn. The response is a 202 acknowledgment;
// the turn itself runs detached and its outcome lands in the message rows.
func (h *Handler) triggerChat(c *gin.Context) {
	userID, ok := h.authorizedUserID(c)
	if !ok {
		return
	}
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if strings.TrimSpace(req.ModelID) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "model_id is required"})
		return
	}
	conv, err := h.engine.Submit(c.Request.Context(), worker.GenerateRequest{
		UserID:          userID,
		ConversationID:  req.ConversationID,
		ModelID:         req.ModelID,
		Message:         req.Message,
		Attachments:     req.Attachments,
		WebSearch:       req.WebSearch,
		ReasoningEffort: req.ReasoningEffort,
		SystemPrompt:    req.SystemPrompt,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{
		"ok":              true,
		"conversation_id": conv.ID,
	})
}

func (h *Handler) cancelChat(c *gin.Context) {
	userID, ok := h.authorizedUserID(c)
	if !ok {
		return
	}
	conversationID, ok := conversationParam(c)
	if !ok {
		return
	}
	if err := h.engine.Cancel(c.Request.Context(), userID, conversationID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// liveChat exposes the in-flight partial so a reconnecting client can catch
// up before the message row finalizes.
func (h *Handler) liveChat(c *gin.Context) {
	userID, ok := h.authorizedUserID(c)
	if !ok {
		return
	}
	conversationID, ok := conversationParam(c)
	if !ok {
		return
	}
	if _, err := h.store.GetConversation(c.Request.Context(), userID, conversationID); err != nil {
		respondError(c, err)
		return
	}
	snap, found := h.engine.LiveSnapshot(conversationID)
	if !found {
		c.JSON(http.StatusOK, gin.H{"generating": h.engine.Active(conversationID)})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"generating": true,
		"snapshot":   snap,
	})
}

func (h *Handler) listConversations(c *gin.Context) {
	userID, ok := h.authorizedUserID(c)
	if !ok {
		return
	}
	convs, err := h.store.ListConversations(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	if convs == nil {
		convs = make([]models.Conversation, 0)
	}
	c.JSON(http.StatusOK, gin.H{"conversations": convs})
}

func (h *Handler) getMessages(c *gin.Context) {
	userID, ok := h.authorizedUserID(c)
	if !ok {
		return
	}
	conversationID, ok := conversationParam(c)
	if !ok {
		return
	}
	if _, err := h.store.GetConversation(c.Request.Context(), userID, conversationID); err != nil {
		respondError(c, err)
		return
	}
	msgs, err := h.store.GetMessages(c.Request.Context(), conversationID)
	if err != nil {
		respondError(c, err)
		return
	}
	if msgs == nil {
		msgs = make([]*models.Message, 0)
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

type renameRequest struct {
	Title string `json:"title"`
}

func (h *Handler) renameConversation(c *gin.Context) {
	userID, ok := h.authorizedUserID(c)
	if !ok {
		return
	}
	conversationID, ok := conversationParam(c)
	if !ok {
		return
	}
	var req renameRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Title) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "title is required"})
		return
	}
	if err := h.store.UpdateTitle(c.Request.Context(), userID, conversationID, strings.TrimSpace(req.Title)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

type credentialRequest struct {
	Vendor       string   `json:"vendor"`
	Secret       string   `json:"secret"`
	DefaultModel string   `json:"default_model"`
	CustomModels []string `json:"custom_models"`
}

func (h *Handler) putCredential(c *gin.Context) {
	userID, ok := h.authorizedUserID(c)
	if !ok {
		return
	}
	var req credentialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	vendor, err := models.ParseVendor(req.Vendor)
	if err != nil {
		respondError(c, err)
		return
	}
	if err := h.creds.Save(c.Request.Context(), userID, vendor, req.Secret, req.DefaultModel, req.CustomModels); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handler) listCredentials(c *gin.Context) {
	userID, ok := h.authorizedUserID(c)
	if !ok {
		return
	}
	creds, err := h.creds.MaskedList(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"credentials": creds})
}

func (h *Handler) deleteCredential(c *gin.Context) {
	userID, ok := h.authorizedUserID(c)
	if !ok {
		return
	}
	vendor, err := models.ParseVendor(c.Param("vendor"))
	if err != nil {
		respondError(c, err)
		return
	}
	if err := h.store.DeleteCredential(c.Request.Context(), userID, vendor); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

type validateRequest struct {
	Vendor string `json:"vendor"`
	Secret string `json:"secret"`
}

// validateCredential probes a key. With a secret in the body the probe runs
// against it directly; without one the stored credential is validated and its
// status persisted.
func (h *Handler) validateCredential(c *gin.Context) {
	userID, ok := h.authorizedUserID(c)
	if !ok {
		return
	}
	var req validateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	vendor, err := models.ParseVendor(req.Vendor)
	if err != nil {
		respondError(c, err)
		return
	}
	if req.Secret != "" {
		c.JSON(http.StatusOK, h.creds.Validate(c.Request.Context(), vendor, req.Secret))
		return
	}
	result, err := h.creds.ValidateStored(c.Request.Context(), userID, vendor)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type validateBatchRequest struct {
	Items []credentials.BatchItem `json:"items"`
}

func (h *Handler) validateBatch(c *gin.Context) {
	if _, ok := h.authorizedUserID(c); !ok {
		return
	}
	var req validateBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.Items) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "items are required"})
		return
	}
	for _, item := range req.Items {
		if _, err := models.ParseVendor(string(item.Vendor)); err != nil {
			respondError(c, err)
			return
		}
	}
	results, summary := h.creds.ValidateBatch(c.Request.Context(), req.Items)
	c.JSON(http.StatusOK, gin.H{
		"results": results,
		"summary": summary,
	})
}

func (h *Handler) listModels(c *gin.Context) {
	if _, ok := h.authorizedUserID(c); !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"models": h.catalog.List()})
}

type ruleRequest struct {
	Name        string `json:"name"`
	Content     string `json:"content"`
	AlwaysApply bool   `json:"always_apply"`
}

func (h *Handler) createRule(c *gin.Context) {
	userID, ok := h.authorizedUserID(c)
	if !ok {
		return
	}
	var req ruleRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Content) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name and content are required"})
		return
	}
	rule, err := h.store.CreateRule(c.Request.Context(), &models.Rule{
		UserID:      userID,
		Name:        strings.TrimSpace(req.Name),
		Content:     req.Content,
		AlwaysApply: req.AlwaysApply,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, rule)
}

func (h *Handler) listRules(c *gin.Context) {
	userID, ok := h.authorizedUserID(c)
	if !ok {
		return
	}
	rules, err := h.store.ListRules(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	if rules == nil {
		rules = make([]models.Rule, 0)
	}
	c.JSON(http.StatusOK, gin.H{"rules": rules})
}

func (h *Handler) deleteRule(c *gin.Context) {
	userID, ok := h.authorizedUserID(c)
	if !ok {
		return
	}
	name := strings.TrimSpace(c.Param("name"))
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "rule name is required"})
		return
	}
	if err := h.store.DeleteRule(c.Request.Context(), userID, name); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handler) listUsage(c *gin.Context) {
	userID, ok := h.authorizedUserID(c)
	if !ok {
		return
	}
	limit := 100
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 1000 {
			limit = parsed
		}
	}
	records, err := h.store.ListUsage(c.Request.Context(), userID, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	if records == nil {
		records = make([]models.UsageRecord, 0)
	}
	c.JSON(http.StatusOK, gin.H{"usage": records})
}
