package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/brandcraft/brandcraft/internal/auth"
	"github.com/brandcraft/brandcraft/internal/billing"
	"github.com/brandcraft/brandcraft/internal/brand"
	"github.com/brandcraft/brandcraft/internal/credits"
	"github.com/brandcraft/brandcraft/internal/router"
	"github.com/brandcraft/brandcraft/internal/task"
	"github.com/brandcraft/brandcraft/internal/worker"
	"github.com/brandcraft/brandcraft/pkg/ratelimit"
)

type Handler struct {
	router   *router.Router
	credits  *credits.Manager
	billing  billing.Store
	brands   brand.Store
	limiter  *ratelimit.Limiter
	jobs     *worker.Queue
	validate *validator.Validate
	log      *zap.Logger
}

func NewHandler(
	r *router.Router,
	cm *credits.Manager,
	bs billing.Store,
	brands brand.Store,
	limiter *ratelimit.Limiter,
	jobs *worker.Queue,
	log *zap.Logger,
) *Handler {
	return &Handler{
		router:   r,
		credits:  cm,
		billing:  bs,
		brands:   brands,
		limiter:  limiter,
		jobs:     jobs,
		validate: validator.New(),
		log:      log,
	}
}

func (h *Handler) HandleGenerateName(w http.ResponseWriter, r *http.Request) {
	var req GenerateNameRequest
	userID, ok := h.prepare(w, r, &req)
	if !ok {
		return
	}
	bc := h.loadContext(r.Context(), userID, req.ContextID)
	h.execute(w, r, userID, task.BrandNames, brand.BrandNamePrompt(req.Vibe, bc))
}

func (h *Handler) HandleGenerateContent(w http.ResponseWriter, r *http.Request) {
	var req GenerateContentRequest
	userID, ok := h.prepare(w, r, &req)
	if !ok {
		return
	}
	bc := h.loadContext(r.Context(), userID, req.ContextID)
	prompt, err := brand.ContentPrompt(req.ContentType, bc)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "")
		return
	}
	h.execute(w, r, userID, task.Content, prompt)
}

func (h *Handler) HandleGenerateLogo(w http.ResponseWriter, r *http.Request) {
	var req GenerateLogoRequest
	userID, ok := h.prepare(w, r, &req)
	if !ok {
		return
	}
	bc := h.loadContext(r.Context(), userID, req.ContextID)
	h.execute(w, r, userID, task.Logo, brand.LogoPrompt(req.Prompt, bc))
}

func (h *Handler) HandleSentiment(w http.ResponseWriter, r *http.Request) {
	var req SentimentRequest
	userID, ok := h.prepare(w, r, &req)
	if !ok {
		return
	}
	h.execute(w, r, userID, task.Sentiment, req.Text)
}

func (h *Handler) HandleAssistant(w http.ResponseWriter, r *http.Request) {
	var req AssistantRequest
	userID, ok := h.prepare(w, r, &req)
	if !ok {
		return
	}
	bc := h.loadContext(r.Context(), userID, req.ContextID)
	h.execute(w, r, userID, task.Assistant, brand.AssistantPrompt(req.Message, bc))
}

// prepare decodes and validates the body, resolves the caller and applies
// the per-user rate limit. A false return means the response is written.
func (h *Handler) prepare(w http.ResponseWriter, r *http.Request, req any) (string, bool) {
	ctx := r.Context()
	userID := auth.GetUserID(ctx)
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized", "")
		return "", false
	}

	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", "")
		return "", false
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "validation failed", err.Error())
		return "", false
	}

	allowed, err := h.limiter.Allow(ctx, userID)
	if err != nil || !allowed {
		w.Header().Set("Retry-After", "60")
		writeError(w, http.StatusTooManyRequests, "rate limit exceeded", "")
		return "", false
	}
	return userID, true
}

// execute charges the task, routes it and writes the result. Usage is
// logged asynchronously so provider latency is the only thing the caller
// waits on.
func (h *Handler) execute(w http.ResponseWriter, r *http.Request, userID string, t task.Task, payload string) {
	ctx := r.Context()

	cost, _, err := h.credits.CheckAndDeduct(ctx, userID, t)
	if err != nil {
		if errors.Is(err, credits.ErrInsufficientCredits) {
			writeError(w, http.StatusPaymentRequired, "insufficient credits", "")
			return
		}
		h.log.Error("credit deduction failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error", "")
		return
	}

	start := time.Now()
	res, err := h.router.Route(ctx, t, payload)
	if err != nil {
		var rerr *router.Error
		if errors.As(err, &rerr) {
			writeError(w, http.StatusBadGateway, rerr.Message, rerr.Details)
			return
		}
		writeError(w, http.StatusBadGateway, err.Error(), "")
		return
	}
	latency := time.Since(start)

	h.logUsage(userID, auth.GetRequestID(ctx), cost, latency, res)

	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) logUsage(userID, requestID string, cost int, latency time.Duration, res *router.Result) {
	if requestID == "" {
		requestID = uuid.New().String()
	}
	entry := &billing.UsageLog{
		UserID:           userID,
		RequestID:        requestID,
		Task:             res.Task,
		Provider:         res.Provider,
		Model:            res.Model,
		PromptTokens:     res.Usage.PromptTokens,
		CompletionTokens: res.Usage.CompletionTokens,
		TotalTokens:      res.Usage.TotalTokens,
		CostEstimate:     res.Cost,
		CreditsSpent:     cost,
		LatencyMs:        latency.Milliseconds(),
	}
	if res.Cached {
		// Cache hits cost us nothing upstream.
		entry.CostEstimate = decimal.Zero
	}
	go func() {
		if err := h.billing.LogUsage(context.Background(), entry); err != nil {
			h.log.Warn("usage log failed", zap.Error(err))
		}
	}()
}

// loadContext resolves an optional brand context, ignoring ids that do not
// exist or belong to someone else. Generation proceeds without a context
// rather than failing the whole request.
func (h *Handler) loadContext(ctx context.Context, userID, contextID string) *brand.Context {
	if contextID == "" {
		return nil
	}
	bc, err := h.brands.Get(ctx, contextID)
	if err != nil {
		if !errors.Is(err, brand.ErrContextNotFound) {
			h.log.Warn("brand context lookup failed", zap.Error(err))
		}
		return nil
	}
	if bc.UserID != userID {
		return nil
	}
	return bc
}

// --- brand context CRUD ---

func (h *Handler) HandleCreateContext(w http.ResponseWriter, r *http.Request) {
	var req BrandContextRequest
	userID, ok := h.prepare(w, r, &req)
	if !ok {
		return
	}
	bc := &brand.Context{
		UserID:         userID,
		Industry:       req.Industry,
		Tone:           req.Tone,
		TargetAudience: req.TargetAudience,
		Personality:    req.Personality,
		Keywords:       req.Keywords,
	}
	if err := h.brands.Create(r.Context(), bc); err != nil {
		h.log.Error("failed to create brand context", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error", "")
		return
	}
	writeJSON(w, http.StatusCreated, bc)
}

func (h *Handler) HandleListContexts(w http.ResponseWriter, r *http.Request) {
	userID := auth.GetUserID(r.Context())
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized", "")
		return
	}
	contexts, err := h.brands.ListByUser(r.Context(), userID)
	if err != nil {
		h.log.Error("failed to list brand contexts", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error", "")
		return
	}
	if contexts == nil {
		contexts = []*brand.Context{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"contexts": contexts})
}

func (h *Handler) HandleGetContext(w http.ResponseWriter, r *http.Request) {
	bc, ok := h.ownedContext(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, bc)
}

func (h *Handler) HandleUpdateContext(w http.ResponseWriter, r *http.Request) {
	bc, ok := h.ownedContext(w, r)
	if !ok {
		return
	}
	var req BrandContextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", "")
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, "validation failed", err.Error())
		return
	}

	bc.Industry = req.Industry
	bc.Tone = req.Tone
	bc.TargetAudience = req.TargetAudience
	bc.Personality = req.Personality
	bc.Keywords = req.Keywords
	if err := h.brands.Update(r.Context(), bc); err != nil {
		h.log.Error("failed to update brand context", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error", "")
		return
	}
	writeJSON(w, http.StatusOK, bc)
}

func (h *Handler) HandleDeleteContext(w http.ResponseWriter, r *http.Request) {
	bc, ok := h.ownedContext(w, r)
	if !ok {
		return
	}
	if err := h.brands.Delete(r.Context(), bc.ID); err != nil {
		h.log.Error("failed to delete brand context", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error", "")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ownedContext(w http.ResponseWriter, r *http.Request) (*brand.Context, bool) {
	userID := auth.GetUserID(r.Context())
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized", "")
		return nil, false
	}
	bc, err := h.brands.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, brand.ErrContextNotFound) {
			writeError(w, http.StatusNotFound, "brand context not found", "")
			return nil, false
		}
		h.log.Error("brand context lookup failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error", "")
		return nil, false
	}
	if bc.UserID != userID {
		writeError(w, http.StatusNotFound, "brand context not found", "")
		return nil, false
	}
	return bc, true
}

// --- usage and admin ---

func (h *Handler) HandleUsage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := auth.GetUserID(ctx)
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized", "")
		return
	}

	from, to, err := parseRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "")
		return
	}

	logs, err := h.billing.GetUsageByUser(ctx, userID, from, to)
	if err != nil {
		h.log.Error("failed to read usage", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error", "")
		return
	}
	totalCost, err := h.billing.GetTotalCostByUser(ctx, userID, from, to)
	if err != nil {
		h.log.Error("failed to total usage cost", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error", "")
		return
	}
	balance, err := h.credits.Balance(ctx, userID)
	if err != nil {
		h.log.Warn("failed to read credit balance", zap.Error(err))
	}

	if logs == nil {
		logs = []*billing.UsageLog{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user_id":        userID,
		"total_requests": len(logs),
		"total_cost_usd": totalCost,
		"credits":        balance,
		"logs":           logs,
		"from":           from,
		"to":             to,
	})
}

func (h *Handler) HandleProviderCosts(w http.ResponseWriter, r *http.Request) {
	from, to, err := parseRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "")
		return
	}

	costs, err := h.billing.CostByProvider(r.Context(), from, to)
	if err != nil {
		h.log.Error("failed to aggregate provider costs", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error", "")
		return
	}
	if costs == nil {
		costs = []*billing.ProviderCost{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"providers": costs,
		"from":      from,
		"to":        to,
	})
}

// --- async jobs ---

func (h *Handler) HandleCreateJob(w http.ResponseWriter, r *http.Request) {
	var req CreateJobRequest
	userID, ok := h.prepare(w, r, &req)
	if !ok {
		return
	}

	// Jobs carry the same credit price as the synchronous call.
	if _, _, err := h.credits.CheckAndDeduct(r.Context(), userID, task.Logo); err != nil {
		if errors.Is(err, credits.ErrInsufficientCredits) {
			writeError(w, http.StatusPaymentRequired, "insufficient credits", "")
			return
		}
		h.log.Error("credit deduction failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error", "")
		return
	}

	bc := h.loadContext(r.Context(), userID, req.ContextID)
	job, err := h.jobs.Enqueue(r.Context(), userID, task.Logo, brand.LogoPrompt(req.Prompt, bc))
	if err != nil {
		h.log.Error("failed to enqueue job", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error", "")
		return
	}
	writeJSON(w, http.StatusAccepted, job)
}

func (h *Handler) HandleGetJob(w http.ResponseWriter, r *http.Request) {
	userID := auth.GetUserID(r.Context())
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized", "")
		return
	}
	job, err := h.jobs.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, worker.ErrJobNotFound) {
			writeError(w, http.StatusNotFound, "job not found", "")
			return
		}
		h.log.Error("failed to load job", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error", "")
		return
	}
	if job.UserID != userID {
		writeError(w, http.StatusNotFound, "job not found", "")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// --- helpers ---

func parseRange(r *http.Request) (time.Time, time.Time, error) {
	now := time.Now()
	from := now.AddDate(0, 0, -30)
	to := now

	if s := r.URL.Query().Get("from"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return from, to, fmt.Errorf("invalid 'from' date format (use RFC3339)")
		}
		from = t
	}
	if s := r.URL.Query().Get("to"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return from, to, fmt.Errorf("invalid 'to' date format (use RFC3339)")
		}
		to = t
	}
	return from, to, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message, details string) {
	body := map[string]any{
		"error":   true,
		"message": message,
	}
	if details != "" {
		body["details"] = details
	}
	writeJSON(w, status, body)
}
