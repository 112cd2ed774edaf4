// Package httpapi exposes the dojo REST API.
package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	app "github.com/defidojo/dojo-backend/internal/app"
	"github.com/defidojo/dojo-backend/internal/app/domain/quest"
	"github.com/defidojo/dojo-backend/internal/app/services/aihint"
	"github.com/defidojo/dojo-backend/internal/app/services/catalog"
	"github.com/defidojo/dojo-backend/internal/app/services/quests"
	"github.com/defidojo/dojo-backend/internal/app/services/rewards"
	"github.com/defidojo/dojo-backend/internal/app/services/users"
	"github.com/defidojo/dojo-backend/internal/middleware"
)

// handler bundles HTTP endpoints for the application services.
type handler struct {
	app *app.Application
}

// NewHandler returns a mux exposing the REST API. Routes under /api require
// a bearer token; the auth flow and health probe do not. The rate limiter is
// applied inside the auth chain so authenticated buckets are keyed by user ID,
// and on the anonymous auth routes keyed by remote host. A nil limiter
// disables limiting.
func NewHandler(application *app.Application, auth *middleware.Auth, limit *middleware.RateLimiter) http.Handler {
	h := &handler{app: application}

	limited := func(next http.Handler) http.Handler {
		if limit == nil {
			return next
		}
		return limit.Handler(next)
	}

	api := http.NewServeMux()
	api.HandleFunc("/api/users/me", h.me)
	api.HandleFunc("/api/quests", h.quests)
	api.HandleFunc("/api/quests/", h.questResources)
	api.HandleFunc("/api/instances", h.instances)
	api.HandleFunc("/api/instances/", h.instanceResources)
	api.HandleFunc("/api/hints", h.submitHint)
	api.HandleFunc("/api/hints/", h.pollHint)
	api.HandleFunc("/api/rewards/prepare", h.prepareReward)
	api.HandleFunc("/api/rewards/", h.rewardResources)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", h.health)
	mux.Handle("/auth/challenge", limited(http.HandlerFunc(h.authChallenge)))
	mux.Handle("/auth/login", limited(http.HandlerFunc(h.authLogin)))
	mux.Handle("/api/", auth.Handler(limited(api)))
	return mux
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- auth -------------------------------------------------------------------

func (h *handler) authChallenge(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var payload struct {
		Wallet string `json:"wallet"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	nonce, err := h.app.Users.Challenge(r.Context(), payload.Wallet)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"nonce": nonce})
}

func (h *handler) authLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var payload struct {
		Wallet    string `json:"wallet"`
		Nonce     string `json:"nonce"`
		Signature string `json:"signature"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	u, token, err := h.app.Users.Login(r.Context(), payload.Wallet, payload.Nonce)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"token": token, "user": u})
}

// --- users ------------------------------------------------------------------

func (h *handler) me(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	u, err := h.app.Users.Get(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// --- quests -----------------------------------------------------------------

func (h *handler) quests(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, h.app.Catalog.List())
}

func (h *handler) questResources(w http.ResponseWriter, r *http.Request) {
	parts := pathParts(r.URL.Path, "/api/quests")
	if len(parts) == 0 {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	questID := parts[0]

	if len(parts) == 1 {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		def, err := h.app.Catalog.Get(questID)
		if err != nil {
			def, err = h.app.Catalog.GetBySlug(questID)
		}
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, def)
		return
	}

	if parts[1] == "start" && r.Method == http.MethodPost {
		inst, err := h.app.Quests.Start(r.Context(), middleware.GetUserID(r.Context()), questID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, inst)
		return
	}

	w.WriteHeader(http.StatusNotFound)
}

// --- quest instances --------------------------------------------------------

func (h *handler) instances(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	list, err := h.app.Quests.List(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *handler) instanceResources(w http.ResponseWriter, r *http.Request) {
	parts := pathParts(r.URL.Path, "/api/instances")
	if len(parts) == 0 {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	instanceID := parts[0]
	userID := middleware.GetUserID(r.Context())

	if len(parts) == 1 {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		inst, err := h.app.Quests.Status(r.Context(), userID, instanceID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, inst)
		return
	}

	if parts[1] == "actions" && r.Method == http.MethodPost {
		var action quest.Action
		if err := decodeJSON(r.Body, &action); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		inst, err := h.app.Quests.SubmitAction(r.Context(), userID, instanceID, action)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, inst)
		return
	}

	w.WriteHeader(http.StatusNotFound)
}

// --- hints ------------------------------------------------------------------

func (h *handler) submitHint(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var payload struct {
		QuestInstanceID string                 `json:"quest_instance_id"`
		Context         map[string]interface{} `json:"context"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	job, err := h.app.Hints.Submit(r.Context(), middleware.GetUserID(r.Context()), payload.QuestInstanceID, payload.Context)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, job)
}

func (h *handler) pollHint(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	parts := pathParts(r.URL.Path, "/api/hints")
	if len(parts) != 1 {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	job, err := h.app.Hints.Poll(r.Context(), middleware.GetUserID(r.Context()), parts[0])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":         job.ID,
		"status":     job.Status,
		"result":     job.ClientResult(),
		"created_at": job.CreatedAt,
		"updated_at": job.UpdatedAt,
	})
}

// --- rewards ----------------------------------------------------------------

func (h *handler) prepareReward(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var payload struct {
		QuestInstanceID string `json:"quest_instance_id"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	claim, tx, err := h.app.Rewards.Prepare(r.Context(), middleware.GetUserID(r.Context()), payload.QuestInstanceID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"payload": claim, "reward": tx})
}

func (h *handler) rewardResources(w http.ResponseWriter, r *http.Request) {
	parts := pathParts(r.URL.Path, "/api/rewards")
	if len(parts) == 0 {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	userID := middleware.GetUserID(r.Context())

	// GET /api/rewards/tx/{txid} reports settlement status.
	if parts[0] == "tx" {
		if len(parts) != 2 || r.Method != http.MethodGet {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		tx, err := h.app.Rewards.Status(r.Context(), userID, parts[1])
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, tx)
		return
	}

	// POST /api/rewards/{id}/submit finalises a prepared claim.
	if len(parts) == 2 && parts[1] == "submit" && r.Method == http.MethodPost {
		var payload struct {
			SignedPayload string `json:"signed_payload"`
			TxID          string `json:"txid"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		tx, err := h.app.Rewards.Submit(r.Context(), userID, parts[0], payload.SignedPayload, payload.TxID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, tx)
		return
	}

	w.WriteHeader(http.StatusNotFound)
}

// --- helpers ----------------------------------------------------------------

func pathParts(path, prefix string) []string {
	trimmed := strings.Trim(strings.TrimPrefix(path, prefix), "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

// writeServiceError maps service sentinels onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, catalog.ErrNotFound),
		errors.Is(err, quests.ErrQuestNotFound),
		errors.Is(err, quests.ErrInstanceNotFound),
		errors.Is(err, rewards.ErrInstanceNotFound),
		errors.Is(err, rewards.ErrTxNotFound),
		errors.Is(err, aihint.ErrJobNotFound),
		errors.Is(err, users.ErrUserNotFound):
		status = http.StatusNotFound
	case errors.Is(err, quests.ErrAlreadyStarted),
		errors.Is(err, rewards.ErrAlreadyPrepared):
		status = http.StatusConflict
	case errors.Is(err, quests.ErrQuestNotActive),
		errors.Is(err, rewards.ErrNotCompleted),
		errors.Is(err, rewards.ErrNotPending),
		errors.Is(err, rewards.ErrBadSubmission),
		errors.Is(err, aihint.ErrNotEligible),
		errors.Is(err, users.ErrNoWallet):
		status = http.StatusBadRequest
	case errors.Is(err, users.ErrBadChallenge):
		status = http.StatusUnauthorized
	case errors.Is(err, aihint.ErrQueueFull):
		status = http.StatusServiceUnavailable
	}
	writeError(w, status, err)
}

func decodeJSON(body io.ReadCloser, dst interface{}) error {
	defer body.Close()
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
