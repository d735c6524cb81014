package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"github.com/350ops/walleybranch/internal/auth"
	"github.com/350ops/walleybranch/internal/backend"
	"github.com/350ops/walleybranch/internal/domain"
	"github.com/350ops/walleybranch/internal/lifecycle"
	"github.com/350ops/walleybranch/internal/payments"
	"github.com/350ops/walleybranch/internal/session"
	"github.com/350ops/walleybranch/internal/store"
	"github.com/350ops/walleybranch/internal/views"
)

// WalletStore is the part of the sync store the API drives.
type WalletStore interface {
	Snapshot() store.Snapshot
	RefreshAll(ctx context.Context)
	Refresh(ctx context.Context, e store.Entity)
	CreateCard(ctx context.Context, in domain.NewCard) (domain.Card, error)
	CreateRecipient(ctx context.Context, in domain.NewRecipient) (domain.Recipient, error)
	CreateTransaction(ctx context.Context, in domain.NewTransaction) (domain.Transaction, error)
	UpdateProfile(ctx context.Context, in domain.ProfileUpdate) (domain.Profile, error)
	UpdateUserSettings(ctx context.Context, in domain.UserSettingsUpdate) (domain.UserSettings, error)
	MarkNotificationRead(ctx context.Context, id string) error
	SetBalance(ctx context.Context, amount decimal.Decimal) error
}

// Summarizer builds the derived views of a snapshot.
type Summarizer interface {
	Summary(snap store.Snapshot) views.Summary
}

// LifecycleSink receives the host app's foreground state.
type LifecycleSink interface {
	Set(next lifecycle.State) (lifecycle.Transition, bool)
}

// OTPAuthenticator signs users in with a texted code.
type OTPAuthenticator interface {
	SendOTP(ctx context.Context, phone string) error
	VerifyOTP(ctx context.Context, phone, code string) (*session.Session, error)
}

// SignerOut ends the current session.
type SignerOut interface {
	SignOut(ctx context.Context) error
}

// TopUps runs the fixed-amount checkout.
type TopUps interface {
	Prepare(ctx context.Context) (payments.SheetParams, error)
	Complete(ctx context.Context) (decimal.Decimal, error)
}

// APIDependencies are the collaborators behind the API. Auth, Sessions,
// Lifecycle and TopUp are optional; their routes answer 501 when unset.
type APIDependencies struct {
	Store     WalletStore
	Views     Summarizer
	Lifecycle LifecycleSink
	Auth      OTPAuthenticator
	Sessions  SignerOut
	TopUp     TopUps
}

// APIHandlers exposes HTTP handlers for the wallet API.
type APIHandlers struct {
	logger *slog.Logger
	deps   APIDependencies
}

// NewAPIHandlers constructs an APIHandlers instance.
func NewAPIHandlers(logger *slog.Logger, deps APIDependencies) *APIHandlers {
	return &APIHandlers{
		logger: logger,
		deps:   deps,
	}
}

func (h *APIHandlers) register(r *mux.Router) {
	r.HandleFunc("/snapshot", h.getSnapshot).Methods(http.MethodGet)
	r.HandleFunc("/summary", h.getSummary).Methods(http.MethodGet)
	r.HandleFunc("/refresh", h.refreshAll).Methods(http.MethodPost)
	r.HandleFunc("/refresh/{entity}", h.refreshEntity).Methods(http.MethodPost)

	r.HandleFunc("/cards", h.createCard).Methods(http.MethodPost)
	r.HandleFunc("/recipients", h.createRecipient).Methods(http.MethodPost)
	r.HandleFunc("/transactions", h.createTransaction).Methods(http.MethodPost)
	r.HandleFunc("/profile", h.updateProfile).Methods(http.MethodPut)
	r.HandleFunc("/settings", h.updateSettings).Methods(http.MethodPut)
	r.HandleFunc("/notifications/{id}/read", h.markNotificationRead).Methods(http.MethodPost)
	r.HandleFunc("/account/balance", h.setBalance).Methods(http.MethodPut)

	r.HandleFunc("/lifecycle", h.setLifecycle).Methods(http.MethodPost)
	r.HandleFunc("/auth/otp", h.sendOTP).Methods(http.MethodPost)
	r.HandleFunc("/auth/verify", h.verifyOTP).Methods(http.MethodPost)
	r.HandleFunc("/auth/signout", h.signOut).Methods(http.MethodPost)
	r.HandleFunc("/topup", h.prepareTopUp).Methods(http.MethodPost)
	r.HandleFunc("/topup/complete", h.completeTopUp).Methods(http.MethodPost)
}

func (h *APIHandlers) getSnapshot(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, h.deps.Store.Snapshot())
}

func (h *APIHandlers) getSummary(w http.ResponseWriter, _ *http.Request) {
	if h.deps.Views == nil {
		writeError(w, http.StatusNotImplemented, "views are not configured")
		return
	}
	respondJSON(w, http.StatusOK, h.deps.Views.Summary(h.deps.Store.Snapshot()))
}

func (h *APIHandlers) refreshAll(w http.ResponseWriter, r *http.Request) {
	h.deps.Store.RefreshAll(r.Context())
	respondJSON(w, http.StatusOK, h.deps.Store.Snapshot())
}

func (h *APIHandlers) refreshEntity(w http.ResponseWriter, r *http.Request) {
	entity, err := store.ParseEntity(mux.Vars(r)["entity"])
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.deps.Store.Refresh(r.Context(), entity)
	respondJSON(w, http.StatusOK, h.deps.Store.Snapshot())
}

func (h *APIHandlers) createCard(w http.ResponseWriter, r *http.Request) {
	var in domain.NewCard
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	card, err := h.deps.Store.CreateCard(r.Context(), in)
	if err != nil {
		h.writeStoreError(w, "create card", err)
		return
	}
	respondJSON(w, http.StatusCreated, card)
}

func (h *APIHandlers) createRecipient(w http.ResponseWriter, r *http.Request) {
	var in domain.NewRecipient
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	recipient, err := h.deps.Store.CreateRecipient(r.Context(), in)
	if err != nil {
		h.writeStoreError(w, "create recipient", err)
		return
	}
	respondJSON(w, http.StatusCreated, recipient)
}

func (h *APIHandlers) createTransaction(w http.ResponseWriter, r *http.Request) {
	var in domain.NewTransaction
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	tx, err := h.deps.Store.CreateTransaction(r.Context(), in)
	if err != nil {
		h.writeStoreError(w, "create transaction", err)
		return
	}
	respondJSON(w, http.StatusCreated, tx)
}

func (h *APIHandlers) updateProfile(w http.ResponseWriter, r *http.Request) {
	var in domain.ProfileUpdate
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	profile, err := h.deps.Store.UpdateProfile(r.Context(), in)
	if err != nil {
		h.writeStoreError(w, "update profile", err)
		return
	}
	respondJSON(w, http.StatusOK, profile)
}

func (h *APIHandlers) updateSettings(w http.ResponseWriter, r *http.Request) {
	var in domain.UserSettingsUpdate
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	settings, err := h.deps.Store.UpdateUserSettings(r.Context(), in)
	if err != nil {
		h.writeStoreError(w, "update settings", err)
		return
	}
	respondJSON(w, http.StatusOK, settings)
}

func (h *APIHandlers) markNotificationRead(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.Store.MarkNotificationRead(r.Context(), mux.Vars(r)["id"]); err != nil {
		h.writeStoreError(w, "mark notification read", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type balanceRequest struct {
	Balance *decimal.Decimal `json:"balance"`
}

func (h *APIHandlers) setBalance(w http.ResponseWriter, r *http.Request) {
	var req balanceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Balance == nil {
		writeError(w, http.StatusBadRequest, "balance is required")
		return
	}
	if err := h.deps.Store.SetBalance(r.Context(), *req.Balance); err != nil {
		h.writeStoreError(w, "set balance", err)
		return
	}
	respondJSON(w, http.StatusOK, h.deps.Store.Snapshot().Account)
}

type lifecycleRequest struct {
	State string `json:"state"`
}

type lifecycleResponse struct {
	State        lifecycle.State `json:"state"`
	Changed      bool            `json:"changed"`
	Foregrounded bool            `json:"foregrounded"`
}

func (h *APIHandlers) setLifecycle(w http.ResponseWriter, r *http.Request) {
	if h.deps.Lifecycle == nil {
		writeError(w, http.StatusNotImplemented, "lifecycle tracking is not configured")
		return
	}
	var req lifecycleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	state, err := lifecycle.ParseState(req.State)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	tr, changed := h.deps.Lifecycle.Set(state)
	respondJSON(w, http.StatusOK, lifecycleResponse{State: state, Changed: changed, Foregrounded: changed && tr.Foregrounded()})
}

type otpRequest struct {
	Phone string `json:"phone"`
	Code  string `json:"code,omitempty"`
}

type sessionResponse struct {
	UserID    string    `json:"userId"`
	Phone     string    `json:"phone,omitempty"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (h *APIHandlers) sendOTP(w http.ResponseWriter, r *http.Request) {
	if h.deps.Auth == nil {
		writeError(w, http.StatusNotImplemented, "auth is not configured")
		return
	}
	var req otpRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.deps.Auth.SendOTP(r.Context(), req.Phone); err != nil {
		h.writeStoreError(w, "send otp", err)
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]bool{"success": true})
}

func (h *APIHandlers) verifyOTP(w http.ResponseWriter, r *http.Request) {
	if h.deps.Auth == nil {
		writeError(w, http.StatusNotImplemented, "auth is not configured")
		return
	}
	var req otpRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Code == "" {
		writeError(w, http.StatusBadRequest, "code is required")
		return
	}
	sess, err := h.deps.Auth.VerifyOTP(r.Context(), req.Phone, req.Code)
	if err != nil {
		h.writeStoreError(w, "verify otp", err)
		return
	}
	respondJSON(w, http.StatusOK, sessionResponse{UserID: sess.UserID, Phone: sess.Phone, ExpiresAt: sess.ExpiresAt})
}

func (h *APIHandlers) signOut(w http.ResponseWriter, r *http.Request) {
	if h.deps.Sessions == nil {
		writeError(w, http.StatusNotImplemented, "auth is not configured")
		return
	}
	if err := h.deps.Sessions.SignOut(r.Context()); err != nil {
		h.writeStoreError(w, "sign out", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *APIHandlers) prepareTopUp(w http.ResponseWriter, r *http.Request) {
	if h.deps.TopUp == nil {
		writeError(w, http.StatusNotImplemented, "payments are not configured")
		return
	}
	params, err := h.deps.TopUp.Prepare(r.Context())
	if err != nil {
		h.writeStoreError(w, "prepare top-up", err)
		return
	}
	respondJSON(w, http.StatusOK, params)
}

func (h *APIHandlers) completeTopUp(w http.ResponseWriter, r *http.Request) {
	if h.deps.TopUp == nil {
		writeError(w, http.StatusNotImplemented, "payments are not configured")
		return
	}
	balance, err := h.deps.TopUp.Complete(r.Context())
	if err != nil {
		h.writeStoreError(w, "complete top-up", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]decimal.Decimal{"balance": balance})
}

// writeStoreError maps domain errors onto status codes. Remote failures keep
// the remote message so the caller can surface it.
func (h *APIHandlers) writeStoreError(w http.ResponseWriter, op string, err error) {
	var (
		validationErr *domain.ValidationError
		remoteErr     *backend.RemoteError
		authErr       *auth.Error
	)
	switch {
	case errors.Is(err, store.ErrUnauthenticated):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.As(err, &validationErr), errors.Is(err, auth.ErrInvalidPhone):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, payments.ErrNoAccount):
		writeError(w, http.StatusConflict, err.Error())
	case errors.As(err, &authErr) && authErr.Rejected():
		writeError(w, http.StatusUnauthorized, authErr.Message)
	case errors.As(err, &remoteErr):
		h.logger.Warn(op+" failed", "error", err)
		writeError(w, http.StatusBadGateway, remoteErr.Message)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, err.Error())
	default:
		h.logger.Error(op+" failed", "error", err)
		writeError(w, http.StatusBadGateway, err.Error())
	}
}

func decodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return errors.New("request body is required")
	}
	defer r.Body.Close()

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	return nil
}
