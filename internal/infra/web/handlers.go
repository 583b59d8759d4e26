package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"advisor-live-chat/internal/domain"
	"advisor-live-chat/internal/domain/model"
)

type sessionResponse struct {
	ID               string     `json:"id"`
	OrderID          string     `json:"order_id"`
	ClientID         string     `json:"client_id"`
	PurchasedMinutes int        `json:"purchased_minutes"`
	Status           string     `json:"status"`
	AcceptedAt       *time.Time `json:"accepted_at,omitempty"`
	EndedAt          *time.Time `json:"ended_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

type billingResponse struct {
	PurchasedSeconds int64 `json:"purchased_seconds"`
	ElapsedSeconds   int64 `json:"elapsed_seconds"`
	RemainingSeconds int64 `json:"remaining_seconds"`
}

type messageResponse struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	SenderID  string    `json:"sender_id"`
	Role      string    `json:"role"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

func toSessionResponse(s *model.ChatSession) sessionResponse {
	return sessionResponse{
		ID:               s.ID,
		OrderID:          s.OrderID,
		ClientID:         s.ClientID,
		PurchasedMinutes: s.PurchasedMinutes,
		Status:           string(s.Status),
		AcceptedAt:       s.AcceptedAt,
		EndedAt:          s.EndedAt,
		CreatedAt:        s.CreatedAt,
	}
}

func toMessageResponse(m *model.ChatMessage) messageResponse {
	return messageResponse{
		ID:        m.ID,
		SessionID: m.SessionID,
		SenderID:  m.SenderID,
		Role:      string(m.Role),
		Body:      m.Body,
		CreatedAt: m.CreatedAt,
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// errorKey picks the one human-readable message per error kind. The
// wording for a busy accept differs between the admin and client sides.
func errorKey(err error, adminBusyWording bool) (int, string) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "err_not_found"
	case errors.Is(err, domain.ErrAdvisorOffline):
		return http.StatusConflict, "err_advisor_offline"
	case errors.Is(err, domain.ErrAdvisorBusy):
		if adminBusyWording {
			return http.StatusConflict, "err_already_busy_admin"
		}
		return http.StatusConflict, "err_advisor_busy"
	case errors.Is(err, domain.ErrInvalidTransition):
		return http.StatusConflict, "err_invalid_transition"
	case errors.Is(err, domain.ErrSessionNotActive):
		return http.StatusConflict, "err_session_not_active"
	case errors.Is(err, domain.ErrEmptyMessage):
		return http.StatusBadRequest, "err_empty_message"
	case errors.Is(err, domain.ErrMessageTooLong):
		return http.StatusBadRequest, "err_message_too_long"
	case errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests, "err_rate_limited"
	case errors.Is(err, domain.ErrInvalidArgument):
		return http.StatusBadRequest, "err_invalid_argument"
	default:
		return http.StatusInternalServerError, ""
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	s.writeErrorCtx(w, err, false)
}

func (s *Server) writeErrorCtx(w http.ResponseWriter, err error, adminBusyWording bool) {
	status, key := errorKey(err, adminBusyWording)
	if key == "" {
		s.log.Error().Err(err).Msg("request failed")
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, status, map[string]string{
		"error":   key,
		"message": s.tr.T(key),
	})
}

// ---- availability ----

func (s *Server) handleAvailability(w http.ResponseWriter, r *http.Request) {
	st, err := s.availUC.Status(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": string(st)})
}

func (s *Server) handleSetAvailability(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Accepting bool `json:"accepting"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, domain.ErrInvalidArgument)
		return
	}
	if err := s.availUC.SetAccepting(r.Context(), req.Accepting); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handlePurchasePrecheck is the purchase-time gate: it must reject a
// live-chat purchase before any payment is initiated.
func (s *Server) handlePurchasePrecheck(w http.ResponseWriter, r *http.Request) {
	if err := s.availUC.CheckPurchase(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ---- sessions ----

func (s *Server) handleSessionByOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")
	sess, err := s.sessUC.GetByOrder(r.Context(), orderID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeSessionWithBilling(w, r, sess.ID)
}

// handleSessionState is the client poll target: full session plus the
// lazily derived billing clock.
func (s *Server) handleSessionState(w http.ResponseWriter, r *http.Request) {
	s.writeSessionWithBilling(w, r, chi.URLParam(r, "sessionID"))
}

func (s *Server) writeSessionWithBilling(w http.ResponseWriter, r *http.Request, sessionID string) {
	sess, err := s.sessUC.Get(r.Context(), sessionID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	billing, err := s.sessUC.Billing(r.Context(), sessionID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, struct {
		Session sessionResponse `json:"session"`
		Billing billingResponse `json:"billing"`
	}{
		Session: toSessionResponse(sess),
		Billing: billingResponse{
			PurchasedSeconds: billing.PurchasedSeconds,
			ElapsedSeconds:   billing.ElapsedSeconds,
			RemainingSeconds: billing.RemainingSeconds,
		},
	})
}

func (s *Server) handleListRinging(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.sessUC.ListRinging(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	out := make([]sessionResponse, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, toSessionResponse(sess))
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAccept(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessUC.Accept(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		s.writeErrorCtx(w, err, true)
		return
	}
	s.writeJSON(w, http.StatusOK, toSessionResponse(sess))
}

func (s *Server) handleEnd(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessUC.End(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toSessionResponse(sess))
}

// ---- messages ----

type sendMessageRequest struct {
	SenderID string `json:"sender_id"`
	Body     string `json:"body"`
}

func (s *Server) handleClientSend(w http.ResponseWriter, r *http.Request) {
	s.handleSend(w, r, model.SenderClient)
}

func (s *Server) handleAdminSend(w http.ResponseWriter, r *http.Request) {
	s.handleSend(w, r, model.SenderAdmin)
}

func (s *Server) handleSend(w http.ResponseWriter, r *http.Request, role model.SenderRole) {
	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, domain.ErrInvalidArgument)
		return
	}
	m, err := s.msgUC.Send(r.Context(), chi.URLParam(r, "sessionID"), req.SenderID, role, req.Body)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, toMessageResponse(m))
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	msgs, err := s.msgUC.List(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	out := make([]messageResponse, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, toMessageResponse(m))
	}
	s.writeJSON(w, http.StatusOK, out)
}
