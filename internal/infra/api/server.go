package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"advisor-live-chat/internal/domain"
	"advisor-live-chat/internal/domain/model"
	"advisor-live-chat/internal/infra/logging"
	"advisor-live-chat/internal/usecase"
)

// Server wires the order subsystem's payment-confirmed callback to the
// session lifecycle engine. Deliveries are at-least-once; retries are
// answered with the already-created session.
type Server struct {
	sessUC usecase.SessionUseCase
	cbPath string
	log    *zerolog.Logger
}

func NewServer(sessUC usecase.SessionUseCase, callbackPath string, logger *zerolog.Logger) *Server {
	if callbackPath == "" {
		callbackPath = "/api/v1/payment/confirmed"
	}
	srvLog := logger.With().Str("component", "PaymentCallback").Logger()
	return &Server{sessUC: sessUC, cbPath: callbackPath, log: &srvLog}
}

// Register attaches handlers to the provided mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc(s.cbPath, s.handlePaymentConfirmed)
}

type paymentConfirmedRequest struct {
	OrderID          string `json:"order_id"`
	ClientID         string `json:"client_id"`
	ServiceKind      string `json:"service_kind"`
	PurchasedMinutes int    `json:"purchased_minutes"`
}

func (s *Server) handlePaymentConfirmed(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	var req paymentConfirmedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	ctx = logging.WithOrderID(logging.WithClientID(ctx, req.ClientID), req.OrderID)
	ev := model.PaymentConfirmed{
		OrderID:          req.OrderID,
		ClientID:         req.ClientID,
		ServiceKind:      model.ServiceKind(req.ServiceKind),
		PurchasedMinutes: req.PurchasedMinutes,
	}
	sess, err := s.sessUC.HandlePaymentConfirmed(ctx, ev)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidArgument) {
			http.Error(w, "Invalid payment event", http.StatusBadRequest)
			return
		}
		// The order is paid; the caller must retry until a session
		// exists. Never drop a paid order silently.
		logging.With(ctx, s.log).Error().Err(err).Msg("payment event failed")
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	if sess == nil {
		// Not a live-chat order; acknowledged, nothing to do.
		w.WriteHeader(http.StatusAccepted)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"session_id": sess.ID,
		"status":     string(sess.Status),
	})
}
