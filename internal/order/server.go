package order

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"github.com/jamespham03/cmpe273-comm-models-lab/internal/event"
	"github.com/jamespham03/cmpe273-comm-models-lab/internal/topology"
)

const cacheSize = 512

// EventPublisher is the slice of the rabbit publisher the front door needs.
type EventPublisher interface {
	Publish(ctx context.Context, exchange, routingKey string, env event.Envelope) error
}

type CreateOrderRequest struct {
	UserID   string `json:"user_id" validate:"required"`
	Item     string `json:"item" validate:"required"`
	Quantity int    `json:"quantity" validate:"omitempty,gte=1"`
}

type Server struct {
	repo     *Repository
	cache    *expirable.LRU[string, Order]
	pub      EventPublisher
	validate *validator.Validate
	log      zerolog.Logger
}

func NewServer(repo *Repository, pub EventPublisher, cacheTTL time.Duration, log zerolog.Logger) *Server {
	return &Server{
		repo:     repo,
		cache:    expirable.NewLRU[string, Order](cacheSize, nil, cacheTTL),
		pub:      pub,
		validate: validator.New(),
		log:      log,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(cors.AllowAll().Handler)
	r.Get("/health", s.health)
	r.Post("/order", s.createOrder)
	r.Get("/order/{orderID}", s.getOrder)
	r.Get("/orders", s.listOrders)
	return r
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// createOrder persists the order, publishes OrderPlaced and replies 202
// without waiting for downstream processing. A publish failure after a
// successful save is logged and still answered 202: the order is recorded and
// the event needs replay, the caller never sees downstream state.
func (s *Server) createOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json body"})
		return
	}
	if err := s.validate.Struct(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing required fields: user_id, item"})
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	o := Order{
		OrderID:   uuid.NewString(),
		UserID:    req.UserID,
		Item:      req.Item,
		Quantity:  req.Quantity,
		Status:    StatusPending,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.Save(r.Context(), o); err != nil {
		s.log.Error().Err(err).Msg("save order failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to save order"})
		return
	}

	env := event.NewOrderPlaced(o.OrderID, o.UserID, o.Item, o.Quantity)
	if err := s.pub.Publish(r.Context(), topology.ExchangeOrders, topology.KeyOrderPlaced, env); err != nil {
		s.log.Error().Err(err).Str("order_id", o.OrderID).Msg("publish OrderPlaced failed, order saved without event")
	} else {
		s.log.Info().Str("order_id", o.OrderID).Str("event_id", env.EventID).Msg("order accepted")
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"order_id":  o.OrderID,
		"status":    "accepted",
		"message":   "order received and being processed",
		"timestamp": o.CreatedAt.Format(time.RFC3339),
	})
}

func (s *Server) getOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")
	if o, ok := s.cache.Get(orderID); ok {
		writeJSON(w, http.StatusOK, o)
		return
	}
	o, err := s.repo.Get(r.Context(), orderID)
	if errors.Is(err, ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
		return
	}
	if err != nil {
		s.log.Error().Err(err).Msg("get order failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	s.cache.Add(orderID, o)
	writeJSON(w, http.StatusOK, o)
}

func (s *Server) listOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := s.repo.List(r.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("list orders failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": orders, "count": len(orders)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
