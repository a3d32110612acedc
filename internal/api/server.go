package api

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/mExOms/sor/internal/marketdata"
	"github.com/mExOms/sor/internal/router"
	"github.com/mExOms/sor/pkg/cache"
	"github.com/mExOms/sor/pkg/nats"
	"github.com/mExOms/sor/pkg/types"
)

// Config tunes the HTTP server. Zero values fall back to defaults.
type Config struct {
	Addr string

	// RateLimit is the number of requests allowed per client IP within
	// each RateWindow.
	RateLimit  int
	RateWindow time.Duration

	// StatusInterval paces the venue status broadcasts to WebSocket
	// clients and NATS.
	StatusInterval time.Duration
}

func DefaultConfig() Config {
	return Config{
		Addr:           ":8080",
		RateLimit:      120,
		RateWindow:     time.Minute,
		StatusInterval: 5 * time.Second,
	}
}

// ConfigFromViper reads the api.* config section over the defaults.
func ConfigFromViper() Config {
	cfg := DefaultConfig()
	if addr := viper.GetString("api.addr"); addr != "" {
		cfg.Addr = addr
	}
	if n := viper.GetInt("api.rate_limit"); n > 0 {
		cfg.RateLimit = n
	}
	if ms := viper.GetInt("api.rate_window_ms"); ms > 0 {
		cfg.RateWindow = time.Duration(ms) * time.Millisecond
	}
	if ms := viper.GetInt("api.status_interval_ms"); ms > 0 {
		cfg.StatusInterval = time.Duration(ms) * time.Millisecond
	}
	return cfg
}

// PlaceOrderRequest is the intake payload. Quantities and prices arrive
// as JSON numbers and are converted to decimals before validation.
type PlaceOrderRequest struct {
	Symbol    string  `json:"symbol"`
	Side      string  `json:"side"`
	OrderType string  `json:"order_type"`
	Quantity  float64 `json:"quantity"`
	Price     float64 `json:"price,omitempty"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Server exposes the router over REST and WebSocket. The NATS client is
// optional; with a nil client results stay local to the HTTP surface.
type Server struct {
	core    *router.Router
	books   *marketdata.Aggregator
	events  *nats.Client
	hub     *Hub
	limiter *cache.RateLimiter
	httpSrv *http.Server

	statusInterval time.Duration
	done           chan struct{}
	once           sync.Once
	logger         *logrus.Entry
}

func NewServer(cfg Config, core *router.Router, books *marketdata.Aggregator, events *nats.Client) *Server {
	defaults := DefaultConfig()
	if cfg.Addr == "" {
		cfg.Addr = defaults.Addr
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = defaults.RateLimit
	}
	if cfg.RateWindow <= 0 {
		cfg.RateWindow = defaults.RateWindow
	}
	if cfg.StatusInterval <= 0 {
		cfg.StatusInterval = defaults.StatusInterval
	}

	s := &Server{
		core:           core,
		books:          books,
		events:         events,
		hub:            NewHub(),
		limiter:        cache.NewRateLimiter(cfg.RateLimit, cfg.RateWindow),
		statusInterval: cfg.StatusInterval,
		done:           make(chan struct{}),
		logger:         logrus.WithField("component", "api"),
	}

	r := mux.NewRouter()
	r.Use(corsMiddleware)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(s.rateLimitMiddleware)

	api.HandleFunc("/orders", s.placeOrder).Methods("POST")
	api.HandleFunc("/orders", s.listOrders).Methods("GET")
	api.HandleFunc("/venues", s.listVenues).Methods("GET")
	api.HandleFunc("/stats", s.getStats).Methods("GET")
	api.HandleFunc("/market-data/{symbol}", s.getMarketData).Methods("GET")
	api.HandleFunc("/health", s.healthCheck).Methods("GET")
	api.HandleFunc("/ws", s.handleWebSocket).Methods("GET")

	s.httpSrv = &http.Server{
		Addr:         cfg.Addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler exposes the route table for tests.
func (s *Server) Handler() http.Handler {
	return s.httpSrv.Handler
}

// Start serves until Shutdown. It blocks, so run it in a goroutine when
// the caller has other work.
func (s *Server) Start() error {
	go s.hub.Run()
	go s.statusLoop()

	s.logger.Infof("listening on %s", s.httpSrv.Addr)
	err := s.httpSrv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests and stops the broadcast loops.
func (s *Server) Shutdown(ctx context.Context) error {
	s.once.Do(func() { close(s.done) })
	err := s.httpSrv.Shutdown(ctx)
	s.hub.Close()
	s.limiter.Close()
	return err
}

// statusLoop pushes the venue board to subscribers at a fixed cadence.
func (s *Server) statusLoop() {
	ticker := time.NewTicker(s.statusInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			statuses := s.core.VenueStatus()
			s.hub.Broadcast(ChannelVenues, statuses)
			if s.events != nil {
				msg := &nats.VenueStatusMessage{Venues: statuses, Timestamp: time.Now()}
				if err := s.events.PublishVenueStatus(msg); err != nil {
					s.logger.Errorf("publish venue status: %v", err)
				}
				hb := &nats.SystemMessage{
					Type:      "info",
					Component: "api",
					Message:   "alive",
					Details:   map[string]interface{}{"venues": len(statuses)},
					Timestamp: time.Now(),
				}
				if err := s.events.PublishHeartbeat(hb); err != nil {
					s.logger.Errorf("publish heartbeat: %v", err)
				}
			}
		case <-s.done:
			return
		}
	}
}

func (s *Server) placeOrder(w http.ResponseWriter, r *http.Request) {
	var req PlaceOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.OrderType == "" {
		req.OrderType = types.OrderTypeMarket
	}

	order := &types.Order{
		ID:        "ORD-" + uuid.NewString(),
		Symbol:    strings.ToUpper(req.Symbol),
		Side:      strings.ToUpper(req.Side),
		Type:      strings.ToUpper(req.OrderType),
		Quantity:  decimal.NewFromFloat(req.Quantity),
		CreatedAt: time.Now(),
	}
	if req.Price != 0 {
		order.Price = decimal.NewFromFloat(req.Price)
	}

	if err := order.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := s.core.Route(r.Context(), order)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.hub.Broadcast(ChannelExecutions, result)
	s.publishResult(result)

	writeJSON(w, http.StatusOK, result)
}

// publishResult mirrors the routing outcome onto NATS: fills go to the
// routing stream, dead cycles to the rejection stream.
func (s *Server) publishResult(result *types.RoutingResult) {
	if s.events == nil {
		return
	}

	var err error
	if result.Success {
		err = s.events.PublishRoutingResult(result.Symbol, &nats.RoutingResultMessage{
			Result:    *result,
			Timestamp: time.Now(),
		})
	} else {
		err = s.events.PublishRejection(result.Symbol, &nats.RejectionMessage{
			OrderID:   result.OrderID,
			Symbol:    result.Symbol,
			Reason:    result.Reason,
			Timestamp: time.Now(),
		})
	}
	if err != nil {
		s.logger.WithField("order_id", result.OrderID).Errorf("publish result: %v", err)
	}
}

func (s *Server) listOrders(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	orders := s.core.Recent(limit)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"orders": orders,
		"count":  len(orders),
		"limit":  limit,
	})
}

func (s *Server) listVenues(w http.ResponseWriter, r *http.Request) {
	venues := s.core.VenueStatus()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"venues": venues,
		"count":  len(venues),
	})
}

func (s *Server) getStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.core.Statistics())
}

func (s *Server) getMarketData(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(mux.Vars(r)["symbol"])

	view, err := s.books.Snapshot(symbol)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now(),
		"version":   "1.0.0",
		"venues":    len(s.core.VenueStatus()),
	})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		if !s.limiter.Allow(host) {
			writeError(w, http.StatusTooManyRequests, "Rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{
		Error:   http.StatusText(status),
		Message: message,
	})
}
