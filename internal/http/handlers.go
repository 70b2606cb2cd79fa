package httpapi

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/delivery-dispatch/internal/auth"
	"github.com/example/delivery-dispatch/internal/config"
	"github.com/example/delivery-dispatch/internal/eta"
	"github.com/example/delivery-dispatch/internal/geo"
	"github.com/example/delivery-dispatch/internal/ingest"
	"github.com/example/delivery-dispatch/internal/logging"
	"github.com/example/delivery-dispatch/internal/match"
	"github.com/example/delivery-dispatch/internal/models"
	"github.com/example/delivery-dispatch/internal/notify"
	"github.com/example/delivery-dispatch/internal/observability"
	"github.com/example/delivery-dispatch/internal/order"
	"github.com/example/delivery-dispatch/internal/realtime"
	"github.com/example/delivery-dispatch/internal/storage"
)

type Server struct {
	cfg       config.ServerConfig
	logger    *slog.Logger
	hub       *realtime.Hub
	orders    *order.Service
	matcher   *match.Service
	drivers   geo.DriverIndex
	merchants storage.MerchantDirectory
	kafka     *ingest.KafkaProducer
	mux       *mux.Router
}

// Deps bundles the collaborators NewServer wires into the router.
type Deps struct {
	Hub       *realtime.Hub
	Orders    *order.Service
	Matcher   *match.Service
	Drivers   geo.DriverIndex
	Merchants storage.MerchantDirectory
	Kafka     *ingest.KafkaProducer
}

func NewServer(cfg config.ServerConfig, logger *slog.Logger, deps Deps) *Server {
	s := &Server{
		cfg:       cfg,
		logger:    logger,
		hub:       deps.Hub,
		orders:    deps.Orders,
		matcher:   deps.Matcher,
		drivers:   deps.Drivers,
		merchants: deps.Merchants,
		kafka:     deps.Kafka,
		mux:       mux.NewRouter(),
	}
	s.registerMiddleware()
	s.routes()
	return s
}

// NewServerFromEnv builds the full dependency graph from environment
// configuration with sensible fallbacks (in-memory stores when Redis or
// Postgres are not configured).
func NewServerFromEnv() (*Server, error) {
	cfg, err := config.LoadServerConfig()
	if err != nil {
		return nil, err
	}
	logger := logging.NewLogger("delivery-dispatch", cfg.LogLevel)

	verifier, err := auth.NewJWTVerifier(cfg.JWTSecret)
	if err != nil {
		return nil, err
	}
	hub := realtime.NewHub(verifier, logger)

	var drivers geo.DriverIndex
	if cfg.RedisAddr != "" {
		drivers = geo.NewRedisIndex(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisGeoKey)
	} else {
		drivers = geo.NewIndex()
	}

	var store storage.OrderStore
	if cfg.PGDSN != "" {
		if ps, err := storage.NewPostgresStore(cfg.PGDSN); err == nil {
			store = ps
		} else {
			logger.Warn("postgres unavailable, using memory store", "error", err)
		}
	}
	if store == nil {
		store = storage.NewMemoryStore()
	}

	merchants := storage.NewMemoryMerchants()

	dispatcher := notify.NewDispatcher(hub, logger)
	if cfg.FCMEndpoint != "" {
		dispatcher.Push = notify.NewFCMSink(cfg.FCMEndpoint, cfg.FCMKey)
	}

	orders := &order.Service{
		Store:          store,
		Merchants:      merchants,
		Notifier:       dispatcher,
		Logger:         logger,
		ServiceFeeRate: cfg.ServiceFeeRate,
	}

	matcher := &match.Service{
		Drivers:       drivers,
		Notifier:      dispatcher,
		MaxDistanceKm: cfg.MaxDriverDistanceKm,
		TopN:          cfg.DispatchTopN,
		Logger:        logger,
	}
	if cfg.OSRMEndpoint != "" {
		matcher.ETAClient = eta.NewOSRMClient(cfg.OSRMEndpoint)
		matcher.ETACache = eta.NewCache(2 * time.Minute)
	}

	var kp *ingest.KafkaProducer
	if len(cfg.KafkaBrokers) > 0 {
		kp = ingest.NewKafkaProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
	}

	return NewServer(cfg, logger, Deps{
		Hub:       hub,
		Orders:    orders,
		Matcher:   matcher,
		Drivers:   drivers,
		Merchants: merchants,
		Kafka:     kp,
	}), nil
}

func (s *Server) routes() {
	s.mux.HandleFunc("/api/v1/orders", s.handlePlaceOrder).Methods("POST")
	s.mux.HandleFunc("/api/v1/orders/{id}", s.handleGetOrder).Methods("GET")
	s.mux.HandleFunc("/api/v1/orders/{id}/status", s.handleTransition).Methods("POST")
	s.mux.HandleFunc("/api/v1/orders/{id}/driver", s.handleAssignDriver).Methods("POST")
	s.mux.HandleFunc("/api/v1/orders/{id}/dispatch", s.handleRequestPickup).Methods("POST")
	s.mux.HandleFunc("/api/v1/merchants/nearby", s.handleNearbyMerchants).Methods("GET")
	s.mux.HandleFunc("/api/v1/drivers/nearby", s.handleNearbyDrivers).Methods("GET")
	s.mux.HandleFunc("/internal/driver/locations", s.handleDriverLocation).Methods("POST")
	s.mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ok")) }).Methods("GET")
	s.mux.Handle("/metrics", promhttp.Handler())
	s.mux.HandleFunc("/ws", s.hub.HandleWS)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

// Config exposes the loaded configuration to the main package.
func (s *Server) Config() config.ServerConfig { return s.cfg }

// Logger exposes the server logger to the main package.
func (s *Server) Logger() *slog.Logger { return s.logger }

func (s *Server) handlePlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req order.PlaceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	o, err := s.orders.Place(req)
	if err != nil {
		writeError(w, placeStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"orderId":     o.ID,
		"orderNumber": o.Number,
		"totalAmount": o.Total,
		"order":       o,
	})
}

func placeStatus(err error) int {
	switch {
	case errors.Is(err, geo.ErrInvalidCoordinate):
		return http.StatusBadRequest
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusBadRequest
	}
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	o, err := s.orders.Store.GetOrder(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusNotFound, "order not found")
		return
	}
	writeJSON(w, http.StatusOK, o)
}

type transitionRequest struct {
	Status       models.OrderStatus `json:"status"`
	ActorID      string             `json:"actor_id"`
	Reason       string             `json:"reason,omitempty"`
	CustomerName string             `json:"customer_name,omitempty"`
	DriverName   string             `json:"driver_name,omitempty"`
	MerchantName string             `json:"merchant_name,omitempty"`
}

func (s *Server) handleTransition(w http.ResponseWriter, r *http.Request) {
	var req transitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	data := map[string]string{}
	if req.Reason != "" {
		data["reason"] = req.Reason
	}
	if req.CustomerName != "" {
		data["customerName"] = req.CustomerName
	}
	if req.DriverName != "" {
		data["driverName"] = req.DriverName
	}
	if req.MerchantName != "" {
		data["merchantName"] = req.MerchantName
	}

	o, err := s.orders.Transition(mux.Vars(r)["id"], req.Status, req.ActorID, data)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrNotFound):
			writeError(w, http.StatusNotFound, "order not found")
		case errors.Is(err, order.ErrInvalidTransition), errors.Is(err, order.ErrOrderFinalized):
			writeError(w, http.StatusConflict, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (s *Server) handleAssignDriver(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DriverID string `json:"driver_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.DriverID == "" {
		writeError(w, http.StatusBadRequest, "driver_id is required")
		return
	}
	o, err := s.orders.AssignDriver(mux.Vars(r)["id"], req.DriverID)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrNotFound):
			writeError(w, http.StatusNotFound, "order not found")
		case errors.Is(err, order.ErrOrderFinalized):
			writeError(w, http.StatusConflict, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (s *Server) handleRequestPickup(w http.ResponseWriter, r *http.Request) {
	o, err := s.orders.Store.GetOrder(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusNotFound, "order not found")
		return
	}
	merchant, err := s.merchants.GetMerchant(o.MerchantID)
	if err != nil {
		writeError(w, http.StatusNotFound, "merchant not found")
		return
	}
	cands := s.matcher.RequestPickup(o, merchant)
	if len(cands) == 0 {
		writeError(w, http.StatusServiceUnavailable, "no drivers available")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"candidates": cands})
}

func (s *Server) handleNearbyMerchants(w http.ResponseWriter, r *http.Request) {
	origin, err := coordFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	maxKm := floatQuery(r, "max_km", s.cfg.MaxMerchantDistanceKm)
	matches, err := geo.NearbyOpenMerchants(origin, s.merchants.ListMerchants(), maxKm)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"merchants": matches})
}

func (s *Server) handleNearbyDrivers(w http.ResponseWriter, r *http.Request) {
	origin, err := coordFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	maxKm := floatQuery(r, "max_km", s.cfg.MaxDriverDistanceKm)
	matches := s.drivers.Nearby(origin, maxKm, s.cfg.DispatchTopN)
	writeJSON(w, http.StatusOK, map[string]any{"drivers": matches})
}

func (s *Server) handleDriverLocation(w http.ResponseWriter, r *http.Request) {
	var d models.Driver
	if err := json.NewDecoder(r.Body).Decode(&d); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !d.Loc.Valid() {
		writeError(w, http.StatusBadRequest, geo.ErrInvalidCoordinate.Error())
		return
	}
	d.Online = true
	// publish to kafka if configured
	if s.kafka != nil {
		if err := s.kafka.PublishLocation(d); err != nil {
			s.logger.Warn("kafka publish failed", "driver_id", d.ID, "error", err)
		}
	}
	s.drivers.Upsert(d)
	s.hub.BroadcastDriverLocation(d.ID, d.Loc)
	// gauge tracks distinct online drivers, not pushes; the Redis index has
	// no cheap distinct count, so only the in-memory index feeds it
	if idx, ok := s.drivers.(interface{ Snapshot() []models.Driver }); ok {
		online := 0
		for _, dr := range idx.Snapshot() {
			if dr.Online {
				online++
			}
		}
		observability.DriversOnline.Set(float64(online))
	}
	w.WriteHeader(http.StatusNoContent)
}

func coordFromQuery(r *http.Request) (models.Coordinate, error) {
	lat, err1 := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	lon, err2 := strconv.ParseFloat(r.URL.Query().Get("lon"), 64)
	if err1 != nil || err2 != nil {
		return models.Coordinate{}, errors.New("lat and lon query parameters are required")
	}
	c := models.Coordinate{Lat: lat, Lon: lon}
	if !c.Valid() {
		return models.Coordinate{}, geo.ErrInvalidCoordinate
	}
	return c, nil
}

func floatQuery(r *http.Request, key string, def float64) float64 {
	if v := r.URL.Query().Get(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			return f
		}
	}
	return def
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func newID() string { b := make([]byte, 8); _, _ = rand.Read(b); return hex.EncodeToString(b) }
