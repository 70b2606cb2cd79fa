package httpapi

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/example/delivery-dispatch/internal/auth"
	"github.com/example/delivery-dispatch/internal/observability"
	"github.com/example/delivery-dispatch/internal/config"
	"github.com/example/delivery-dispatch/internal/geo"
	"github.com/example/delivery-dispatch/internal/match"
	"github.com/example/delivery-dispatch/internal/models"
	"github.com/example/delivery-dispatch/internal/notify"
	"github.com/example/delivery-dispatch/internal/order"
	"github.com/example/delivery-dispatch/internal/realtime"
	"github.com/example/delivery-dispatch/internal/storage"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	return testServerWithLogger(t, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func testServerWithLogger(t *testing.T, logger *slog.Logger) *Server {
	t.Helper()
	verifier, err := auth.NewJWTVerifier("test-secret")
	if err != nil {
		t.Fatalf("verifier: %v", err)
	}
	hub := realtime.NewHub(verifier, logger)
	dispatcher := notify.NewDispatcher(hub, logger)

	merchants := storage.NewMemoryMerchants()
	merchants.Upsert(models.Merchant{
		ID: "m1", Name: "Warung Tekno", Open: true,
		Loc:     models.Coordinate{Lat: -6.2, Lon: 106.8},
		BaseFee: 3000,
	})

	orders := &order.Service{
		Store:          storage.NewMemoryStore(),
		Merchants:      merchants,
		Notifier:       dispatcher,
		Logger:         logger,
		ServiceFeeRate: 0.05,
	}
	drivers := geo.NewIndex()
	matcher := &match.Service{Drivers: drivers, Notifier: dispatcher, MaxDistanceKm: 5, TopN: 8, Logger: logger}

	cfg := config.ServerConfig{MaxDriverDistanceKm: 5, MaxMerchantDistanceKm: 10, DispatchTopN: 8}
	return NewServer(cfg, logger, Deps{
		Hub: hub, Orders: orders, Matcher: matcher,
		Drivers: drivers, Merchants: merchants,
	})
}

func doJSON(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	return w
}

func placeTestOrder(t *testing.T, srv *Server) (id, number string) {
	t.Helper()
	w := doJSON(t, srv, "POST", "/api/v1/orders", order.PlaceRequest{
		CustomerID:      "c1",
		MerchantID:      "m1",
		Items:           []order.PlaceItem{{MenuItemID: "i1", Quantity: 2, UnitPrice: 25000}},
		DeliveryAddress: "Jl. Sudirman No. 1",
		DeliveryLoc:     models.Coordinate{Lat: -6.21, Lon: 106.81},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("place: status %d body %s", w.Code, w.Body.String())
	}
	var resp struct {
		OrderID     string `json:"orderId"`
		OrderNumber string `json:"orderNumber"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return resp.OrderID, resp.OrderNumber
}

func TestPlaceAndGetOrder(t *testing.T) {
	srv := testServer(t)
	id, number := placeTestOrder(t, srv)
	if !strings.HasPrefix(number, "ORD") {
		t.Fatalf("unexpected order number %q", number)
	}

	w := doJSON(t, srv, "GET", "/api/v1/orders/"+id, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get: status %d", w.Code)
	}
	var o models.Order
	if err := json.Unmarshal(w.Body.Bytes(), &o); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if o.Status != models.StatusPending {
		t.Fatalf("expected pending, got %s", o.Status)
	}
	if o.Subtotal != 50000 || o.ServiceFee != 2500 {
		t.Fatalf("wrong amounts: subtotal=%d service=%d", o.Subtotal, o.ServiceFee)
	}
}

func TestGetOrderNotFound(t *testing.T) {
	srv := testServer(t)
	if w := doJSON(t, srv, "GET", "/api/v1/orders/nope", nil); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestTransitionEndpoint(t *testing.T) {
	srv := testServer(t)
	id, _ := placeTestOrder(t, srv)

	w := doJSON(t, srv, "POST", "/api/v1/orders/"+id+"/status", transitionRequest{
		Status: models.StatusConfirmed, ActorID: "m1",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("confirm: status %d body %s", w.Code, w.Body.String())
	}

	// skipping straight to delivered must be rejected
	w = doJSON(t, srv, "POST", "/api/v1/orders/"+id+"/status", transitionRequest{
		Status: models.StatusDelivered, ActorID: "d1",
	})
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", w.Code)
	}
}

func TestAssignDriverEndpoint(t *testing.T) {
	srv := testServer(t)
	id, _ := placeTestOrder(t, srv)

	w := doJSON(t, srv, "POST", "/api/v1/orders/"+id+"/driver", map[string]string{"driver_id": "d9"})
	if w.Code != http.StatusOK {
		t.Fatalf("assign: status %d body %s", w.Code, w.Body.String())
	}
	var o models.Order
	if err := json.Unmarshal(w.Body.Bytes(), &o); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if o.DriverID != "d9" {
		t.Fatalf("driver not assigned: %q", o.DriverID)
	}

	if w := doJSON(t, srv, "POST", "/api/v1/orders/"+id+"/driver", map[string]string{}); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing driver_id, got %d", w.Code)
	}
}

func TestRequestPickupNoDrivers(t *testing.T) {
	srv := testServer(t)
	id, _ := placeTestOrder(t, srv)
	if w := doJSON(t, srv, "POST", "/api/v1/orders/"+id+"/dispatch", nil); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 with no drivers, got %d", w.Code)
	}
}

func TestNearbyMerchants(t *testing.T) {
	srv := testServer(t)
	w := doJSON(t, srv, "GET", "/api/v1/merchants/nearby?lat=-6.2&lon=106.8", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d body %s", w.Code, w.Body.String())
	}
	var resp struct {
		Merchants []geo.MerchantMatch `json:"merchants"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Merchants) != 1 || resp.Merchants[0].Merchant.ID != "m1" {
		t.Fatalf("unexpected merchants: %+v", resp.Merchants)
	}

	if w := doJSON(t, srv, "GET", "/api/v1/merchants/nearby", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without coords, got %d", w.Code)
	}
}

func TestDriverLocationIngest(t *testing.T) {
	srv := testServer(t)
	w := doJSON(t, srv, "POST", "/internal/driver/locations", models.Driver{
		ID: "d1", Name: "Budi", Loc: models.Coordinate{Lat: -6.2, Lon: 106.8},
	})
	if w.Code != http.StatusNoContent {
		t.Fatalf("status %d body %s", w.Code, w.Body.String())
	}

	got := doJSON(t, srv, "GET", "/api/v1/drivers/nearby?lat=-6.2&lon=106.8", nil)
	var resp struct {
		Drivers []geo.DriverDistance `json:"drivers"`
	}
	if err := json.Unmarshal(got.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Drivers) != 1 || resp.Drivers[0].Driver.ID != "d1" {
		t.Fatalf("unexpected drivers: %+v", resp.Drivers)
	}

	if w := doJSON(t, srv, "POST", "/internal/driver/locations", models.Driver{ID: "d2", Loc: models.Coordinate{Lat: 99, Lon: 0}}); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad coordinate, got %d", w.Code)
	}
}

func TestRequestLogFields(t *testing.T) {
	var buf bytes.Buffer
	srv := testServerWithLogger(t, slog.New(slog.NewJSONHandler(&buf, nil)))

	req := httptest.NewRequest("GET", "/api/v1/orders/abc123", nil)
	req.Header.Set("X-Request-ID", "req-42")
	srv.ServeHTTP(httptest.NewRecorder(), req)

	line := buf.String()
	for _, want := range []string{
		`"route":"/api/v1/orders/{id}"`,
		`"order_id":"abc123"`,
		`"request_id":"req-42"`,
		`"status":404`,
	} {
		if !strings.Contains(line, want) {
			t.Fatalf("request log missing %s:\n%s", want, line)
		}
	}
}

func TestDriversOnlineGaugeCountsDistinctDrivers(t *testing.T) {
	srv := testServer(t)
	push := func(id string, lat float64) {
		w := doJSON(t, srv, "POST", "/internal/driver/locations", models.Driver{
			ID: id, Loc: models.Coordinate{Lat: lat, Lon: 106.8},
		})
		if w.Code != http.StatusNoContent {
			t.Fatalf("push %s: status %d", id, w.Code)
		}
	}

	// the same driver pushing twice is still one online driver
	push("d1", -6.20)
	push("d1", -6.21)
	if got := testutil.ToFloat64(observability.DriversOnline); got != 1 {
		t.Fatalf("gauge = %v after repeat pushes, want 1", got)
	}

	push("d2", -6.22)
	if got := testutil.ToFloat64(observability.DriversOnline); got != 2 {
		t.Fatalf("gauge = %v with two drivers, want 2", got)
	}
}
