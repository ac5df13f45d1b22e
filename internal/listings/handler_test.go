package listings

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"bookring/pkg/models"
)

func testRouter(t *testing.T) (*gin.Engine, *Service) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	svc, db := testService(t)
	seedUser(t, db, "u1")

	h := NewHandler(svc.Listings, svc, nil, nil, nil)
	r := gin.New()
	h.RegisterPublicRoutes(r.Group("/api"))
	return r, svc
}

func TestListAnnotatesViewerDistance(t *testing.T) {
	r, svc := testRouter(t)
	ctx := context.Background()

	lat, lon := 48.8566, 2.3522
	if _, _, err := svc.ListBook(ctx, "u1", ListRequest{
		Meta:      models.BookMeta{Title: "Dune", Authors: []string{"Frank Herbert"}},
		Condition: "Good",
		Latitude:  &lat,
		Longitude: &lon,
	}); err != nil {
		t.Fatalf("list book: %v", err)
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/listings?lat=48.8600&lon=2.3500", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Total int                    `json:"total"`
		Items []models.ListingDetail `json:"items"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Total != 1 || len(resp.Items) != 1 {
		t.Fatalf("expected one listing, got total=%d len=%d", resp.Total, len(resp.Items))
	}
	if !strings.HasSuffix(resp.Items[0].Distance, "km away") {
		t.Fatalf("expected a distance estimate, got %q", resp.Items[0].Distance)
	}
}

func TestListWithoutViewerCoords(t *testing.T) {
	r, svc := testRouter(t)
	ctx := context.Background()

	lat, lon := 48.8566, 2.3522
	if _, _, err := svc.ListBook(ctx, "u1", ListRequest{
		Meta:      models.BookMeta{Title: "Dune", Authors: []string{"Frank Herbert"}},
		Condition: "Good",
		Latitude:  &lat,
		Longitude: &lon,
	}); err != nil {
		t.Fatalf("list book: %v", err)
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/listings", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Items []models.ListingDetail `json:"items"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Items) != 1 {
		t.Fatalf("expected one listing, got %d", len(resp.Items))
	}
	if resp.Items[0].Distance != "Distance unknown" {
		t.Fatalf("expected unknown distance, got %q", resp.Items[0].Distance)
	}
}

func TestNearbyRequiresCoords(t *testing.T) {
	r, _ := testRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/listings/nearby?lat=48.86", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}
