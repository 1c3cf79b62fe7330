package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rahmatsuhadi/kawis-sub001/internal/api/middleware"
	"github.com/rahmatsuhadi/kawis-sub001/internal/config"
	"github.com/rahmatsuhadi/kawis-sub001/internal/model"
	"github.com/rahmatsuhadi/kawis-sub001/internal/pkg/metrics"

	"github.com/gin-gonic/gin"
)

type mockEventStore struct {
	createFunc       func(ctx context.Context, event *model.Event) error
	listApprovedFunc func(ctx context.Context, limit, offset int) ([]model.Event, error)
	getApprovedFunc  func(ctx context.Context, id string) (*model.Event, error)
	getFunc          func(ctx context.Context, id string) (*model.Event, error)
	setApprovedFunc  func(ctx context.Context, id string, approved bool) error
	createCalls      int
}

func (m *mockEventStore) Create(ctx context.Context, event *model.Event) error {
	m.createCalls++
	return m.createFunc(ctx, event)
}

func (m *mockEventStore) ListApproved(ctx context.Context, limit, offset int) ([]model.Event, error) {
	return m.listApprovedFunc(ctx, limit, offset)
}

func (m *mockEventStore) GetApproved(ctx context.Context, id string) (*model.Event, error) {
	return m.getApprovedFunc(ctx, id)
}

func (m *mockEventStore) Get(ctx context.Context, id string) (*model.Event, error) {
	return m.getFunc(ctx, id)
}

func (m *mockEventStore) SetApproved(ctx context.Context, id string, approved bool) error {
	if m.setApprovedFunc != nil {
		return m.setApprovedFunc(ctx, id, approved)
	}
	return nil
}

func (m *mockEventStore) CountPosts(ctx context.Context, eventID string) (int64, error) {
	return 0, nil
}

type mockCategoryStore struct {
	getByIDsFunc func(ctx context.Context, ids []string) ([]model.Category, error)
}

func (m *mockCategoryStore) GetByIDs(ctx context.Context, ids []string) ([]model.Category, error) {
	if m.getByIDsFunc != nil {
		return m.getByIDsFunc(ctx, ids)
	}
	return nil, nil
}

func (m *mockCategoryStore) ListAll(ctx context.Context) ([]model.Category, error) {
	return nil, nil
}

func newEventTestServer(events *mockEventStore, categories *mockCategoryStore) *Server {
	if categories == nil {
		categories = &mockCategoryStore{}
	}
	return &Server{
		cfg: &config.Config{App: config.AppConfig{
			NearbyDefaultRadiusKm: 10,
			NearbyMaxRadiusKm:     100,
			NearbyScanLimit:       500,
			MaxImagesPerEvent:     5,
		}},
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		events:     events,
		categories: categories,
	}
}

func TestCreateEvent_AnonymousRequiresName(t *testing.T) {
	gin.SetMode(gin.TestMode)
	metrics.InitMetrics()

	events := &mockEventStore{
		createFunc: func(ctx context.Context, event *model.Event) error { return nil },
	}
	s := newEventTestServer(events, nil)

	r := gin.New()
	r.POST("/events", s.handleCreateEvent)

	payload, _ := json.Marshal(createEventRequest{
		Title:       "Festival Jajanan",
		Description: "kuliner malam",
		EventDate:   time.Now().Add(48 * time.Hour).Format(time.RFC3339),
	})
	req := httptest.NewRequest(http.MethodPost, "/events", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if events.createCalls != 0 {
		t.Fatalf("expected no create for nameless anonymous submission")
	}
}

func TestCreateEvent_CoordinatesMustPair(t *testing.T) {
	gin.SetMode(gin.TestMode)
	metrics.InitMetrics()

	events := &mockEventStore{
		createFunc: func(ctx context.Context, event *model.Event) error { return nil },
	}
	s := newEventTestServer(events, nil)

	r := gin.New()
	r.POST("/events", s.handleCreateEvent)

	lat := -7.797
	payload, _ := json.Marshal(createEventRequest{
		Title:         "Senam Pagi",
		Description:   "di alun-alun",
		EventDate:     time.Now().Add(24 * time.Hour).Format(time.RFC3339),
		AnonymousName: "Warga",
		Latitude:      &lat,
	})
	req := httptest.NewRequest(http.MethodPost, "/events", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestCreateEvent_AuthenticatedTransactional(t *testing.T) {
	gin.SetMode(gin.TestMode)
	metrics.InitMetrics()

	var got *model.Event
	events := &mockEventStore{
		createFunc: func(ctx context.Context, event *model.Event) error {
			got = event
			return nil
		},
	}
	categories := &mockCategoryStore{
		getByIDsFunc: func(ctx context.Context, ids []string) ([]model.Category, error) {
			out := make([]model.Category, 0, len(ids))
			for _, id := range ids {
				out = append(out, model.Category{ID: id, Name: "Musik"})
			}
			return out, nil
		},
	}
	s := newEventTestServer(events, categories)

	r := gin.New()
	r.POST("/events", func(c *gin.Context) {
		middleware.SetSession(c, &middleware.Session{UserID: 42, Role: "regular", DisplayName: "Budi"})
		s.handleCreateEvent(c)
	})

	// 超过 8 位小数的坐标也必须原样通过
	lat, lon := -6.123456789012, 106.876543210987
	payload, _ := json.Marshal(createEventRequest{
		Title:       "Konser Akustik",
		Description: "musik santai",
		EventDate:   time.Now().Add(72 * time.Hour).Format(time.RFC3339),
		Latitude:    &lat,
		Longitude:   &lon,
		CategoryIDs: []string{"cat-1"},
		ImageURLs:   []string{"https://img.example/a.jpg", "https://img.example/b.jpg"},
	})
	req := httptest.NewRequest(http.MethodPost, "/events", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	if got == nil {
		t.Fatalf("expected event to reach the store")
	}
	if got.CreatorID == nil || *got.CreatorID != 42 {
		t.Fatalf("expected creator id 42, got %+v", got.CreatorID)
	}
	if got.IsApproved {
		t.Fatalf("new events must start unapproved")
	}
	if len(got.Images) != 2 || len(got.Categories) != 1 {
		t.Fatalf("expected images and categories attached before the single store call, got %d images %d categories", len(got.Images), len(got.Categories))
	}
	// 坐标必须原样入库，读回不允许有精度损失
	if got.Latitude == nil || *got.Latitude != lat || got.Longitude == nil || *got.Longitude != lon {
		t.Fatalf("coordinates changed on the way to the store: %+v %+v", got.Latitude, got.Longitude)
	}
}

func TestListEvents_NearbySortsByDistance(t *testing.T) {
	gin.SetMode(gin.TestMode)
	metrics.InitMetrics()

	coord := func(lat, lon float64) (*float64, *float64) { return &lat, &lon }

	nearLat, nearLon := coord(-6.21, 106.81)
	farLat, farLon := coord(-6.35, 106.95)
	events := &mockEventStore{
		listApprovedFunc: func(ctx context.Context, limit, offset int) ([]model.Event, error) {
			return []model.Event{
				{ID: "far", Title: "Jauh", Latitude: farLat, Longitude: farLon},
				{ID: "no-pin", Title: "Tanpa Lokasi"},
				{ID: "near", Title: "Dekat", Latitude: nearLat, Longitude: nearLon},
			}, nil
		},
	}
	s := newEventTestServer(events, nil)

	r := gin.New()
	r.GET("/events", s.handleListEvents)

	req := httptest.NewRequest(http.MethodGet, "/events?lat=-6.2&lon=106.8&radius_km=50", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var body struct {
		Events []eventResponse `json:"events"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if len(body.Events) != 2 {
		t.Fatalf("expected 2 events within radius (no-pin excluded), got %d", len(body.Events))
	}
	if body.Events[0].ID != "near" || body.Events[1].ID != "far" {
		t.Fatalf("expected nearest-first ordering, got %s then %s", body.Events[0].ID, body.Events[1].ID)
	}
	if body.Events[0].DistanceKm == nil || *body.Events[0].DistanceKm >= *body.Events[1].DistanceKm {
		t.Fatalf("distances not ascending")
	}
}

func TestCreateEvent_DuplicateCategoryIDs(t *testing.T) {
	gin.SetMode(gin.TestMode)
	metrics.InitMetrics()

	var got *model.Event
	events := &mockEventStore{
		createFunc: func(ctx context.Context, event *model.Event) error {
			got = event
			return nil
		},
	}
	var askedIDs []string
	categories := &mockCategoryStore{
		getByIDsFunc: func(ctx context.Context, ids []string) ([]model.Category, error) {
			askedIDs = ids
			out := make([]model.Category, 0, len(ids))
			for _, id := range ids {
				out = append(out, model.Category{ID: id, Name: "Musik"})
			}
			return out, nil
		},
	}
	s := newEventTestServer(events, categories)

	r := gin.New()
	r.POST("/events", s.handleCreateEvent)

	payload, _ := json.Marshal(createEventRequest{
		Title:         "Pentas Seni",
		Description:   "pentas akhir pekan",
		EventDate:     time.Now().Add(24 * time.Hour).Format(time.RFC3339),
		AnonymousName: "Warga",
		CategoryIDs:   []string{"cat-1", "cat-1", "cat-1"},
	})
	req := httptest.NewRequest(http.MethodPost, "/events", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	// 重复的已存在分类不是 "unknown category id"
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	if len(askedIDs) != 1 {
		t.Fatalf("expected deduplicated lookup, store asked for %v", askedIDs)
	}
	if got == nil || len(got.Categories) != 1 {
		t.Fatalf("expected exactly one category attached, got %+v", got)
	}
}

func TestListEvents_NearbyUsesConfiguredScanLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	metrics.InitMetrics()

	var gotLimit, gotOffset int
	events := &mockEventStore{
		listApprovedFunc: func(ctx context.Context, limit, offset int) ([]model.Event, error) {
			gotLimit, gotOffset = limit, offset
			return nil, nil
		},
	}
	s := newEventTestServer(events, nil)

	r := gin.New()
	r.GET("/events", s.handleListEvents)

	req := httptest.NewRequest(http.MethodGet, "/events?lat=-6.2&lon=106.8&offset=40", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	// 距离过滤在取回之后做，取回批大小来自配置，分页偏移不参与取回
	if gotLimit != 500 || gotOffset != 0 {
		t.Fatalf("expected fetch with limit=500 offset=0, got limit=%d offset=%d", gotLimit, gotOffset)
	}
}

func TestListEvents_InvalidCoordinates(t *testing.T) {
	gin.SetMode(gin.TestMode)
	metrics.InitMetrics()

	events := &mockEventStore{
		listApprovedFunc: func(ctx context.Context, limit, offset int) ([]model.Event, error) {
			return nil, nil
		},
	}
	s := newEventTestServer(events, nil)

	r := gin.New()
	r.GET("/events", s.handleListEvents)

	req := httptest.NewRequest(http.MethodGet, "/events?lat=abc&lon=106.8", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}
