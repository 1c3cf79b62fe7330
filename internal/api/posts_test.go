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

	"github.com/rahmatsuhadi/kawis-sub001/internal/api/middleware"
	"github.com/rahmatsuhadi/kawis-sub001/internal/config"
	"github.com/rahmatsuhadi/kawis-sub001/internal/model"
	"github.com/rahmatsuhadi/kawis-sub001/internal/pkg/metrics"
	"github.com/rahmatsuhadi/kawis-sub001/internal/store"

	"github.com/gin-gonic/gin"
)

type mockPostStore struct {
	createFunc    func(ctx context.Context, post *model.EventPost) error
	getDetailFunc func(ctx context.Context, id string) (*model.EventPost, error)
	likeFunc      func(ctx context.Context, postID string, userID uint) (bool, error)
	unlikeFunc    func(ctx context.Context, postID string, userID uint) error
	createCalls   int
	likeCalls     int
}

func (m *mockPostStore) Create(ctx context.Context, post *model.EventPost) error {
	m.createCalls++
	return m.createFunc(ctx, post)
}

func (m *mockPostStore) GetDetail(ctx context.Context, id string) (*model.EventPost, error) {
	return m.getDetailFunc(ctx, id)
}

func (m *mockPostStore) Like(ctx context.Context, postID string, userID uint) (bool, error) {
	m.likeCalls++
	return m.likeFunc(ctx, postID, userID)
}

func (m *mockPostStore) Unlike(ctx context.Context, postID string, userID uint) error {
	if m.unlikeFunc != nil {
		return m.unlikeFunc(ctx, postID, userID)
	}
	return nil
}

func newTestServer(posts store.PostStore) *Server {
	return &Server{
		cfg:    &config.Config{},
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		posts:  posts,
	}
}

func TestGetPostDetail_NotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)
	metrics.InitMetrics()

	posts := &mockPostStore{
		getDetailFunc: func(ctx context.Context, id string) (*model.EventPost, error) {
			return nil, store.ErrNotFound
		},
	}
	s := newTestServer(posts)

	r := gin.New()
	r.GET("/posts/:postId", s.handleGetPostDetail)

	req := httptest.NewRequest(http.MethodGet, "/posts/does-not-exist", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if body["message"] != "Post not found" {
		t.Fatalf("expected 'Post not found' message, got %q", body["message"])
	}
}

func TestGetPostDetail_WithLikes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	metrics.InitMetrics()

	author := model.User{ID: 7, Name: "Rina", Username: "rina"}
	authorID := author.ID
	posts := &mockPostStore{
		getDetailFunc: func(ctx context.Context, id string) (*model.EventPost, error) {
			return &model.EventPost{
				ID:        id,
				Content:   "seru banget acaranya",
				CreatorID: &authorID,
				Creator:   &author,
				Event:     model.Event{ID: "ev-1", Title: "Pasar Malam Alun-Alun"},
				Likes: []model.PostLike{
					{PostID: id, UserID: 3},
					{PostID: id, UserID: 9},
				},
			}, nil
		},
	}
	s := newTestServer(posts)

	r := gin.New()
	r.GET("/posts/:postId", s.handleGetPostDetail)

	req := httptest.NewRequest(http.MethodGet, "/posts/p-1", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var resp postDetailResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.EventName != "Pasar Malam Alun-Alun" {
		t.Fatalf("expected event name, got %q", resp.EventName)
	}
	if len(resp.LikedBy) != 2 || resp.LikedBy[0] != 3 || resp.LikedBy[1] != 9 {
		t.Fatalf("unexpected liked_by: %v", resp.LikedBy)
	}
	if resp.Author.Name != "Rina" || resp.Author.IsAnonymous {
		t.Fatalf("unexpected author: %+v", resp.Author)
	}
}

func TestGetPostDetail_StoreError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	metrics.InitMetrics()

	posts := &mockPostStore{
		getDetailFunc: func(ctx context.Context, id string) (*model.EventPost, error) {
			return nil, context.DeadlineExceeded
		},
	}
	s := newTestServer(posts)

	r := gin.New()
	r.GET("/posts/:postId", s.handleGetPostDetail)

	req := httptest.NewRequest(http.MethodGet, "/posts/p-1", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	// 内部错误细节不允许出现在响应里
	if bytes.Contains(w.Body.Bytes(), []byte("deadline")) {
		t.Fatalf("internal error leaked to client: %s", w.Body.String())
	}
}

func TestCreatePost_AnonymousRequiresName(t *testing.T) {
	gin.SetMode(gin.TestMode)
	metrics.InitMetrics()

	posts := &mockPostStore{
		createFunc: func(ctx context.Context, post *model.EventPost) error { return nil },
	}
	s := newTestServer(posts)

	r := gin.New()
	r.POST("/events/:id/posts", s.handleCreatePost)

	payload, _ := json.Marshal(createPostRequest{Content: "halo"})
	req := httptest.NewRequest(http.MethodPost, "/events/ev-1/posts", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if posts.createCalls != 0 {
		t.Fatalf("expected no create on invalid anonymous submission")
	}
}

func TestCreatePost_Anonymous(t *testing.T) {
	gin.SetMode(gin.TestMode)
	metrics.InitMetrics()

	var got *model.EventPost
	posts := &mockPostStore{
		createFunc: func(ctx context.Context, post *model.EventPost) error {
			got = post
			return nil
		},
	}
	s := newTestServer(posts)

	r := gin.New()
	r.POST("/events/:id/posts", s.handleCreatePost)

	payload, _ := json.Marshal(createPostRequest{Content: "halo", AnonymousName: "Warga"})
	req := httptest.NewRequest(http.MethodPost, "/events/ev-1/posts", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", w.Code)
	}
	if got == nil || got.CreatorID != nil || got.AnonymousName != "Warga" {
		t.Fatalf("unexpected stored post: %+v", got)
	}
	if got.EventID != "ev-1" {
		t.Fatalf("expected event id ev-1, got %q", got.EventID)
	}
}

func TestLikePost_Idempotent(t *testing.T) {
	gin.SetMode(gin.TestMode)
	metrics.InitMetrics()

	liked := false
	posts := &mockPostStore{
		likeFunc: func(ctx context.Context, postID string, userID uint) (bool, error) {
			created := !liked
			liked = true
			return created, nil
		},
	}
	s := newTestServer(posts)

	r := gin.New()
	r.POST("/posts/:postId/like", func(c *gin.Context) {
		middleware.SetSession(c, &middleware.Session{UserID: 5, Role: "regular"})
		s.handleLikePost(c)
	})

	for i, wantAlready := range []bool{false, true} {
		req := httptest.NewRequest(http.MethodPost, "/posts/p-1/like", nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("call %d: expected 200, got %d", i, w.Code)
		}
		var body map[string]bool
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("unmarshal response: %v", err)
		}
		if body["already_liked"] != wantAlready {
			t.Fatalf("call %d: expected already_liked=%v, got %v", i, wantAlready, body["already_liked"])
		}
	}
	if posts.likeCalls != 2 {
		t.Fatalf("expected 2 like calls, got %d", posts.likeCalls)
	}
}
