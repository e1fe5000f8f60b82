package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/steamnotif/internal/model"
	"github.com/hitoshi/steamnotif/internal/user"
)

type mockUserService struct {
	registerFunc func(ctx context.Context, steamID string) (*model.User, error)
	getFunc      func(ctx context.Context, steamID string) (*model.User, error)
	updateFunc   func(ctx context.Context, steamID string, settings user.NotificationSettings) (*model.User, error)
}

func (m *mockUserService) Register(ctx context.Context, steamID string) (*model.User, error) {
	return m.registerFunc(ctx, steamID)
}
func (m *mockUserService) Get(ctx context.Context, steamID string) (*model.User, error) {
	return m.getFunc(ctx, steamID)
}
func (m *mockUserService) UpdateNotificationSettings(ctx context.Context, steamID string, settings user.NotificationSettings) (*model.User, error) {
	return m.updateFunc(ctx, steamID, settings)
}

type mockSubscriptionService struct {
	followFunc   func(ctx context.Context, steamID, appID, gameName string) error
	unfollowFunc func(ctx context.Context, steamID, appID string) error
}

func (m *mockSubscriptionService) Follow(ctx context.Context, steamID, appID, gameName string) error {
	return m.followFunc(ctx, steamID, appID, gameName)
}
func (m *mockSubscriptionService) Unfollow(ctx context.Context, steamID, appID string) error {
	return m.unfollowFunc(ctx, steamID, appID)
}

func newUserTestRouter(users UserServiceInterface, subs SubscriptionServiceInterface) http.Handler {
	r := chi.NewRouter()
	h := NewUserHandler(users, subs)
	r.Post("/api/users/register", h.Register)
	r.Get("/api/users/{steamId}", h.GetUser)
	r.Put("/api/users/{steamId}/notifications", h.UpdateNotifications)
	r.Post("/api/users/{steamId}/follow", h.Follow)
	r.Delete("/api/users/{steamId}/follow/{appId}", h.Unfollow)
	return r
}

func TestRegister_ReturnsCreatedUser(t *testing.T) {
	users := &mockUserService{
		registerFunc: func(ctx context.Context, steamID string) (*model.User, error) {
			return &model.User{SteamID: steamID, Username: "gordon", NotificationsEnabled: true}, nil
		},
	}
	router := newUserTestRouter(users, &mockSubscriptionService{})

	req := httptest.NewRequest(http.MethodPost, "/api/users/register",
		strings.NewReader(`{"steam_id":"76561198000000001"}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201 (body: %s)", w.Code, w.Body.String())
	}

	var resp userResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response is not JSON: %v", err)
	}
	if resp.SteamID != "76561198000000001" || resp.Username != "gordon" {
		t.Errorf("unexpected response: %+v", resp)
	}
	if resp.FollowedGameIDs == nil {
		t.Error("followed_game_ids must be an empty array, not null")
	}
}

func TestRegister_InvalidBody(t *testing.T) {
	router := newUserTestRouter(&mockUserService{}, &mockSubscriptionService{})

	req := httptest.NewRequest(http.MethodPost, "/api/users/register", strings.NewReader("{"))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestRegister_DuplicateMapsToConflict(t *testing.T) {
	users := &mockUserService{
		registerFunc: func(ctx context.Context, steamID string) (*model.User, error) {
			return nil, model.NewUserAlreadyExistsError(steamID)
		},
	}
	router := newUserTestRouter(users, &mockSubscriptionService{})

	req := httptest.NewRequest(http.MethodPost, "/api/users/register",
		strings.NewReader(`{"steam_id":"76561198000000001"}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", w.Code)
	}

	var resp apiErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("error response is not JSON: %v", err)
	}
	if resp.Code != model.ErrCodeUserAlreadyExists {
		t.Errorf("code = %s, want USER_ALREADY_EXISTS", resp.Code)
	}
}

func TestGetUser_NotFoundMapsTo404(t *testing.T) {
	users := &mockUserService{
		getFunc: func(ctx context.Context, steamID string) (*model.User, error) {
			return nil, model.NewUserNotFoundError(steamID)
		},
	}
	router := newUserTestRouter(users, &mockSubscriptionService{})

	req := httptest.NewRequest(http.MethodGet, "/api/users/76561198000000001", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestGetUser_DoesNotExposePushToken(t *testing.T) {
	users := &mockUserService{
		getFunc: func(ctx context.Context, steamID string) (*model.User, error) {
			return &model.User{SteamID: steamID, PushToken: "secret-token"}, nil
		},
	}
	router := newUserTestRouter(users, &mockSubscriptionService{})

	req := httptest.NewRequest(http.MethodGet, "/api/users/76561198000000001", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if strings.Contains(w.Body.String(), "secret-token") {
		t.Error("push token must not appear in the response body")
	}
	if !strings.Contains(w.Body.String(), `"has_push_token":true`) {
		t.Errorf("has_push_token flag missing: %s", w.Body.String())
	}
}

func TestUpdateNotifications_PassesSettings(t *testing.T) {
	var got user.NotificationSettings
	users := &mockUserService{
		updateFunc: func(ctx context.Context, steamID string, settings user.NotificationSettings) (*model.User, error) {
			got = settings
			return &model.User{SteamID: steamID}, nil
		},
	}
	router := newUserTestRouter(users, &mockSubscriptionService{})

	body := `{"notifications_enabled":true,"push_token":"tok","auto_follow_new_games":true}`
	req := httptest.NewRequest(http.MethodPut, "/api/users/76561198000000001/notifications",
		strings.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !got.NotificationsEnabled || got.PushToken != "tok" || !got.AutoFollowNewGames {
		t.Errorf("settings not passed through: %+v", got)
	}
}

func TestFollow_ReturnsNoContent(t *testing.T) {
	var followedApp string
	subs := &mockSubscriptionService{
		followFunc: func(ctx context.Context, steamID, appID, gameName string) error {
			followedApp = appID
			return nil
		},
	}
	router := newUserTestRouter(&mockUserService{}, subs)

	req := httptest.NewRequest(http.MethodPost, "/api/users/76561198000000001/follow",
		strings.NewReader(`{"app_id":"730","name":"Counter-Strike 2"}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", w.Code)
	}
	if followedApp != "730" {
		t.Errorf("app id not passed through: %q", followedApp)
	}
}

func TestFollow_DuplicateMapsToConflict(t *testing.T) {
	subs := &mockSubscriptionService{
		followFunc: func(ctx context.Context, steamID, appID, gameName string) error {
			return model.NewGameAlreadyFollowedError(appID)
		},
	}
	router := newUserTestRouter(&mockUserService{}, subs)

	req := httptest.NewRequest(http.MethodPost, "/api/users/76561198000000001/follow",
		strings.NewReader(`{"app_id":"730"}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", w.Code)
	}
}

func TestUnfollow_NotFollowedMapsTo404(t *testing.T) {
	subs := &mockSubscriptionService{
		unfollowFunc: func(ctx context.Context, steamID, appID string) error {
			return model.NewGameNotFollowedError(appID)
		},
	}
	router := newUserTestRouter(&mockUserService{}, subs)

	req := httptest.NewRequest(http.MethodDelete, "/api/users/76561198000000001/follow/730", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}
