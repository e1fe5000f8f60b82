package user

import (
	"context"
	"errors"
	"testing"

	"github.com/hitoshi/steamnotif/internal/model"
)

type mockUserRepo struct {
	findBySteamIDFunc func(ctx context.Context, steamID string) (*model.User, error)
	created           []*model.User
	updatedSettings   []*model.User
}

func (m *mockUserRepo) FindBySteamID(ctx context.Context, steamID string) (*model.User, error) {
	return m.findBySteamIDFunc(ctx, steamID)
}
func (m *mockUserRepo) Create(ctx context.Context, user *model.User) error {
	m.created = append(m.created, user)
	return nil
}
func (m *mockUserRepo) UpdateProfile(ctx context.Context, steamID, username, avatarURL string) error {
	return nil
}
func (m *mockUserRepo) UpdateNotificationSettings(ctx context.Context, user *model.User) error {
	m.updatedSettings = append(m.updatedSettings, user)
	return nil
}
func (m *mockUserRepo) AddFollowedGame(ctx context.Context, steamID, appID string) error { return nil }
func (m *mockUserRepo) RemoveFollowedGame(ctx context.Context, steamID, appID string) error {
	return nil
}
func (m *mockUserRepo) ListAll(ctx context.Context) ([]*model.User, error) { return nil, nil }
func (m *mockUserRepo) FindEligibleBySteamIDs(ctx context.Context, steamIDs []string) ([]*model.User, error) {
	return nil, nil
}
func (m *mockUserRepo) TouchLastChecked(ctx context.Context, steamID string) error { return nil }

type mockProfileFetcher struct {
	getPlayerSummaryFunc func(ctx context.Context, steamID string) (*model.PlayerProfile, error)
}

func (m *mockProfileFetcher) GetPlayerSummary(ctx context.Context, steamID string) (*model.PlayerProfile, error) {
	return m.getPlayerSummaryFunc(ctx, steamID)
}

const validSteamID = "76561198000000001"

func TestRegister_CreatesUserWithProfile(t *testing.T) {
	repo := &mockUserRepo{
		findBySteamIDFunc: func(ctx context.Context, steamID string) (*model.User, error) {
			return nil, nil
		},
	}
	profiles := &mockProfileFetcher{
		getPlayerSummaryFunc: func(ctx context.Context, steamID string) (*model.PlayerProfile, error) {
			return &model.PlayerProfile{SteamID: steamID, Username: "gordon", AvatarURL: "https://a/b.jpg"}, nil
		},
	}

	service := NewService(repo, profiles)
	user, err := service.Register(context.Background(), validSteamID)
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}

	if user.Username != "gordon" || user.AvatarURL != "https://a/b.jpg" {
		t.Errorf("profile info not applied: %+v", user)
	}
	if !user.NotificationsEnabled {
		t.Error("notifications must default to enabled")
	}
	if user.PushToken != "" {
		t.Error("push token must default to empty")
	}
	if len(repo.created) != 1 {
		t.Errorf("expected 1 user created, got %d", len(repo.created))
	}
}

func TestRegister_RejectsDuplicate(t *testing.T) {
	repo := &mockUserRepo{
		findBySteamIDFunc: func(ctx context.Context, steamID string) (*model.User, error) {
			return &model.User{SteamID: steamID}, nil
		},
	}
	service := NewService(repo, &mockProfileFetcher{})

	_, err := service.Register(context.Background(), validSteamID)
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeUserAlreadyExists {
		t.Errorf("expected USER_ALREADY_EXISTS, got %v", err)
	}
}

func TestRegister_RejectsInvalidSteamID(t *testing.T) {
	service := NewService(&mockUserRepo{}, &mockProfileFetcher{})

	for _, steamID := range []string{"", "abc", "1234", "7656119800000000a", "765611980000000012"} {
		_, err := service.Register(context.Background(), steamID)
		var apiErr *model.APIError
		if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeInvalidSteamID {
			t.Errorf("steamID %q: expected INVALID_STEAMID, got %v", steamID, err)
		}
	}
}

func TestRegister_PropagatesProfileNotFound(t *testing.T) {
	repo := &mockUserRepo{
		findBySteamIDFunc: func(ctx context.Context, steamID string) (*model.User, error) {
			return nil, nil
		},
	}
	profiles := &mockProfileFetcher{
		getPlayerSummaryFunc: func(ctx context.Context, steamID string) (*model.PlayerProfile, error) {
			return nil, model.NewProfileNotFoundError(steamID)
		},
	}
	service := NewService(repo, profiles)

	_, err := service.Register(context.Background(), validSteamID)
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeProfileNotFound {
		t.Errorf("expected PROFILE_NOT_FOUND, got %v", err)
	}
	if len(repo.created) != 0 {
		t.Error("user must not be created when the profile lookup fails")
	}
}

func TestGet_UnknownUser(t *testing.T) {
	repo := &mockUserRepo{
		findBySteamIDFunc: func(ctx context.Context, steamID string) (*model.User, error) {
			return nil, nil
		},
	}
	service := NewService(repo, &mockProfileFetcher{})

	_, err := service.Get(context.Background(), validSteamID)
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeUserNotFound {
		t.Errorf("expected USER_NOT_FOUND, got %v", err)
	}
}

func TestUpdateNotificationSettings(t *testing.T) {
	repo := &mockUserRepo{
		findBySteamIDFunc: func(ctx context.Context, steamID string) (*model.User, error) {
			return &model.User{SteamID: steamID, NotificationsEnabled: false}, nil
		},
	}
	service := NewService(repo, &mockProfileFetcher{})

	updated, err := service.UpdateNotificationSettings(context.Background(), validSteamID, NotificationSettings{
		NotificationsEnabled: true,
		PushToken:            "device-token",
		AutoFollowNewGames:   true,
	})
	if err != nil {
		t.Fatalf("UpdateNotificationSettings returned error: %v", err)
	}
	if !updated.NotificationsEnabled || updated.PushToken != "device-token" || !updated.AutoFollowNewGames {
		t.Errorf("settings not applied: %+v", updated)
	}
	if len(repo.updatedSettings) != 1 {
		t.Errorf("expected 1 settings update, got %d", len(repo.updatedSettings))
	}
}
