package gamesync

import (
	"context"
	"errors"
	"testing"

	"github.com/hitoshi/steamnotif/internal/model"
)

type mockUserRepo struct {
	listAllFunc func(ctx context.Context) ([]*model.User, error)
}

func (m *mockUserRepo) FindBySteamID(ctx context.Context, steamID string) (*model.User, error) {
	return nil, nil
}
func (m *mockUserRepo) Create(ctx context.Context, user *model.User) error { return nil }
func (m *mockUserRepo) UpdateProfile(ctx context.Context, steamID, username, avatarURL string) error {
	return nil
}
func (m *mockUserRepo) UpdateNotificationSettings(ctx context.Context, user *model.User) error {
	return nil
}
func (m *mockUserRepo) AddFollowedGame(ctx context.Context, steamID, appID string) error { return nil }
func (m *mockUserRepo) RemoveFollowedGame(ctx context.Context, steamID, appID string) error {
	return nil
}
func (m *mockUserRepo) ListAll(ctx context.Context) ([]*model.User, error) {
	return m.listAllFunc(ctx)
}
func (m *mockUserRepo) FindEligibleBySteamIDs(ctx context.Context, steamIDs []string) ([]*model.User, error) {
	return nil, nil
}
func (m *mockUserRepo) TouchLastChecked(ctx context.Context, steamID string) error { return nil }

type mockLibrary struct {
	getOwnedGamesFunc func(ctx context.Context, steamID string) ([]model.OwnedGame, error)
}

func (m *mockLibrary) GetOwnedGames(ctx context.Context, steamID string) ([]model.OwnedGame, error) {
	return m.getOwnedGamesFunc(ctx, steamID)
}

type mockFollower struct {
	followed   []string
	followFunc func(ctx context.Context, steamID, appID, gameName string) error
}

func (m *mockFollower) Follow(ctx context.Context, steamID, appID, gameName string) error {
	if m.followFunc != nil {
		if err := m.followFunc(ctx, steamID, appID, gameName); err != nil {
			return err
		}
	}
	m.followed = append(m.followed, steamID+":"+appID)
	return nil
}

func TestSyncUser_AutoFollowsOnlyNewGames(t *testing.T) {
	library := &mockLibrary{
		getOwnedGamesFunc: func(ctx context.Context, steamID string) ([]model.OwnedGame, error) {
			return []model.OwnedGame{
				{AppID: "730", Name: "Counter-Strike 2"},
				{AppID: "440", Name: "Team Fortress 2"},
				{AppID: "570", Name: "Dota 2"},
			}, nil
		},
	}
	follower := &mockFollower{}
	service := NewService(&mockUserRepo{}, library, follower, nil, 12)

	user := &model.User{
		SteamID:            "u1",
		FollowedGameIDs:    []string{"730"},
		AutoFollowNewGames: true,
	}
	followed, err := service.SyncUser(context.Background(), user)
	if err != nil {
		t.Fatalf("SyncUser returned error: %v", err)
	}
	if followed != 2 {
		t.Errorf("expected 2 auto-follows, got %d", followed)
	}
	for _, f := range follower.followed {
		if f == "u1:730" {
			t.Error("already followed game must not be re-followed")
		}
	}
}

type mockNotifier struct {
	notified []string
	err      error
}

func (m *mockNotifier) SendAutoFollow(ctx context.Context, user *model.User, appID, gameName string) error {
	m.notified = append(m.notified, user.SteamID+":"+appID)
	return m.err
}

func TestSyncUser_NotifiesEachAutoFollow(t *testing.T) {
	library := &mockLibrary{
		getOwnedGamesFunc: func(ctx context.Context, steamID string) ([]model.OwnedGame, error) {
			return []model.OwnedGame{
				{AppID: "440", Name: "Team Fortress 2"},
				{AppID: "570", Name: "Dota 2"},
			}, nil
		},
	}
	notifier := &mockNotifier{}
	service := NewService(&mockUserRepo{}, library, &mockFollower{}, notifier, 12)

	user := &model.User{SteamID: "u1", AutoFollowNewGames: true}
	if _, err := service.SyncUser(context.Background(), user); err != nil {
		t.Fatalf("SyncUser returned error: %v", err)
	}
	if len(notifier.notified) != 2 {
		t.Errorf("expected 2 auto-follow notifications, got %v", notifier.notified)
	}
}

func TestSyncUser_NotificationFailureDoesNotFailSync(t *testing.T) {
	library := &mockLibrary{
		getOwnedGamesFunc: func(ctx context.Context, steamID string) ([]model.OwnedGame, error) {
			return []model.OwnedGame{{AppID: "440", Name: "Team Fortress 2"}}, nil
		},
	}
	notifier := &mockNotifier{err: errors.New("push service down")}
	service := NewService(&mockUserRepo{}, library, &mockFollower{}, notifier, 12)

	user := &model.User{SteamID: "u1", AutoFollowNewGames: true}
	followed, err := service.SyncUser(context.Background(), user)
	if err != nil {
		t.Fatalf("notification failure must not fail the sync: %v", err)
	}
	if followed != 1 {
		t.Errorf("followed = %d, want 1", followed)
	}
}

func TestSyncUser_DetectionOnlyWithoutAutoFollow(t *testing.T) {
	library := &mockLibrary{
		getOwnedGamesFunc: func(ctx context.Context, steamID string) ([]model.OwnedGame, error) {
			return []model.OwnedGame{{AppID: "730", Name: "Counter-Strike 2"}}, nil
		},
	}
	follower := &mockFollower{}
	service := NewService(&mockUserRepo{}, library, follower, nil, 12)

	user := &model.User{SteamID: "u1", AutoFollowNewGames: false}
	followed, err := service.SyncUser(context.Background(), user)
	if err != nil {
		t.Fatalf("SyncUser returned error: %v", err)
	}
	if followed != 0 || len(follower.followed) != 0 {
		t.Errorf("auto-follow disabled: nothing must be followed, got %v", follower.followed)
	}
}

func TestSyncUser_TreatsDuplicateFollowAsSuccess(t *testing.T) {
	library := &mockLibrary{
		getOwnedGamesFunc: func(ctx context.Context, steamID string) ([]model.OwnedGame, error) {
			return []model.OwnedGame{{AppID: "730"}}, nil
		},
	}
	follower := &mockFollower{
		followFunc: func(ctx context.Context, steamID, appID, gameName string) error {
			return model.NewGameAlreadyFollowedError(appID)
		},
	}
	service := NewService(&mockUserRepo{}, library, follower, nil, 12)

	user := &model.User{SteamID: "u1", AutoFollowNewGames: true}
	if _, err := service.SyncUser(context.Background(), user); err != nil {
		t.Fatalf("duplicate follow must not be an error: %v", err)
	}
}

func TestSyncUserGroup_ProcessesOnlyOneGroup(t *testing.T) {
	var allUsers []*model.User
	for i := 0; i < 6; i++ {
		allUsers = append(allUsers, &model.User{
			SteamID:            string(rune('a' + i)),
			AutoFollowNewGames: true,
		})
	}

	var synced []string
	library := &mockLibrary{
		getOwnedGamesFunc: func(ctx context.Context, steamID string) ([]model.OwnedGame, error) {
			synced = append(synced, steamID)
			return nil, nil
		},
	}
	users := &mockUserRepo{
		listAllFunc: func(ctx context.Context) ([]*model.User, error) {
			return allUsers, nil
		},
	}
	service := NewService(users, library, &mockFollower{}, nil, 3)

	st, err := service.SyncUserGroup(context.Background(), 1)
	if err != nil {
		t.Fatalf("SyncUserGroup returned error: %v", err)
	}
	if st.UnitsProcessed != 2 {
		t.Errorf("expected 2 users in group, got %d", st.UnitsProcessed)
	}
	if len(synced) != 2 || synced[0] != "c" || synced[1] != "d" {
		t.Errorf("unexpected group members: %v", synced)
	}
}

func TestSyncAllUsers_IsolatesPerUserFailures(t *testing.T) {
	library := &mockLibrary{
		getOwnedGamesFunc: func(ctx context.Context, steamID string) ([]model.OwnedGame, error) {
			if steamID == "broken" {
				return nil, errors.New("private profile")
			}
			return []model.OwnedGame{{AppID: "730"}}, nil
		},
	}
	users := &mockUserRepo{
		listAllFunc: func(ctx context.Context) ([]*model.User, error) {
			return []*model.User{
				{SteamID: "broken", AutoFollowNewGames: true},
				{SteamID: "ok", AutoFollowNewGames: true},
			}, nil
		},
	}
	follower := &mockFollower{}
	service := NewService(users, library, follower, nil, 12)

	st, err := service.SyncAllUsers(context.Background())
	if err != nil {
		t.Fatalf("per-user failure must not fail the sync: %v", err)
	}
	if st.Errors != 1 {
		t.Errorf("expected 1 error recorded, got %d", st.Errors)
	}
	if len(follower.followed) != 1 || follower.followed[0] != "ok:730" {
		t.Errorf("healthy user must still be synced: %v", follower.followed)
	}
}
