package notification

import (
	"context"
	"fmt"
	"net/http"

	"github.com/hitoshi/steamnotif/internal/config"
	"github.com/hitoshi/steamnotif/internal/model"
)

// Dispatcher は適格性チェックとメッセージ組み立てを行い、
// 設定されたプロバイダに配送を委譲する。
type Dispatcher struct {
	provider Provider
	builder  *Builder
}

// NewDispatcher はDispatcherを生成する。
func NewDispatcher(provider Provider) *Dispatcher {
	return &Dispatcher{
		provider: provider,
		builder:  NewBuilder(),
	}
}

// SendNews はニュース記事1件をユーザー1人に配送する。
// ユーザーが配送の適格条件を満たさない場合は何もせずnilを返す。
// タイムアウトは呼び出し側がctxで制御する。
func (d *Dispatcher) SendNews(ctx context.Context, user *model.User, appID, gameName string, item model.NewsItem) error {
	if !user.IsEligibleForPush() {
		return nil
	}

	msg := d.builder.BuildNewsMessage(appID, gameName, item)
	if err := d.provider.Send(ctx, user.PushToken, msg); err != nil {
		return fmt.Errorf("通知の配送に失敗しました (provider=%s, steam_id=%s): %w",
			d.provider.Name(), user.SteamID, err)
	}
	return nil
}

// SendAutoFollow は自動フォローの完了通知をユーザー1人に配送する。
// ユーザーが配送の適格条件を満たさない場合は何もせずnilを返す。
func (d *Dispatcher) SendAutoFollow(ctx context.Context, user *model.User, appID, gameName string) error {
	if !user.IsEligibleForPush() {
		return nil
	}

	msg := d.builder.BuildAutoFollowMessage(appID, gameName)
	if err := d.provider.Send(ctx, user.PushToken, msg); err != nil {
		return fmt.Errorf("通知の配送に失敗しました (provider=%s, steam_id=%s): %w",
			d.provider.Name(), user.SteamID, err)
	}
	return nil
}

// ProviderName は設定されているプロバイダ名を返す。
func (d *Dispatcher) ProviderName() string {
	return d.provider.Name()
}

// NewProviderFromConfig は設定に応じたプロバイダを生成する。
// 未知のプロバイダ名、または必要な認証情報が不足している場合はエラーを返す。
func NewProviderFromConfig(cfg *config.Config, httpClient *http.Client) (Provider, error) {
	switch cfg.NotificationProvider {
	case "simulation":
		return NewSimulationProvider(), nil
	case "fcm":
		if cfg.FCMServerKey == "" {
			return nil, fmt.Errorf("FCM_SERVER_KEY is required for the fcm provider")
		}
		return NewFCMProvider(cfg.FCMServerKey, httpClient), nil
	case "onesignal":
		if cfg.OneSignalAppID == "" || cfg.OneSignalAPIKey == "" {
			return nil, fmt.Errorf("ONESIGNAL_APP_ID and ONESIGNAL_API_KEY are required for the onesignal provider")
		}
		return NewOneSignalProvider(cfg.OneSignalAppID, cfg.OneSignalAPIKey, httpClient), nil
	case "webpush":
		if cfg.VAPIDPublicKey == "" || cfg.VAPIDPrivateKey == "" {
			return nil, fmt.Errorf("VAPID_PUBLIC_KEY and VAPID_PRIVATE_KEY are required for the webpush provider")
		}
		return NewWebPushProvider(cfg.VAPIDPublicKey, cfg.VAPIDPrivateKey, cfg.VAPIDSubscriber, httpClient), nil
	default:
		return nil, fmt.Errorf("unknown notification provider: %s", cfg.NotificationProvider)
	}
}
