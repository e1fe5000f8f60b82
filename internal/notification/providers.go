package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	webpush "github.com/SherClockHolmes/webpush-go"
)

// Provider はプッシュ通知の配送先プロバイダのインターフェース。
// tokenの解釈はプロバイダごとに異なる（FCMトークン、OneSignalプレイヤーID、
// WebPush購読情報のJSONなど）。
type Provider interface {
	// Send は1人のユーザーに1件の通知を配送する。
	Send(ctx context.Context, token string, msg Message) error
	// Name はログ出力用のプロバイダ名を返す。
	Name() string
}

// ---- シミュレーション ----

// SimulationProvider は通知を実際には送らず、ログに記録するだけのプロバイダ。
// 開発環境のデフォルト。
type SimulationProvider struct{}

// NewSimulationProvider はSimulationProviderを生成する。
func NewSimulationProvider() *SimulationProvider {
	return &SimulationProvider{}
}

// Send は通知内容をログ出力する。常に成功する。
func (p *SimulationProvider) Send(ctx context.Context, token string, msg Message) error {
	slog.InfoContext(ctx, "simulated push notification",
		slog.String("title", msg.Title),
		slog.String("body", msg.Body),
		slog.String("news_id", msg.Data["news_id"]),
	)
	return nil
}

// Name はプロバイダ名を返す。
func (p *SimulationProvider) Name() string { return "simulation" }

// ---- FCM ----

const fcmSendURL = "https://fcm.googleapis.com/fcm/send"

// FCMProvider はFirebase Cloud Messaging (legacy HTTP API) のプロバイダ。
type FCMProvider struct {
	serverKey  string
	httpClient *http.Client
	endpoint   string // テスト用にエンドポイントを差し替え可能
}

// NewFCMProvider はFCMProviderを生成する。
func NewFCMProvider(serverKey string, httpClient *http.Client) *FCMProvider {
	return &FCMProvider{serverKey: serverKey, httpClient: httpClient, endpoint: fcmSendURL}
}

type fcmRequest struct {
	To           string            `json:"to"`
	Notification fcmNotification   `json:"notification"`
	Data         map[string]string `json:"data,omitempty"`
}

type fcmNotification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type fcmResponse struct {
	Success int `json:"success"`
	Failure int `json:"failure"`
}

// Send はFCM経由で通知を配送する。
func (p *FCMProvider) Send(ctx context.Context, token string, msg Message) error {
	payload := fcmRequest{
		To:           token,
		Notification: fcmNotification{Title: msg.Title, Body: msg.Body},
		Data:         msg.Data,
	}

	var resp fcmResponse
	err := postJSON(ctx, p.httpClient, p.endpoint, payload, &resp, func(req *http.Request) {
		req.Header.Set("Authorization", "key="+p.serverKey)
	})
	if err != nil {
		return fmt.Errorf("FCM通知の送信に失敗しました: %w", err)
	}
	if resp.Failure > 0 {
		return fmt.Errorf("FCM通知が拒否されました (failure=%d)", resp.Failure)
	}
	return nil
}

// Name はプロバイダ名を返す。
func (p *FCMProvider) Name() string { return "fcm" }

// ---- OneSignal ----

const oneSignalNotificationsURL = "https://onesignal.com/api/v1/notifications"

// OneSignalProvider はOneSignal REST APIのプロバイダ。
// tokenはOneSignalのプレイヤーID。
type OneSignalProvider struct {
	appID      string
	apiKey     string
	httpClient *http.Client
	endpoint   string // テスト用にエンドポイントを差し替え可能
}

// NewOneSignalProvider はOneSignalProviderを生成する。
func NewOneSignalProvider(appID, apiKey string, httpClient *http.Client) *OneSignalProvider {
	return &OneSignalProvider{
		appID:      appID,
		apiKey:     apiKey,
		httpClient: httpClient,
		endpoint:   oneSignalNotificationsURL,
	}
}

type oneSignalRequest struct {
	AppID            string            `json:"app_id"`
	IncludePlayerIDs []string          `json:"include_player_ids"`
	Headings         map[string]string `json:"headings"`
	Contents         map[string]string `json:"contents"`
	Data             map[string]string `json:"data,omitempty"`
}

type oneSignalResponse struct {
	ID     string   `json:"id"`
	Errors []string `json:"errors"`
}

// Send はOneSignal経由で通知を配送する。
func (p *OneSignalProvider) Send(ctx context.Context, token string, msg Message) error {
	payload := oneSignalRequest{
		AppID:            p.appID,
		IncludePlayerIDs: []string{token},
		Headings:         map[string]string{"en": msg.Title},
		Contents:         map[string]string{"en": msg.Body},
		Data:             msg.Data,
	}

	var resp oneSignalResponse
	err := postJSON(ctx, p.httpClient, p.endpoint, payload, &resp, func(req *http.Request) {
		req.Header.Set("Authorization", "Basic "+p.apiKey)
	})
	if err != nil {
		return fmt.Errorf("OneSignal通知の送信に失敗しました: %w", err)
	}
	if len(resp.Errors) > 0 {
		return fmt.Errorf("OneSignal通知が拒否されました: %v", resp.Errors)
	}
	return nil
}

// Name はプロバイダ名を返す。
func (p *OneSignalProvider) Name() string { return "onesignal" }

// ---- Web Push ----

// WebPushProvider はWeb Push (VAPID) のプロバイダ。
// tokenはwebpush.SubscriptionをJSONシリアライズした文字列。
type WebPushProvider struct {
	vapidPublicKey  string
	vapidPrivateKey string
	subscriberEmail string
	httpClient      *http.Client
}

// NewWebPushProvider はWebPushProviderを生成する。
func NewWebPushProvider(vapidPublicKey, vapidPrivateKey, subscriberEmail string, httpClient *http.Client) *WebPushProvider {
	return &WebPushProvider{
		vapidPublicKey:  vapidPublicKey,
		vapidPrivateKey: vapidPrivateKey,
		subscriberEmail: subscriberEmail,
		httpClient:      httpClient,
	}
}

// Send はWeb Push経由で通知を配送する。
func (p *WebPushProvider) Send(ctx context.Context, token string, msg Message) error {
	var sub webpush.Subscription
	if err := json.Unmarshal([]byte(token), &sub); err != nil {
		return fmt.Errorf("WebPush購読情報の解析に失敗しました: %w", err)
	}

	body, err := json.Marshal(map[string]any{
		"title": msg.Title,
		"body":  msg.Body,
		"data":  msg.Data,
	})
	if err != nil {
		return fmt.Errorf("WebPushペイロードの作成に失敗しました: %w", err)
	}

	resp, err := webpush.SendNotificationWithContext(ctx, body, &sub, &webpush.Options{
		HTTPClient:      p.httpClient,
		Subscriber:      p.subscriberEmail,
		VAPIDPublicKey:  p.vapidPublicKey,
		VAPIDPrivateKey: p.vapidPrivateKey,
		TTL:             3600,
	})
	if err != nil {
		return fmt.Errorf("WebPush通知の送信に失敗しました: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode >= 400 {
		return fmt.Errorf("WebPush通知が拒否されました (status=%d)", resp.StatusCode)
	}
	return nil
}

// Name はプロバイダ名を返す。
func (p *WebPushProvider) Name() string { return "webpush" }

// postJSON はJSONリクエストをPOSTしJSONレスポンスをデコードする。
func postJSON(ctx context.Context, client *http.Client, url string, payload, dest any, modify func(*http.Request)) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("リクエストボディの作成に失敗しました: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("リクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if modify != nil {
		modify(req)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("リクエストの実行に失敗しました: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	if dest != nil {
		if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
			return fmt.Errorf("レスポンスのデコードに失敗しました: %w", err)
		}
	}
	return nil
}

var (
	_ Provider = (*SimulationProvider)(nil)
	_ Provider = (*FCMProvider)(nil)
	_ Provider = (*OneSignalProvider)(nil)
	_ Provider = (*WebPushProvider)(nil)
)
