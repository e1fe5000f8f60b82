// Package notification はプッシュ通知の組み立てと配送を提供する。
package notification

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/hitoshi/steamnotif/internal/model"
)

// bodyMaxLength は通知本文の最大文字数。超過分は省略記号付きで切り詰める。
const bodyMaxLength = 180

// Message はプロバイダ非依存の通知メッセージ。
type Message struct {
	Title string            // 通知タイトル（ゲーム名）
	Body  string            // 通知本文（記事タイトル + 冒頭）
	Data  map[string]string // クライアント側ディープリンク用のペイロード
}

// Builder はニュース記事から通知メッセージを組み立てる。
// Steamニュースの本文はHTMLとBBCodeが混在するため、
// 通知に載せる前にサニタイズする。
type Builder struct {
	policy *bluemonday.Policy
}

// NewBuilder はBuilderを生成する。
func NewBuilder() *Builder {
	// タグを一切許可しないポリシー。テキスト抽出として使う
	return &Builder{policy: bluemonday.StrictPolicy()}
}

// BuildNewsMessage はニュース記事1件から通知メッセージを組み立てる。
func (b *Builder) BuildNewsMessage(appID, gameName string, item model.NewsItem) Message {
	title := "Nouvelle actualité jeu"
	if gameName != "" {
		title = gameName + " - Nouvelle actualité"
	}

	body := item.Title
	if summary := b.sanitize(item.Contents); summary != "" {
		body = item.Title + " : " + summary
	}
	if len([]rune(body)) > bodyMaxLength {
		body = string([]rune(body)[:bodyMaxLength-1]) + "…"
	}

	return Message{
		Title: title,
		Body:  body,
		Data: map[string]string{
			"type":    "news",
			"app_id":  appID,
			"news_id": item.GID,
			"url":     item.URL,
		},
	}
}

// BuildAutoFollowMessage はライブラリ同期が自動フォローしたゲームの
// 通知メッセージを組み立てる。
func (b *Builder) BuildAutoFollowMessage(appID, gameName string) Message {
	return Message{
		Title: "Nouveau jeu suivi automatiquement",
		Body:  gameName + " a été ajouté à vos jeux suivis",
		Data: map[string]string{
			"type":   "auto_follow",
			"app_id": appID,
		},
	}
}

// sanitize はHTML/BBCode混じりの本文をプレーンテキストに変換する。
func (b *Builder) sanitize(contents string) string {
	text := b.policy.Sanitize(contents)
	text = stripBBCode(text)
	return strings.Join(strings.Fields(text), " ")
}

// stripBBCode は [tag]...[/tag] 形式のBBCodeタグを除去する。
// タグ本体のみを除去し、囲まれたテキストは残す。
func stripBBCode(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	inTag := false
	for _, r := range s {
		switch {
		case r == '[':
			inTag = true
		case r == ']':
			inTag = false
		case !inTag:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
