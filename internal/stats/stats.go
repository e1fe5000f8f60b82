// Package stats はバッチサイクルの集計機能を提供する。
// 副作用のない純粋な集計のみを行い、スケジューラ側が結果をログ出力する。
package stats

// BatchStats は1サイクル分の単位処理結果の集計。
// ニュースチェック（単位=ゲーム）とライブラリ同期（単位=ユーザー）で共用する。
type BatchStats struct {
	UnitsProcessed   int // 処理した単位数
	UnitsWithUpdates int // 更新があった単位数
	TotalUpdates     int // 更新の総数（通知数、新規ゲーム数など）
	Errors           int // エラーになった単位数
}

// Record は1単位分の処理結果を集計に反映する。
// updatesはその単位で発生した更新数、failedはエラー発生の有無。
func (s *BatchStats) Record(updates int, failed bool) {
	s.UnitsProcessed++
	if updates > 0 {
		s.UnitsWithUpdates++
		s.TotalUpdates += updates
	}
	if failed {
		s.Errors++
	}
}

// Merge は別の集計結果を取り込む。
func (s *BatchStats) Merge(other BatchStats) {
	s.UnitsProcessed += other.UnitsProcessed
	s.UnitsWithUpdates += other.UnitsWithUpdates
	s.TotalUpdates += other.TotalUpdates
	s.Errors += other.Errors
}

// GroupBounds はitems件の要素をtotalGroups個のグループに分割したときの
// groupIndex番目のグループの範囲 [start, end) を返す。
// ライブラリ同期のグループ実行（時刻 % グループ数）で使用する。
func GroupBounds(items, groupIndex, totalGroups int) (start, end int) {
	if items == 0 || totalGroups <= 0 {
		return 0, 0
	}
	groupSize := (items + totalGroups - 1) / totalGroups
	start = groupIndex * groupSize
	if start > items {
		start = items
	}
	end = start + groupSize
	if end > items {
		end = items
	}
	return start, end
}
