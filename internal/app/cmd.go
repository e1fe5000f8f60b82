package app

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandServe はAPIサーバーモードで起動することを示す。
	CommandServe Command = "serve"
	// CommandWorker はワーカーモードで起動することを示す。
	CommandWorker Command = "worker"
	// CommandMigrate はデータベースマイグレーションを実行することを示す。
	CommandMigrate Command = "migrate"
	// CommandBackfill は既存ユーザーのフォロー情報から購読レコードを再構築することを示す。
	CommandBackfill Command = "backfill"
	// CommandResetWatermarks は全購読レコードのウォーターマークをリセットすることを示す。
	// 大量の過去ニュースが一斉配信される事故からの復旧用。
	CommandResetWatermarks Command = "reset-watermarks"
	// CommandHealthcheck はヘルスチェックを実行することを示す。
	// distroless環境でのDockerヘルスチェック用。
	CommandHealthcheck Command = "healthcheck"
)

// ParseCommand はコマンドライン引数からサブコマンドを解析する。
// 引数が空またはサポート外のコマンドの場合はCommandServeを返す。
func ParseCommand(args []string) Command {
	if len(args) == 0 {
		return CommandServe
	}

	switch args[0] {
	case "serve":
		return CommandServe
	case "worker":
		return CommandWorker
	case "migrate":
		return CommandMigrate
	case "backfill":
		return CommandBackfill
	case "reset-watermarks":
		return CommandResetWatermarks
	case "healthcheck":
		return CommandHealthcheck
	default:
		return CommandServe
	}
}
