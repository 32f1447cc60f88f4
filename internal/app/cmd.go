package app

import "strings"

// Command はプロセスの起動モード。
type Command string

const (
	// CommandServe はHTTP API（認証、ルートガード、注文、決済コールバック）を提供する。
	CommandServe Command = "serve"
	// CommandWorker はセッション掃除と支払照合の定期ジョブを動かす。
	CommandWorker Command = "worker"
	// CommandMigrate は埋め込みマイグレーションを適用して終了する。
	CommandMigrate Command = "migrate"
	// CommandHealthcheck は稼働中のserveプロセスの /health を確認して終了する。
	// シェルのないdistrolessイメージのHEALTHCHECKから呼ぶ。
	CommandHealthcheck Command = "healthcheck"
)

var knownCommands = map[string]Command{
	string(CommandServe):       CommandServe,
	string(CommandWorker):      CommandWorker,
	string(CommandMigrate):     CommandMigrate,
	string(CommandHealthcheck): CommandHealthcheck,
}

// ParseCommand は先頭の引数を起動モードとして解釈する。
// 大文字小文字と前後の空白は無視する。未知の値や引数なしはCommandServe。
func ParseCommand(args []string) Command {
	if len(args) == 0 {
		return CommandServe
	}
	if cmd, ok := knownCommands[strings.ToLower(strings.TrimSpace(args[0]))]; ok {
		return cmd
	}
	return CommandServe
}
