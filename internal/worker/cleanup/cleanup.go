// Package cleanup は不要になったログインセッションの自動削除ジョブを提供する。
// 期限切れまたは失効から保持期間（デフォルト7日）を超えたsessions行を
// 日次バッチで削除する。
package cleanup

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

// Executor はSQLのExecContextを抽象化するインターフェース。
// *sql.DB や *sql.Tx を受け付けることができる。
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Observer は削除件数を受け取る。
type Observer interface {
	RecordSessionsCleaned(n int64)
}

// CleanupJob は保持期間を超過したセッションの自動削除ジョブ。
// 冪等で、何度実行しても結果は変わらない。
type CleanupJob struct {
	db            Executor
	logger        *slog.Logger
	observer      Observer
	RetentionDays int           // 期限切れ・失効後の保持日数（デフォルト: 7）
	Interval      time.Duration // Start での実行間隔（デフォルト: 24時間）
}

// NewCleanupJob は新しいCleanupJobを生成する。
func NewCleanupJob(db Executor, logger *slog.Logger, observer Observer) *CleanupJob {
	return &CleanupJob{
		db:            db,
		logger:        logger,
		observer:      observer,
		RetentionDays: 7,
		Interval:      24 * time.Hour,
	}
}

// Run は期限切れ、または失効してからRetentionDays日を超えたセッションを削除する。
// 削除対象がない場合でもエラーにならない。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()

	interval := fmt.Sprintf("%d days", j.RetentionDays)

	query := `DELETE FROM sessions
		WHERE expires_at < now() - $1::interval
		   OR (revoked_at IS NOT NULL AND revoked_at < now() - $1::interval)`
	result, err := j.db.ExecContext(ctx, query, interval)
	if err != nil {
		j.logger.Error("セッションクリーンアップジョブの実行に失敗しました",
			slog.String("error", err.Error()),
			slog.Int("retention_days", j.RetentionDays),
		)
		return fmt.Errorf("セッションクリーンアップの実行に失敗: %w", err)
	}

	deletedCount, err := result.RowsAffected()
	if err != nil {
		j.logger.Error("削除件数の取得に失敗しました",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("削除件数の取得に失敗: %w", err)
	}

	if j.observer != nil {
		j.observer.RecordSessionsCleaned(deletedCount)
	}

	duration := time.Since(start)
	j.logger.Info("セッションクリーンアップジョブが完了しました",
		slog.Int64("deleted_count", deletedCount),
		slog.Int("retention_days", j.RetentionDays),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}

// Start は即時に1回実行し、以後Intervalごとに実行する。ctxがキャンセルされるまでブロックする。
// 個々の実行の失敗はログに残して次回に持ち越す。
func (j *CleanupJob) Start(ctx context.Context) {
	j.Run(ctx)

	ticker := time.NewTicker(j.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("セッションクリーンアップジョブを停止しました")
			return
		case <-ticker.C:
			j.Run(ctx)
		}
	}
}
