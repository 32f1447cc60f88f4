package payment

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/binaahub/binna/internal/model"
)

// ReconcileConfig は支払状態の照合ジョブの設定。
type ReconcileConfig struct {
	// Interval はジョブの実行間隔（デフォルト: 10分）。
	Interval time.Duration
	// MinAge は最後の更新からこの時間が経過したpending請求書を照合対象とする（デフォルト: 15分）。
	MinAge time.Duration
	// BatchSize は1サイクルあたりの最大照合件数（デフォルト: 50）。
	BatchSize int
	// APIInterval はゲートウェイ呼び出しの最低間隔（デフォルト: 1秒）。
	APIInterval time.Duration
	// MaxBackoff は連続失敗時のバックオフの上限（デフォルト: 1時間）。
	MaxBackoff time.Duration
}

// DefaultReconcileConfig はデフォルトの照合ジョブ設定を返す。
func DefaultReconcileConfig() ReconcileConfig {
	return ReconcileConfig{
		Interval:    10 * time.Minute,
		MinAge:      15 * time.Minute,
		BatchSize:   50,
		APIInterval: time.Second,
		MaxBackoff:  time.Hour,
	}
}

// ReconcileJob はコールバックが届かずpendingのまま残った請求書をゲートウェイに照会して確定させる。
type ReconcileJob struct {
	service *Service
	logger  *slog.Logger
	config  ReconcileConfig

	consecutiveErrors int
	backoffUntil      time.Time
}

// NewReconcileJob はReconcileJobの新しいインスタンスを生成する。
func NewReconcileJob(service *Service, logger *slog.Logger, config ReconcileConfig) *ReconcileJob {
	return &ReconcileJob{service: service, logger: logger, config: config}
}

// Start はジョブをティッカーで定期実行する。コンテキストがキャンセルされるまで実行を継続する。
func (j *ReconcileJob) Start(ctx context.Context) {
	ticker := time.NewTicker(j.config.Interval)
	defer ticker.Stop()

	j.logger.Info("支払照合ジョブを開始しました",
		slog.Duration("interval", j.config.Interval),
		slog.Int("batch_size", j.config.BatchSize),
	)

	j.runAndLog(ctx)
	for {
		select {
		case <-ctx.Done():
			j.logger.Info("支払照合ジョブを停止しました")
			return
		case <-ticker.C:
			j.runAndLog(ctx)
		}
	}
}

func (j *ReconcileJob) runAndLog(ctx context.Context) {
	if err := j.RunOnce(ctx); err != nil {
		j.logger.Error("支払照合サイクルの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}
}

// RunOnce は1回の照合サイクルを実行する。
// ゲートウェイの呼び出しに失敗した場合はサイクルを打ち切り、連続失敗回数に応じてバックオフする。
func (j *ReconcileJob) RunOnce(ctx context.Context) error {
	if !j.service.Enabled() {
		return nil
	}
	now := j.service.now()
	if !j.backoffUntil.IsZero() && now.Before(j.backoffUntil) {
		j.logger.Info("支払照合ジョブはバックオフ中のためスキップします",
			slog.Time("backoff_until", j.backoffUntil),
		)
		return nil
	}

	invoices, err := j.service.invoices.ListAwaitingPayment(ctx, now.Add(-j.config.MinAge), j.config.BatchSize)
	if err != nil {
		return fmt.Errorf("照合対象の請求書の取得に失敗しました: %w", err)
	}
	if len(invoices) == 0 {
		return nil
	}

	var settled int
	for i, inv := range invoices {
		if i > 0 && j.config.APIInterval > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(j.config.APIInterval):
			}
		}

		status, err := j.service.gateway.GetInvoiceStatus(ctx, inv.GatewayInvoiceID)
		if err != nil {
			j.recordFailure(now)
			return fmt.Errorf("請求書 %s の照会に失敗しました: %w", inv.ID, err)
		}

		mapped := status.Status()
		if mapped == model.InvoiceStatusPending {
			continue
		}
		if _, err := j.service.apply(ctx, SourceReconcile, inv.ID, mapped, status.GatewayInvoiceID, status.PaymentID); err != nil {
			j.logger.Warn("照合結果の反映に失敗しました",
				slog.String("invoice_id", inv.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		settled++
	}

	j.consecutiveErrors = 0
	j.backoffUntil = time.Time{}
	j.logger.Info("支払照合サイクルが完了しました",
		slog.Int("checked", len(invoices)),
		slog.Int("settled", settled),
	)
	return nil
}

// recordFailure は連続失敗回数に応じて指数的にバックオフ期間を延ばす。
func (j *ReconcileJob) recordFailure(now time.Time) {
	j.consecutiveErrors++
	backoff := j.config.Interval << min(j.consecutiveErrors-1, 6)
	if j.config.MaxBackoff > 0 && backoff > j.config.MaxBackoff {
		backoff = j.config.MaxBackoff
	}
	j.backoffUntil = now.Add(backoff)
}
