package settlement

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"coin-server/internal/domain/settlement"
	otelinfra "coin-server/internal/infrastructure/observability/otel"
)

const recoverBatchSize = 256

// Worker 決済イベント処理ワーカー
// キューに積まれた外部IDを並行に処理し、一時的な失敗は指数バックオフでリトライする。
// リトライ上限を超えたイベントはポイズン状態にして後続を巻き込まない
type Worker struct {
	service     *SettlementApplicationService
	eventRepo   settlement.EventRepository
	logger      *otelinfra.Logger
	tracer      trace.Tracer
	queue       chan string
	workers     int
	maxAttempts int
	stop        chan struct{}
	wg          sync.WaitGroup
}

// NewWorker 新しいWorkerを作成
func NewWorker(
	service *SettlementApplicationService,
	eventRepo settlement.EventRepository,
	workers int,
	queueSize int,
	maxAttempts int,
	logger *otelinfra.Logger,
) *Worker {
	return &Worker{
		service:     service,
		eventRepo:   eventRepo,
		logger:      logger,
		tracer:      otel.Tracer("settlement-worker"),
		queue:       make(chan string, queueSize),
		workers:     workers,
		maxAttempts: maxAttempts,
		stop:        make(chan struct{}),
	}
}

// Start ワーカーゴルーチンを起動
func (w *Worker) Start() {
	for i := 0; i < w.workers; i++ {
		w.wg.Add(1)
		go w.run()
	}
}

// Stop 新規受付を止めて処理中のイベントの完了を待つ
func (w *Worker) Stop() {
	close(w.stop)
	w.wg.Wait()
}

// Enqueue イベントをキューに積む
// キューが満杯の場合はfalseを返す。積み損ねたイベントは起動時のRecoverで拾われる
func (w *Worker) Enqueue(externalID string) bool {
	select {
	case w.queue <- externalID:
		return true
	default:
		return false
	}
}

// Recover 未適用イベントをキューへ再投入する
// プロセス再起動でキュー上のイベントが失われても、永続化済みのpendingから復元できる
func (w *Worker) Recover(ctx context.Context) error {
	ctx, span := w.tracer.Start(ctx, "Worker.Recover")
	defer span.End()

	events, err := w.eventRepo.FindPending(ctx, recoverBatchSize)
	if err != nil {
		span.RecordError(err)
		return err
	}

	enqueued := 0
	for _, event := range events {
		if w.Enqueue(event.ExternalID()) {
			enqueued++
		}
	}

	span.SetAttributes(
		attribute.Int("pending", len(events)),
		attribute.Int("enqueued", enqueued),
	)
	if len(events) > 0 {
		w.logger.Info(ctx, "Recovered pending settlement events", map[string]interface{}{
			"pending":  len(events),
			"enqueued": enqueued,
		})
	}
	return nil
}

func (w *Worker) run() {
	defer w.wg.Done()
	for {
		select {
		case <-w.stop:
			return
		case externalID := <-w.queue:
			w.handle(externalID)
		}
	}
}

func (w *Worker) handle(externalID string) {
	ctx, span := w.tracer.Start(context.Background(), "Worker.handle")
	defer span.End()

	span.SetAttributes(
		attribute.String("external_id", externalID),
	)

	operation := func() (*ProcessEventResponse, error) {
		resp, err := w.service.ProcessEvent(ctx, externalID)
		if err != nil {
			if isPermanent(err) {
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}
		return resp, nil
	}

	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = 100 * time.Millisecond
	expo.MaxInterval = 10 * time.Second

	_, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(expo),
		backoff.WithMaxTries(uint(w.maxAttempts)),
	)
	if err != nil {
		span.RecordError(err)
		w.logger.Error(ctx, "Settlement event processing exhausted retries", err, map[string]interface{}{
			"external_id":  externalID,
			"max_attempts": w.maxAttempts,
		})
		if poisonErr := w.service.MarkPoisoned(ctx, externalID, err.Error()); poisonErr != nil {
			w.logger.Error(ctx, "Failed to poison settlement event", poisonErr, map[string]interface{}{
				"external_id": externalID,
			})
		}
	}
}

// isPermanent リトライしても解決しないエラーかどうかを判定
func isPermanent(err error) bool {
	return errors.Is(err, settlement.ErrUnsupportedCurrency) ||
		errors.Is(err, settlement.ErrFractionalCoinAmount) ||
		errors.Is(err, settlement.ErrInvalidEvent) ||
		errors.Is(err, settlement.ErrEventNotFound)
}
