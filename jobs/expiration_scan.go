package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/gapal/gapal/internal/jobs"
	"github.com/gapal/gapal/internal/notifications"
	"github.com/gapal/gapal/internal/products"
)

// Catalog lists products for the scan.
type Catalog interface {
	List(ctx context.Context, filter products.ListFilter) ([]products.Product, error)
}

// Dispatcher turns expiring products into notifications.
type Dispatcher interface {
	Expiration(ctx context.Context, product products.Product) (notifications.Notification, bool, error)
}

// ExpirationScanJob walks active products and raises an alert for each one
// expiring inside the window. Suppression of repeat alerts is the
// dispatcher's concern, so running the scan daily is safe.
type ExpirationScanJob struct {
	Catalog    Catalog
	Dispatcher Dispatcher
	Logger     *slog.Logger
	Metrics    *jobmetrics.Metrics
}

// NewExpirationScanJob initialises the scan handler.
func NewExpirationScanJob(catalog Catalog, dispatcher Dispatcher, logger *slog.Logger, metrics *jobmetrics.Metrics) *ExpirationScanJob {
	return &ExpirationScanJob{Catalog: catalog, Dispatcher: dispatcher, Logger: logger, Metrics: metrics}
}

// Handle executes the scan.
func (j *ExpirationScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Catalog == nil || j.Dispatcher == nil {
		return errors.New("expiration scan: handler not configured")
	}
	var payload ExpirationScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	window := time.Duration(payload.WindowDays) * 24 * time.Hour
	if window <= 0 {
		window = products.ExpiryWindow
	}

	tracker := j.metrics().Track(TaskExpirationScan)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	expiring, err := j.Catalog.List(ctx, products.ListFilter{
		ActiveOnly:     true,
		ExpiringWithin: window,
	})
	if err != nil {
		resultErr = err
		j.logger().Error("expiration scan", slog.Any("error", err))
		return resultErr
	}
	j.metrics().SetExpiringProducts(len(expiring))

	raised := 0
	for _, product := range expiring {
		_, created, err := j.Dispatcher.Expiration(ctx, product)
		if err != nil {
			j.logger().Error("expiration alert",
				slog.Int64("product_id", product.ID),
				slog.Any("error", err))
			resultErr = err
			continue
		}
		if created {
			raised++
		}
	}
	j.logger().Info("expiration scan finished",
		slog.Int("expiring", len(expiring)),
		slog.Int("alerts", raised))
	return resultErr
}

func (j *ExpirationScanJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}

func (j *ExpirationScanJob) metrics() *jobmetrics.Metrics {
	return j.Metrics
}
