package writer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	cbigquery "cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/rafaelcoron/uplevel-backend/internal/facts/types"
	pkgbigquery "github.com/rafaelcoron/uplevel-backend/pkg/bigquery"
)

const (
	// Upstream acks a message as soon as its insert returns, so the
	// default flushes every row instead of holding it in a buffer.
	defaultBatchSize      = 1
	defaultMaxAttempts    = 3
	defaultInitialBackoff = 250 * time.Millisecond
	defaultMaximumBackoff = 2 * time.Second
)

// Config controls which tables the facts writer streams into.
type Config struct {
	CommissionTable  string
	DiscrepancyTable string
	BatchSize        int
	RetryPolicy      RetryPolicy
}

// RetryPolicy bounds how often a failed BigQuery insert is retried.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaximumBackoff time.Duration
}

type tableInserter interface {
	InsertRows(ctx context.Context, table string, rows []any) error
}

// BigQueryWriter streams commission and discrepancy fact rows into BigQuery
// with bounded retries and optional batching.
type BigQueryWriter struct {
	client           tableInserter
	commissionTable  string
	discrepancyTable string
	batchSize        int
	retry            RetryPolicy

	commissionBuffer  []types.CommissionFactRow
	discrepancyBuffer []types.WalletDiscrepancyFactRow
}

// New builds a facts writer backed by the shared BigQuery client.
func New(client *pkgbigquery.Client, cfg Config) (*BigQueryWriter, error) {
	if client == nil {
		return nil, errors.New("bigquery client required")
	}
	commissionTable := strings.TrimSpace(cfg.CommissionTable)
	if commissionTable == "" {
		return nil, errors.New("commission facts table is required")
	}
	discrepancyTable := strings.TrimSpace(cfg.DiscrepancyTable)
	if discrepancyTable == "" {
		return nil, errors.New("discrepancy facts table is required")
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	retry := cfg.RetryPolicy
	if retry.MaxAttempts <= 0 {
		retry.MaxAttempts = defaultMaxAttempts
	}
	if retry.InitialBackoff <= 0 {
		retry.InitialBackoff = defaultInitialBackoff
	}
	if retry.MaximumBackoff <= 0 {
		retry.MaximumBackoff = defaultMaximumBackoff
	}
	if retry.MaximumBackoff < retry.InitialBackoff {
		retry.MaximumBackoff = retry.InitialBackoff
	}

	return &BigQueryWriter{
		client:           client,
		commissionTable:  commissionTable,
		discrepancyTable: discrepancyTable,
		batchSize:        batchSize,
		retry:            retry,
	}, nil
}

// InsertCommission writes one commission fact row, flushing when the batch fills.
func (w *BigQueryWriter) InsertCommission(ctx context.Context, row types.CommissionFactRow) error {
	w.commissionBuffer = append(w.commissionBuffer, row)
	if len(w.commissionBuffer) >= w.batchSize {
		return w.flushCommissions(ctx)
	}
	return nil
}

// InsertDiscrepancy writes one wallet discrepancy fact row, flushing when the batch fills.
func (w *BigQueryWriter) InsertDiscrepancy(ctx context.Context, row types.WalletDiscrepancyFactRow) error {
	w.discrepancyBuffer = append(w.discrepancyBuffer, row)
	if len(w.discrepancyBuffer) >= w.batchSize {
		return w.flushDiscrepancies(ctx)
	}
	return nil
}

// Flush writes any buffered rows immediately.
func (w *BigQueryWriter) Flush(ctx context.Context) error {
	if err := w.flushCommissions(ctx); err != nil {
		return err
	}
	return w.flushDiscrepancies(ctx)
}

func (w *BigQueryWriter) flushCommissions(ctx context.Context) error {
	if len(w.commissionBuffer) == 0 {
		return nil
	}
	rows := make([]any, len(w.commissionBuffer))
	for i := range w.commissionBuffer {
		rows[i] = &w.commissionBuffer[i]
	}

	if err := w.insertWithRetry(ctx, w.commissionTable, rows); err != nil {
		return err
	}
	w.commissionBuffer = w.commissionBuffer[:0]
	return nil
}

func (w *BigQueryWriter) flushDiscrepancies(ctx context.Context) error {
	if len(w.discrepancyBuffer) == 0 {
		return nil
	}
	rows := make([]any, len(w.discrepancyBuffer))
	for i := range w.discrepancyBuffer {
		rows[i] = &w.discrepancyBuffer[i]
	}

	if err := w.insertWithRetry(ctx, w.discrepancyTable, rows); err != nil {
		return err
	}
	w.discrepancyBuffer = w.discrepancyBuffer[:0]
	return nil
}

func (w *BigQueryWriter) insertWithRetry(ctx context.Context, table string, rows []any) error {
	if len(rows) == 0 {
		return nil
	}

	attempts := 0
	backoff := w.retry.InitialBackoff

	for {
		if ctx != nil {
			if err := ctx.Err(); err != nil {
				return err
			}
		}

		err := w.client.InsertRows(ctx, table, rows)
		if err == nil {
			return nil
		}

		attempts++
		if attempts >= w.retry.MaxAttempts || !isRetryableInsertError(err) {
			return fmt.Errorf("insert %s rows: %w", table, err)
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		timer.Stop()

		backoff = min(backoff*2, w.retry.MaximumBackoff)
	}
}

// isRetryableInsertError treats an aggregate failure as retryable only when
// every contained row error is itself retryable.
func isRetryableInsertError(err error) bool {
	if err == nil {
		return false
	}

	var putMulti *cbigquery.PutMultiError
	if errors.As(err, &putMulti) {
		if putMulti == nil || len(*putMulti) == 0 {
			return false
		}
		for _, rowErr := range *putMulti {
			if !isRetryableInsertError(rowErr.Errors) {
				return false
			}
		}
		return true
	}

	var rowErr *cbigquery.RowInsertionError
	if errors.As(err, &rowErr) {
		if rowErr == nil || len(rowErr.Errors) == 0 {
			return false
		}
		for _, inner := range rowErr.Errors {
			if !isRetryableInsertError(inner) {
				return false
			}
		}
		return true
	}

	var multi *cbigquery.MultiError
	if errors.As(err, &multi) {
		if multi == nil || len(*multi) == 0 {
			return false
		}
		for _, inner := range *multi {
			if !isRetryableInsertError(inner) {
				return false
			}
		}
		return true
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusTooManyRequests,
			http.StatusRequestTimeout,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return true
		default:
			return false
		}
	}

	var statusErr interface{ GRPCStatus() *status.Status }
	if errors.As(err, &statusErr) {
		if st := statusErr.GRPCStatus(); st != nil {
			switch st.Code() {
			case codes.Aborted,
				codes.DeadlineExceeded,
				codes.Internal,
				codes.ResourceExhausted,
				codes.Unavailable:
				return true
			}
		}
		return false
	}

	return false
}

// EncodeJSON serializes a payload for a BigQuery JSON column.
func EncodeJSON(payload any) (cbigquery.NullJSON, error) {
	switch value := payload.(type) {
	case nil:
		return cbigquery.NullJSON{}, nil
	case cbigquery.NullJSON:
		return value, nil
	case json.RawMessage:
		if len(value) == 0 {
			return cbigquery.NullJSON{}, nil
		}
		return cbigquery.NullJSON{Valid: true, JSONVal: string(value)}, nil
	case []byte:
		if len(value) == 0 {
			return cbigquery.NullJSON{}, nil
		}
		return cbigquery.NullJSON{Valid: true, JSONVal: string(value)}, nil
	}

	marshaled, err := json.Marshal(payload)
	if err != nil {
		return cbigquery.NullJSON{}, fmt.Errorf("marshal json: %w", err)
	}
	if len(marshaled) == 0 {
		return cbigquery.NullJSON{}, nil
	}
	return cbigquery.NullJSON{Valid: true, JSONVal: string(marshaled)}, nil
}
