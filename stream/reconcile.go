// Package stream provides DynamoDB Streams handlers that keep derived trip
// state in step with writes made anywhere against the table.
package stream

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/aws/aws-lambda-go/events"

	"github.com/jacentio/itinera/internal/partition"
	"github.com/jacentio/itinera/tenant"
)

// Stream event names.
const (
	eventInsert = "INSERT"
	eventModify = "MODIFY"
	eventRemove = "REMOVE"
)

// Observer repairs derived state for a single trip. *store.Store implements it.
type Observer interface {
	ObserveWritten(ctx context.Context, p tenant.Prefix, id string) error
	ObserveRemoved(ctx context.Context, p tenant.Prefix, id string) error
}

// Handler processes DynamoDB stream events for trip keys.
type Handler struct {
	observer Observer
	logger   *slog.Logger
}

// NewHandler creates a new stream handler.
func NewHandler(o Observer, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		observer: o,
		logger:   logger,
	}
}

// HandleStream reconciles the trip index, ledger and summaries for every trip
// key in the batch. It is designed to be used as an AWS Lambda handler with
// ReportBatchItemFailures enabled: processing stops at the first failure so
// the records after it are retried in order.
func (h *Handler) HandleStream(ctx context.Context, event events.DynamoDBEvent) (events.DynamoDBEventResponse, error) {
	var resp events.DynamoDBEventResponse
	for _, record := range event.Records {
		if err := h.processRecord(ctx, record); err != nil {
			h.logger.Error("failed to process record",
				"eventID", record.EventID,
				"sequenceNumber", record.Change.SequenceNumber,
				"error", err,
			)
			resp.BatchItemFailures = append(resp.BatchItemFailures, events.DynamoDBBatchItemFailure{
				ItemIdentifier: record.Change.SequenceNumber,
			})
			return resp, nil
		}
	}
	return resp, nil
}

// processRecord processes a single DynamoDB stream record.
func (h *Handler) processRecord(ctx context.Context, record events.DynamoDBEventRecord) error {
	p, id, ok := tripKey(record.Change.Keys)
	if !ok {
		return nil
	}

	switch record.EventName {
	case eventInsert, eventModify:
		// Only ledgers carry a TTL; a trip never does.
		if getNumberAttr(record.Change.NewImage, "ttl") != 0 {
			return nil
		}
		if err := h.observer.ObserveWritten(ctx, p, id); err != nil {
			return fmt.Errorf("observe write of %s%s: %w", p, id, err)
		}
		h.logger.Debug("trip write reconciled", "tenantPrefix", p.String(), "tripID", id)
	case eventRemove:
		if err := h.observer.ObserveRemoved(ctx, p, id); err != nil {
			return fmt.Errorf("observe removal of %s%s: %w", p, id, err)
		}
		h.logger.Info("trip removal reconciled", "tenantPrefix", p.String(), "tripID", id)
	}
	return nil
}

// tripKey extracts the tenant prefix and trip ID from a stream record's key.
// It reports false for system keys and keys outside any tenant.
func tripKey(keys map[string]events.DynamoDBAttributeValue) (tenant.Prefix, string, bool) {
	pk := getStringAttr(keys, "pk")
	sk := getStringAttr(keys, "sk")
	if !strings.HasSuffix(pk, tenant.Separator) {
		return "", "", false
	}
	p := tenant.Prefix(pk)
	id, ok := p.EntityID(partition.Join(pk, sk))
	if !ok {
		return "", "", false
	}
	return p, id, true
}

// getStringAttr extracts a string attribute from a DynamoDB stream image.
func getStringAttr(image map[string]events.DynamoDBAttributeValue, key string) string {
	if v, ok := image[key]; ok && v.DataType() == events.DataTypeString {
		return v.String()
	}
	return ""
}

// getNumberAttr extracts a number attribute from a DynamoDB stream image.
func getNumberAttr(image map[string]events.DynamoDBAttributeValue, key string) int64 {
	if v, ok := image[key]; ok {
		if v.DataType() == events.DataTypeNumber {
			n, _ := strconv.ParseInt(v.Number(), 10, 64)
			return n
		}
	}
	return 0
}
