package stream_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jacentio/itinera/kv"
	"github.com/jacentio/itinera/store"
	"github.com/jacentio/itinera/stream"
	"github.com/jacentio/itinera/tenant"
)

type observed struct {
	op     string
	prefix tenant.Prefix
	id     string
}

// fakeObserver records calls and fails for IDs listed in failOn.
type fakeObserver struct {
	calls  []observed
	failOn map[string]bool
}

func (f *fakeObserver) ObserveWritten(_ context.Context, p tenant.Prefix, id string) error {
	f.calls = append(f.calls, observed{"written", p, id})
	if f.failOn[id] {
		return errors.New("observer failed")
	}
	return nil
}

func (f *fakeObserver) ObserveRemoved(_ context.Context, p tenant.Prefix, id string) error {
	f.calls = append(f.calls, observed{"removed", p, id})
	if f.failOn[id] {
		return errors.New("observer failed")
	}
	return nil
}

var _ stream.Observer = (*store.Store)(nil)

func record(eventName, seq, pk, sk string) events.DynamoDBEventRecord {
	return events.DynamoDBEventRecord{
		EventID:   "evt-" + seq,
		EventName: eventName,
		Change: events.DynamoDBStreamRecord{
			SequenceNumber: seq,
			Keys: map[string]events.DynamoDBAttributeValue{
				"pk": events.NewStringAttribute(pk),
				"sk": events.NewStringAttribute(sk),
			},
		},
	}
}

func TestNewHandler(t *testing.T) {
	h := stream.NewHandler(nil, nil)
	if h == nil {
		t.Fatal("expected non-nil Handler")
	}
}

func TestHandleStream_DispatchesTripKeys(t *testing.T) {
	obs := &fakeObserver{}
	h := stream.NewHandler(obs, nil)

	p := tenant.For("kim.d63b7658")
	ledger := record("MODIFY", "4", p.String(), "#_trip-deletes")
	ledger.Change.NewImage = map[string]events.DynamoDBAttributeValue{
		"ttl": events.NewNumberAttribute("1700000600"),
	}

	resp, err := h.HandleStream(context.Background(), events.DynamoDBEvent{Records: []events.DynamoDBEventRecord{
		record("INSERT", "1", p.String(), "#trip-1"),
		record("MODIFY", "2", p.String(), "#trip-1/_summary"),
		record("MODIFY", "3", p.String(), "#trip-2"),
		ledger,
		record("REMOVE", "5", p.String(), "#trip-1"),
		record("REMOVE", "6", p.String(), "#_trip-index"),
	}})
	require.NoError(t, err)
	assert.Empty(t, resp.BatchItemFailures)

	assert.Equal(t, []observed{
		{"written", p, "trip-1"},
		{"written", p, "trip-2"},
		{"removed", p, "trip-1"},
	}, obs.calls)
}

func TestHandleStream_ReportsFirstFailure(t *testing.T) {
	obs := &fakeObserver{failOn: map[string]bool{"bad": true}}
	var logs bytes.Buffer
	h := stream.NewHandler(obs, slog.New(slog.NewJSONHandler(&logs, nil)))

	resp, err := h.HandleStream(context.Background(), events.DynamoDBEvent{Records: []events.DynamoDBEventRecord{
		record("INSERT", "10", "kim/", "#ok"),
		record("INSERT", "11", "kim/", "#bad"),
		record("INSERT", "12", "kim/", "#later"),
	}})
	require.NoError(t, err)

	require.Len(t, resp.BatchItemFailures, 1)
	assert.Equal(t, "11", resp.BatchItemFailures[0].ItemIdentifier)
	assert.Len(t, obs.calls, 2, "records after a failure are left for the retry")
	assert.Contains(t, logs.String(), "failed to process record")
	assert.Contains(t, logs.String(), `"eventID":"evt-11"`)
}

func TestHandleStream_EmptyEvent(t *testing.T) {
	h := stream.NewHandler(&fakeObserver{}, nil)

	resp, err := h.HandleStream(context.Background(), events.DynamoDBEvent{})
	require.NoError(t, err)
	assert.Empty(t, resp.BatchItemFailures)
}

func TestHandleStream_RepairsStore(t *testing.T) {
	ctx := context.Background()
	mem := kv.NewMemory()
	s := store.New(mem, store.DefaultConfig())
	h := stream.NewHandler(s, nil)
	p := tenant.For("kim.d63b7658")

	// Build the index, then write a trip behind the store's back.
	ids, err := s.List(ctx, "kim.d63b7658")
	require.NoError(t, err)
	require.Empty(t, ids)
	require.NoError(t, mem.Put(ctx, p.Entity("trip-1"), []byte(`{"meta":{"title":"Porto"}}`), kv.PutOptions{}))

	resp, err := h.HandleStream(ctx, events.DynamoDBEvent{Records: []events.DynamoDBEventRecord{
		record("INSERT", "1", p.String(), "#trip-1"),
	}})
	require.NoError(t, err)
	require.Empty(t, resp.BatchItemFailures)

	ids, err = s.List(ctx, "kim.d63b7658")
	require.NoError(t, err)
	assert.Equal(t, []string{"trip-1"}, ids)

	var sum store.Summary
	ok, err := kv.GetJSON(ctx, mem, p.Summary("trip-1"), &sum)
	require.NoError(t, err)
	require.True(t, ok, "summary is refreshed from the stream")
	assert.Equal(t, "Porto", sum.Title)

	// Remove it behind the store's back as well.
	require.NoError(t, mem.Delete(ctx, p.Entity("trip-1")))
	resp, err = h.HandleStream(ctx, events.DynamoDBEvent{Records: []events.DynamoDBEventRecord{
		record("REMOVE", "2", p.String(), "#trip-1"),
	}})
	require.NoError(t, err)
	require.Empty(t, resp.BatchItemFailures)

	ids, err = s.List(ctx, "kim.d63b7658")
	require.NoError(t, err)
	assert.Empty(t, ids)
	assert.NotContains(t, mem.Keys(), p.Summary("trip-1"))
}
