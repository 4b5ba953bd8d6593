package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jacentio/itinera/kv"
	"github.com/jacentio/itinera/tenant"
)

// Next-action hints, in the order a trip usually moves through them.
const (
	ActionSetDates        = "set-dates"
	ActionPlanDays        = "plan-days"
	ActionBookLodging     = "book-lodging"
	ActionConfirmBookings = "confirm-bookings"
	ActionReady           = "ready"
)

const (
	dateLayout    = "2006-01-02"
	statusBooked  = "booked"
	otherCategory = "other"
)

// bookable categories count as unbooked until their status is "booked".
var bookable = map[string]bool{
	"transport": true,
	"lodging":   true,
	"activity":  true,
}

// Summary is the compact, derived view of a trip used by listings.
type Summary struct {
	ID      string `json:"id"`
	Version int    `json:"version"`

	// Hash is the SHA-256 of the fields the summary is derived from.
	Hash string `json:"hash"`

	Title       string `json:"title"`
	Destination string `json:"destination"`
	StartDate   string `json:"startDate,omitempty"`
	EndDate     string `json:"endDate,omitempty"`
	Travelers   int    `json:"travelers"`

	Days            int            `json:"days"`
	Items           int            `json:"items"`
	ItemsByCategory map[string]int `json:"itemsByCategory"`
	TotalCost       float64        `json:"totalCost"`
	Unbooked        int            `json:"unbooked"`
	LodgingNights   int            `json:"lodgingNights"`
	NextAction      string         `json:"nextAction"`
}

// SummaryCache stores a versioned Summary next to each trip and recomputes
// it when the stored version is not current.
type SummaryCache struct {
	kv          kv.Store
	version     int
	concurrency int
	logger      *slog.Logger
	metrics     *Metrics
}

// NewSummaryCache creates a SummaryCache over s.
func NewSummaryCache(s kv.Store, config Config, opts ...Option) *SummaryCache {
	config.validate()
	o := buildOptions(opts)
	return &SummaryCache{
		kv:          s,
		version:     config.SummaryVersion,
		concurrency: config.SummaryConcurrency,
		logger:      o.logger,
		metrics:     o.metrics,
	}
}

// GetOrCompute returns the stored summary when its version is current.
// Otherwise it derives one from the trip, stores it and returns it. It
// returns ErrNotFound when the trip doesn't exist.
func (c *SummaryCache) GetOrCompute(ctx context.Context, p tenant.Prefix, id string) (*Summary, error) {
	stored, err := c.load(ctx, p, id)
	if err != nil {
		return nil, err
	}
	if stored != nil && stored.Version == c.version {
		c.metrics.summaryLookup("hit")
		return stored, nil
	}

	raw, err := c.kv.Get(ctx, p.Entity(id))
	if errors.Is(err, kv.ErrNotFound) {
		c.metrics.summaryLookup("missing")
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load trip %s: %w", id, err)
	}

	sum, err := c.compute(id, raw)
	if err != nil {
		return nil, err
	}
	if err := c.save(ctx, p, sum); err != nil {
		return nil, err
	}
	c.metrics.summaryLookup("computed")
	return sum, nil
}

// Refresh derives the summary from a trip already in hand and stores it
// unless the stored summary has the same version and hash. It reports
// whether a write happened.
func (c *SummaryCache) Refresh(ctx context.Context, p tenant.Prefix, id string, raw []byte) (*Summary, bool, error) {
	sum, err := c.compute(id, raw)
	if err != nil {
		return nil, false, err
	}
	stored, err := c.load(ctx, p, id)
	if err != nil {
		return nil, false, err
	}
	if stored != nil && stored.Version == sum.Version && stored.Hash == sum.Hash {
		c.metrics.summaryLookup("unchanged")
		return stored, false, nil
	}
	if err := c.save(ctx, p, sum); err != nil {
		return nil, false, err
	}
	c.metrics.summaryLookup("computed")
	return sum, true, nil
}

// Invalidate deletes the stored summary.
func (c *SummaryCache) Invalidate(ctx context.Context, p tenant.Prefix, id string) error {
	if err := c.kv.Delete(ctx, p.Summary(id)); err != nil {
		return fmt.Errorf("invalidate summary %s: %w", id, err)
	}
	return nil
}

// GetMany resolves the summaries of ids concurrently. The result keeps the
// order of ids and omits trips that don't exist.
func (c *SummaryCache) GetMany(ctx context.Context, p tenant.Prefix, ids []string) ([]*Summary, error) {
	results := make([]*Summary, len(ids))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for i, id := range ids {
		g.Go(func() error {
			sum, err := c.GetOrCompute(gCtx, p, id)
			if errors.Is(err, ErrNotFound) {
				return nil
			}
			if err != nil {
				return err
			}
			results[i] = sum
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]*Summary, 0, len(results))
	for _, sum := range results {
		if sum != nil {
			out = append(out, sum)
		}
	}
	return out, nil
}

func (c *SummaryCache) load(ctx context.Context, p tenant.Prefix, id string) (*Summary, error) {
	var sum Summary
	ok, err := kv.GetJSON(ctx, c.kv, p.Summary(id), &sum)
	if err != nil {
		// An unreadable summary is recomputed like a missing one.
		var syntaxErr *json.SyntaxError
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
			c.logger.Warn("discarding unreadable summary", "tenantPrefix", p.String(), "tripID", id, "error", err)
			return nil, nil
		}
		return nil, fmt.Errorf("load summary %s: %w", id, err)
	}
	if !ok {
		return nil, nil
	}
	return &sum, nil
}

func (c *SummaryCache) save(ctx context.Context, p tenant.Prefix, sum *Summary) error {
	if err := kv.PutJSON(ctx, c.kv, p.Summary(sum.ID), sum, kv.PutOptions{}); err != nil {
		return fmt.Errorf("save summary %s: %w", sum.ID, err)
	}
	return nil
}

func (c *SummaryCache) compute(id string, raw []byte) (*Summary, error) {
	shape, err := decodeShape(raw)
	if err != nil {
		return nil, fmt.Errorf("summarize trip %s: %w", id, err)
	}
	sum, err := summarize(shape)
	if err != nil {
		return nil, fmt.Errorf("summarize trip %s: %w", id, err)
	}
	sum.ID = id
	sum.Version = c.version
	return sum, nil
}

// contentHash returns the hex SHA-256 of the canonical JSON of shape.
func contentHash(shape tripShape) (string, error) {
	canonical, err := json.Marshal(shape)
	if err != nil {
		return "", err
	}
	digest := sha256.Sum256(canonical)
	return hex.EncodeToString(digest[:]), nil
}

// summarize derives every aggregate from shape. It is deterministic.
func summarize(shape tripShape) (*Summary, error) {
	hash, err := contentHash(shape)
	if err != nil {
		return nil, err
	}

	sum := &Summary{
		Hash:            hash,
		Title:           shape.Meta.Title,
		Destination:     shape.Meta.Destination,
		StartDate:       shape.Meta.StartDate,
		EndDate:         shape.Meta.EndDate,
		Travelers:       shape.Meta.Travelers,
		Days:            len(shape.Days),
		ItemsByCategory: make(map[string]int),
	}

	var cost float64
	for _, day := range shape.Days {
		for _, item := range day.Items {
			category := item.Category
			if category == "" {
				category = otherCategory
			}
			sum.Items++
			sum.ItemsByCategory[category]++
			cost += item.Cost
			if bookable[category] && item.Status != statusBooked {
				sum.Unbooked++
			}
		}
	}
	for _, stay := range shape.Lodging {
		cost += stay.Cost
		sum.LodgingNights += nightsBetween(stay.CheckIn, stay.CheckOut)
		if stay.Status != statusBooked {
			sum.Unbooked++
		}
	}
	sum.TotalCost = math.Round(cost*100) / 100
	sum.NextAction = nextAction(shape, sum)
	return sum, nil
}

func nextAction(shape tripShape, sum *Summary) string {
	switch {
	case shape.Meta.StartDate == "" || shape.Meta.EndDate == "":
		return ActionSetDates
	case sum.Items == 0:
		return ActionPlanDays
	case sum.LodgingNights < nightsBetween(shape.Meta.StartDate, shape.Meta.EndDate):
		return ActionBookLodging
	case sum.Unbooked > 0:
		return ActionConfirmBookings
	default:
		return ActionReady
	}
}

// nightsBetween counts nights from one date to another. Unparseable or
// reversed dates count as zero.
func nightsBetween(from, to string) int {
	start, err := time.Parse(dateLayout, from)
	if err != nil {
		return 0
	}
	end, err := time.Parse(dateLayout, to)
	if err != nil {
		return 0
	}
	if !end.After(start) {
		return 0
	}
	return int(end.Sub(start).Hours() / 24)
}
