package indexer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"nftmarket/core/events"
)

const (
	defaultListLimit = 100
	maxListLimit     = 1000
)

// Event is the query representation of an indexed event.
type Event struct {
	ID         string            `json:"id"`
	Height     uint64            `json:"height"`
	Sequence   int               `json:"sequence"`
	Type       string            `json:"type"`
	OfferingID string            `json:"offeringId,omitempty"`
	Attributes map[string]string `json:"attributes"`
}

// Filter narrows List results. Zero values match everything.
type Filter struct {
	Type       string `json:"type,omitempty"`
	OfferingID string `json:"offeringId,omitempty"`
	FromHeight uint64 `json:"fromHeight,omitempty"`
	Limit      int    `json:"limit,omitempty"`
}

// Sink persists committed events. It implements events.Emitter so it can be
// attached to the host directly; write failures are logged because emitters
// cannot report errors.
type Sink struct {
	db     *gorm.DB
	logger *slog.Logger
	now    func() time.Time

	mu         sync.Mutex
	lastHeight uint64
	sequence   int
}

// NewSink creates a sink writing to db.
func NewSink(db *gorm.DB, logger *slog.Logger) *Sink {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sink{db: db, logger: logger, now: time.Now}
}

// Emit records committed events and ignores everything else.
func (s *Sink) Emit(evt events.Event) {
	committed, ok := evt.(events.Committed)
	if !ok {
		return
	}
	if err := s.Record(context.Background(), committed); err != nil {
		s.logger.Error("indexer: record event",
			slog.String("type", committed.EventType()),
			slog.Uint64("height", committed.Height),
			slog.String("offeringId", committed.Payload.Attributes["offeringId"]),
			slog.Any("error", err))
	}
}

// Record stores a single committed event. Events sharing a height are
// numbered in arrival order.
func (s *Sink) Record(ctx context.Context, evt events.Committed) error {
	if s == nil || s.db == nil {
		return errors.New("indexer: sink not configured")
	}
	attrs := evt.Payload.Attributes
	if attrs == nil {
		attrs = map[string]string{}
	}
	encoded, err := json.Marshal(attrs)
	if err != nil {
		return fmt.Errorf("indexer: encode attributes: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	seq := 0
	if evt.Height == s.lastHeight {
		seq = s.sequence + 1
	}
	record := EventRecord{
		ID:         uuid.New(),
		Height:     evt.Height,
		Sequence:   seq,
		Type:       evt.Payload.Type,
		OfferingID: attrs["offeringId"],
		Attributes: string(encoded),
		CreatedAt:  s.now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		return fmt.Errorf("indexer: insert: %w", err)
	}
	s.lastHeight = evt.Height
	s.sequence = seq
	return nil
}

// List returns indexed events ordered by height and arrival.
func (s *Sink) List(ctx context.Context, filter Filter) ([]Event, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("indexer: sink not configured")
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	query := s.db.WithContext(ctx).Model(&EventRecord{})
	if t := strings.TrimSpace(filter.Type); t != "" {
		query = query.Where("type = ?", t)
	}
	if id := strings.TrimSpace(filter.OfferingID); id != "" {
		query = query.Where("offering_id = ?", id)
	}
	if filter.FromHeight > 0 {
		query = query.Where("height >= ?", filter.FromHeight)
	}
	var records []EventRecord
	if err := query.Order("height ASC").Order("sequence ASC").Limit(limit).Find(&records).Error; err != nil {
		return nil, fmt.Errorf("indexer: list: %w", err)
	}
	out := make([]Event, 0, len(records))
	for _, rec := range records {
		attrs := map[string]string{}
		if rec.Attributes != "" {
			if err := json.Unmarshal([]byte(rec.Attributes), &attrs); err != nil {
				return nil, fmt.Errorf("indexer: decode attributes for %s: %w", rec.ID, err)
			}
		}
		out = append(out, Event{
			ID:         rec.ID.String(),
			Height:     rec.Height,
			Sequence:   rec.Sequence,
			Type:       rec.Type,
			OfferingID: rec.OfferingID,
			Attributes: attrs,
		})
	}
	return out, nil
}
