package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"nftmarket/core/events"
	nftstate "nftmarket/core/state"
	"nftmarket/core/types"
	"nftmarket/crypto"
	"nftmarket/native/marketplace"
	"nftmarket/observability"
	nftotel "nftmarket/observability/otel"
	"nftmarket/storage"
)

const (
	OpInitialize = "initialize"
	OpReceiveNFT = "receive_nft"
	OpBuyNFT     = "buy_nft"
)

// HostConfig wires the collaborators of a Host. Zero values select the raw
// address codec, a no-op emitter, the default slog logger and the global
// tracer.
type HostConfig struct {
	Codec       crypto.AddressCodec
	StrictDenom bool
	Emitter     events.Emitter
	Logger      *slog.Logger
	Metrics     *observability.MarketplaceMetrics
	Tracer      trace.Tracer
}

// Receipt describes a committed unit of work.
type Receipt struct {
	Height          uint64                    `json:"height"`
	Operation       string                    `json:"operation"`
	OfferingID      string                    `json:"offering_id,omitempty"`
	Instructions    []marketplace.Instruction `json:"instructions"`
	InstructionRoot common.Hash               `json:"instruction_root"`
	Events          []types.Event             `json:"events"`
}

// Host executes marketplace requests as atomic units of work against a
// database. Every request runs inside its own storage transaction; the
// transaction commits only when the engine returns success, otherwise all
// writes, events and instructions are discarded. Requests are serialised.
type Host struct {
	mu      sync.Mutex
	db      storage.Database
	codec   crypto.AddressCodec
	strict  bool
	emitter events.Emitter
	logger  *slog.Logger
	metrics *observability.MarketplaceMetrics
	tracer  trace.Tracer
}

// NewHost creates a host over db and primes the live offering gauge.
func NewHost(db storage.Database, cfg HostConfig) (*Host, error) {
	if db == nil {
		return nil, errors.New("host: database required")
	}
	h := &Host{
		db:      db,
		codec:   cfg.Codec,
		strict:  cfg.StrictDenom,
		emitter: cfg.Emitter,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
		tracer:  cfg.Tracer,
	}
	if h.codec == nil {
		h.codec = crypto.RawCodec{}
	}
	if h.emitter == nil {
		h.emitter = events.NoopEmitter{}
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	if h.tracer == nil {
		h.tracer = nftotel.Tracer()
	}
	live, err := nftstate.NewManager(db).MarketplaceOfferings()
	if err != nil {
		return nil, fmt.Errorf("host: load offerings: %w", err)
	}
	h.metrics.SetLiveOfferings(len(live))
	return h, nil
}

func (h *Host) engine(mgr *nftstate.Manager, emitter events.Emitter) *marketplace.Engine {
	engine := marketplace.NewEngine()
	engine.SetState(mgr)
	engine.SetAddressCodec(h.codec)
	engine.SetStrictDenom(h.strict)
	engine.SetEmitter(emitter)
	return engine
}

// Initialize stores the marketplace configuration.
func (h *Host) Initialize(ctx context.Context, msg marketplace.InitMsg) (*Receipt, error) {
	return h.execute(ctx, OpInitialize, func(e *marketplace.Engine) (*marketplace.Response, error) {
		if err := e.Initialize(msg); err != nil {
			return nil, err
		}
		return &marketplace.Response{}, nil
	})
}

// ReceiveNFT handles a deposit notification from the token contract
// identified by info.Sender.
func (h *Host) ReceiveNFT(ctx context.Context, info marketplace.MessageInfo, msg marketplace.ReceiveMsg) (*Receipt, error) {
	receipt, err := h.execute(ctx, OpReceiveNFT, func(e *marketplace.Engine) (*marketplace.Response, error) {
		return e.ReceiveNFT(info, msg)
	})
	if err == nil {
		h.metrics.AddLiveOfferings(1)
	}
	return receipt, err
}

// BuyNFT settles a purchase and returns the instructions the caller must
// dispatch.
func (h *Host) BuyNFT(ctx context.Context, info marketplace.MessageInfo, msg marketplace.BuyMsg) (*Receipt, error) {
	receipt, err := h.execute(ctx, OpBuyNFT, func(e *marketplace.Engine) (*marketplace.Response, error) {
		return e.BuyNFT(info, msg)
	})
	if err == nil {
		h.metrics.AddLiveOfferings(-1)
		for _, ins := range receipt.Instructions {
			h.metrics.RecordInstruction(string(ins.Kind))
		}
	}
	return receipt, err
}

// Offerings lists every live offering.
func (h *Host) Offerings(ctx context.Context) ([]marketplace.OfferingView, error) {
	var out []marketplace.OfferingView
	err := h.query(ctx, "offerings", func(e *marketplace.Engine) error {
		var err error
		out, err = e.Offerings()
		return err
	})
	return out, err
}

// Offering returns a single live offering.
func (h *Host) Offering(ctx context.Context, id string) (marketplace.OfferingView, error) {
	var out marketplace.OfferingView
	err := h.query(ctx, "offering", func(e *marketplace.Engine) error {
		var err error
		out, err = e.Offering(id)
		return err
	})
	return out, err
}

// Config returns the marketplace configuration.
func (h *Host) Config(ctx context.Context) (marketplace.ContractInfo, error) {
	var out marketplace.ContractInfo
	err := h.query(ctx, "config", func(e *marketplace.Engine) error {
		var err error
		out, err = e.Config()
		return err
	})
	return out, err
}

// Height returns the number of committed units of work.
func (h *Host) Height(ctx context.Context) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return nftstate.NewManager(h.db).HostHeight()
}

func (h *Host) query(ctx context.Context, name string, fn func(*marketplace.Engine) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, span := h.tracer.Start(ctx, "marketplace.query."+name)
	defer span.End()

	h.mu.Lock()
	defer h.mu.Unlock()
	txn, err := h.db.Begin()
	if err != nil {
		return fmt.Errorf("%w: %v", marketplace.ErrStorageFault, err)
	}
	defer txn.Discard()
	if err := fn(h.engine(nftstate.NewManager(txn), events.NoopEmitter{})); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, marketplace.Reason(err))
		return err
	}
	return nil
}

func (h *Host) execute(ctx context.Context, op string, fn func(*marketplace.Engine) (*marketplace.Response, error)) (*Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	_, span := h.tracer.Start(ctx, "marketplace."+op, trace.WithAttributes(attribute.String("marketplace.operation", op)))
	defer span.End()

	h.mu.Lock()
	defer h.mu.Unlock()

	start := time.Now()
	txn, err := h.db.Begin()
	if err != nil {
		return nil, h.reject(span, op, start, fmt.Errorf("%w: %v", marketplace.ErrStorageFault, err))
	}
	committed := false
	defer func() {
		if !committed {
			txn.Discard()
		}
	}()

	mgr := nftstate.NewManager(txn)
	collector := &events.Collector{}
	resp, err := fn(h.engine(mgr, collector))
	if err != nil {
		return nil, h.reject(span, op, start, err)
	}
	if resp == nil {
		resp = &marketplace.Response{}
	}
	root, err := ComputeInstructionRoot(resp.Instructions)
	if err != nil {
		return nil, h.reject(span, op, start, fmt.Errorf("%w: instruction root: %v", marketplace.ErrDecode, err))
	}
	height, err := mgr.AdvanceHostHeight()
	if err != nil {
		return nil, h.reject(span, op, start, fmt.Errorf("%w: advance height: %v", marketplace.ErrStorageFault, err))
	}
	if err := txn.Commit(); err != nil {
		return nil, h.reject(span, op, start, fmt.Errorf("%w: commit: %v", marketplace.ErrStorageFault, err))
	}
	committed = true

	receipt := &Receipt{
		Height:          height,
		Operation:       op,
		OfferingID:      resp.OfferingID,
		Instructions:    resp.Instructions,
		InstructionRoot: root,
		Events:          collector.Events(),
	}
	if receipt.Instructions == nil {
		receipt.Instructions = []marketplace.Instruction{}
	}
	for _, evt := range receipt.Events {
		h.emitter.Emit(events.Committed{Height: height, Payload: evt})
	}

	span.SetAttributes(
		attribute.Int64("marketplace.height", int64(height)),
		attribute.Int("marketplace.instructions", len(receipt.Instructions)),
	)
	h.metrics.ObserveCommit(op, time.Since(start))
	h.logger.Info("marketplace unit of work committed",
		slog.String("operation", op),
		slog.Uint64("height", height),
		slog.String("offeringId", receipt.OfferingID),
		slog.Int("instructions", len(receipt.Instructions)),
		slog.String("instructionRoot", root.Hex()))
	return receipt, nil
}

func (h *Host) reject(span trace.Span, op string, start time.Time, err error) error {
	reason := marketplace.Reason(err)
	span.RecordError(err)
	span.SetStatus(codes.Error, reason)
	h.metrics.ObserveRejection(op, reason, time.Since(start))
	h.logger.Warn("marketplace unit of work rolled back",
		slog.String("operation", op),
		slog.String("reason", reason),
		slog.Any("error", err))
	return err
}
