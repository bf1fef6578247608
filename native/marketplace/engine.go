package marketplace

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"nftmarket/core/events"
	"nftmarket/core/types"
	"nftmarket/crypto"
)

type engineState interface {
	MarketplaceConfig() (*ContractInfo, bool, error)
	SetMarketplaceConfig(info *ContractInfo) error
	MarketplaceNextOfferingID() (uint64, error)
	MarketplaceOfferingPut(o *Offering) error
	MarketplaceOfferingGet(id string) (*Offering, bool, error)
	MarketplaceOfferingDelete(id string) error
	MarketplaceOfferings() ([]*Offering, error)
}

type marketplaceEvent struct {
	evt *types.Event
}

func (e marketplaceEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e marketplaceEvent) Event() *types.Event { return e.evt }

// Response is the result of a successful state transition. Instructions must
// be executed by the host only after the surrounding unit of work commits.
type Response struct {
	OfferingID   string
	Instructions []Instruction
}

// Engine implements listing, settlement and queries for the NFT marketplace.
// It holds no state of its own: every call reads and writes through the
// injected state backend, which the host scopes to a single unit of work.
type Engine struct {
	state       engineState
	codec       crypto.AddressCodec
	emitter     events.Emitter
	strictDenom bool
}

// NewEngine creates a marketplace engine with a no-op emitter and the raw
// address codec.
func NewEngine() *Engine {
	return &Engine{
		codec:   crypto.RawCodec{},
		emitter: events.NoopEmitter{},
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetAddressCodec configures how human addresses map to canonical bytes.
func (e *Engine) SetAddressCodec(codec crypto.AddressCodec) { e.codec = codec }

// SetStrictDenom makes settlement reject payments whose denomination differs
// from the list price. By default only the amount is compared.
func (e *Engine) SetStrictDenom(strict bool) { e.strictDenom = strict }

// SetEmitter configures the event emitter used by the engine. Passing nil resets
// the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(marketplaceEvent{evt: event})
}

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.codec == nil {
		return errNilCodec
	}
	return nil
}

func (e *Engine) canonical(field, human string) ([]byte, error) {
	addr, err := e.codec.Canonicalize(strings.TrimSpace(human))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDecode, field, err)
	}
	return addr, nil
}

func (e *Engine) human(field string, canonical []byte) (string, error) {
	addr, err := e.codec.Humanize(canonical)
	if err != nil {
		return "", fmt.Errorf("%w: stored %s: %v", ErrDecode, field, err)
	}
	return addr, nil
}

func storageFault(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrStorageFault, op, err)
}

// Initialize stores the marketplace configuration. It can run only once.
func (e *Engine) Initialize(msg InitMsg) error {
	if err := e.ready(); err != nil {
		return err
	}
	name := strings.TrimSpace(msg.Name)
	if name == "" {
		return fmt.Errorf("%w: name must not be empty", ErrInvalidRequest)
	}
	_, exists, err := e.state.MarketplaceConfig()
	if err != nil {
		return storageFault("load config", err)
	}
	if exists {
		return ErrAlreadyInitialized
	}
	info := ContractInfo{Name: name}
	if err := e.state.SetMarketplaceConfig(&info); err != nil {
		return storageFault("store config", err)
	}
	e.emit(NewInitializedEvent(info))
	return nil
}

// ReceiveNFT lists the deposited token. info.Sender must be the token
// contract that performed the transfer; it becomes the offering's asset
// system regardless of anything in the message body.
func (e *Engine) ReceiveNFT(info MessageInfo, msg ReceiveMsg) (*Response, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	price, err := DecodeListPrice(msg.Msg)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(msg.TokenID) == "" {
		return nil, fmt.Errorf("%w: token_id must not be empty", ErrInvalidRequest)
	}
	assetSystem, err := e.canonical("asset system", info.Sender)
	if err != nil {
		return nil, err
	}
	seller, err := e.canonical("seller", msg.Sender)
	if err != nil {
		return nil, err
	}

	next, err := e.state.MarketplaceNextOfferingID()
	if err != nil {
		return nil, storageFault("allocate offering id", err)
	}
	offering := &Offering{
		ID:          strconv.FormatUint(next, 10),
		TokenID:     msg.TokenID,
		AssetSystem: assetSystem,
		Seller:      seller,
		ListPrice:   price,
	}
	if err := e.state.MarketplaceOfferingPut(offering); err != nil {
		return nil, storageFault("store offering", err)
	}

	view, err := e.view(offering)
	if err != nil {
		return nil, err
	}
	e.emit(NewOfferingListedEvent(view, msg.Msg))
	return &Response{OfferingID: offering.ID}, nil
}

// BuyNFT settles a purchase. On success the offering is removed and two
// instructions are returned: the payment to the seller followed by the token
// transfer to the buyer.
func (e *Engine) BuyNFT(info MessageInfo, msg BuyMsg) (*Response, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	id := strings.TrimSpace(msg.OfferingID)
	offering, ok, err := e.state.MarketplaceOfferingGet(id)
	if err != nil {
		return nil, storageFault("load offering", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrOfferingNotFound, id)
	}

	payment := msg.Amount.Clone()
	if msg.Amount.Amount == nil || payment.Amount.Sign() < 0 {
		return nil, fmt.Errorf("%w: payment amount must be a non-negative integer", ErrDecode)
	}
	// Only the numeric amount is compared unless strict mode is enabled.
	if payment.Amount.Cmp(amountOf(offering.ListPrice)) < 0 {
		return nil, fmt.Errorf("%w: offered %s, list price %s", ErrInsufficientFunds, payment, offering.ListPrice)
	}
	if e.strictDenom && payment.Denom != offering.ListPrice.Denom {
		return nil, fmt.Errorf("%w: offered %q, list price %q", ErrDenomMismatch, payment.Denom, offering.ListPrice.Denom)
	}

	buyerCanonical, err := e.canonical("spender", msg.Spender)
	if err != nil {
		return nil, err
	}
	buyer, err := e.human("spender", buyerCanonical)
	if err != nil {
		return nil, err
	}
	view, err := e.view(offering)
	if err != nil {
		return nil, err
	}

	instructions := []Instruction{
		NewBankSendInstruction(buyer, view.Seller, payment),
		NewAssetTransferInstruction(view.ContractAddr, buyer, offering.TokenID),
	}
	if err := e.state.MarketplaceOfferingDelete(offering.ID); err != nil {
		return nil, storageFault("delete offering", err)
	}
	e.emit(NewOfferingSoldEvent(view, buyer, payment))
	return &Response{OfferingID: offering.ID, Instructions: instructions}, nil
}

// Offerings returns every live offering in ascending id key order.
func (e *Engine) Offerings() ([]OfferingView, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	stored, err := e.state.MarketplaceOfferings()
	if err != nil {
		return nil, storageFault("list offerings", err)
	}
	out := make([]OfferingView, 0, len(stored))
	for _, offering := range stored {
		view, err := e.view(offering)
		if err != nil {
			return nil, err
		}
		out = append(out, view)
	}
	return out, nil
}

// Offering returns a single live offering.
func (e *Engine) Offering(id string) (OfferingView, error) {
	if err := e.ready(); err != nil {
		return OfferingView{}, err
	}
	trimmed := strings.TrimSpace(id)
	offering, ok, err := e.state.MarketplaceOfferingGet(trimmed)
	if err != nil {
		return OfferingView{}, storageFault("load offering", err)
	}
	if !ok {
		return OfferingView{}, fmt.Errorf("%w: %q", ErrOfferingNotFound, trimmed)
	}
	return e.view(offering)
}

// Config returns the stored marketplace configuration.
func (e *Engine) Config() (ContractInfo, error) {
	if err := e.ready(); err != nil {
		return ContractInfo{}, err
	}
	info, ok, err := e.state.MarketplaceConfig()
	if err != nil {
		return ContractInfo{}, storageFault("load config", err)
	}
	if !ok || info == nil {
		return ContractInfo{}, ErrNotInitialized
	}
	return *info, nil
}

func (e *Engine) view(o *Offering) (OfferingView, error) {
	if o == nil {
		return OfferingView{}, errors.New("marketplace engine: nil offering")
	}
	contract, err := e.human("asset system", o.AssetSystem)
	if err != nil {
		return OfferingView{}, err
	}
	seller, err := e.human("seller", o.Seller)
	if err != nil {
		return OfferingView{}, err
	}
	return OfferingView{
		ID:           o.ID,
		TokenID:      o.TokenID,
		ListPrice:    o.ListPrice.Clone(),
		ContractAddr: contract,
		Seller:       seller,
	}, nil
}
