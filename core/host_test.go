package core

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"

	"nftmarket/core/events"
	nftstate "nftmarket/core/state"
	"nftmarket/native/marketplace"
	"nftmarket/observability/logging"
	"nftmarket/storage"
)

type recordingEmitter struct {
	committed []events.Committed
}

func (r *recordingEmitter) Emit(evt events.Event) {
	if c, ok := evt.(events.Committed); ok {
		r.committed = append(r.committed, c)
	}
}

func newTestHost(t *testing.T) (*Host, *recordingEmitter, *storage.LevelDB) {
	t.Helper()
	db := storage.NewMemDB()
	t.Cleanup(func() { _ = db.Close() })
	emitter := &recordingEmitter{}
	host, err := NewHost(db, HostConfig{Emitter: emitter})
	require.NoError(t, err)
	return host, emitter, db
}

func listPayload(t *testing.T, amount int64, denom string) []byte {
	t.Helper()
	payload, err := marketplace.EncodeListPrice(marketplace.NewCoin(amount, denom))
	require.NoError(t, err)
	return payload
}

func TestHostEndToEndScenario(t *testing.T) {
	ctx := context.Background()
	host, emitter, _ := newTestHost(t)

	_, err := host.Initialize(ctx, marketplace.InitMsg{Name: "test market"})
	require.NoError(t, err)
	info, err := host.Config(ctx)
	require.NoError(t, err)
	require.Equal(t, "test market", info.Name)

	listed, err := host.ReceiveNFT(ctx,
		marketplace.MessageInfo{Sender: "anyone"},
		marketplace.ReceiveMsg{Sender: "seller", TokenID: "SellableNFT", Msg: listPayload(t, 5, "ATOM")},
	)
	require.NoError(t, err)
	require.Equal(t, "1", listed.OfferingID)
	require.Empty(t, listed.Instructions)
	require.Equal(t, gethtypes.EmptyRootHash, listed.InstructionRoot)

	offerings, err := host.Offerings(ctx)
	require.NoError(t, err)
	require.Len(t, offerings, 1)
	require.Equal(t, marketplace.OfferingView{
		ID:           "1",
		TokenID:      "SellableNFT",
		ListPrice:    marketplace.NewCoin(5, "ATOM"),
		ContractAddr: "anyone",
		Seller:       "seller",
	}, offerings[0])

	sold, err := host.BuyNFT(ctx,
		marketplace.MessageInfo{Sender: "buyer"},
		marketplace.BuyMsg{Spender: "buyer", Amount: marketplace.NewCoin(5, "ATOM"), OfferingID: offerings[0].ID},
	)
	require.NoError(t, err)
	require.Equal(t, []marketplace.Instruction{
		marketplace.NewBankSendInstruction("buyer", "seller", marketplace.NewCoin(5, "ATOM")),
		marketplace.NewAssetTransferInstruction("anyone", "buyer", "SellableNFT"),
	}, sold.Instructions)
	require.NotEqual(t, gethtypes.EmptyRootHash, sold.InstructionRoot)

	offerings, err = host.Offerings(ctx)
	require.NoError(t, err)
	require.Empty(t, offerings)

	height, err := host.Height(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(3), height)
	require.Equal(t, uint64(3), sold.Height)

	var types []string
	for _, c := range emitter.committed {
		types = append(types, c.EventType())
	}
	require.Equal(t, []string{
		marketplace.EventTypeInitialized,
		marketplace.EventTypeOfferingListed,
		marketplace.EventTypeOfferingSold,
	}, types)
	require.Equal(t, uint64(3), emitter.committed[2].Height)
}

func TestHostRejectedPurchaseLeavesStateUntouched(t *testing.T) {
	ctx := context.Background()
	host, emitter, db := newTestHost(t)

	_, err := host.ReceiveNFT(ctx,
		marketplace.MessageInfo{Sender: "anyone"},
		marketplace.ReceiveMsg{Sender: "seller", TokenID: "X", Msg: listPayload(t, 5, "ATOM")},
	)
	require.NoError(t, err)
	before, err := host.Offerings(ctx)
	require.NoError(t, err)

	receipt, err := host.BuyNFT(ctx,
		marketplace.MessageInfo{Sender: "buyer"},
		marketplace.BuyMsg{Spender: "buyer", Amount: marketplace.NewCoin(4, "ATOM"), OfferingID: "1"},
	)
	require.ErrorIs(t, err, marketplace.ErrInsufficientFunds)
	require.Nil(t, receipt)

	after, err := host.Offerings(ctx)
	require.NoError(t, err)
	require.Equal(t, before, after)

	receipt, err = host.BuyNFT(ctx,
		marketplace.MessageInfo{Sender: "buyer"},
		marketplace.BuyMsg{Spender: "buyer", Amount: marketplace.NewCoin(5, "ATOM"), OfferingID: "42"},
	)
	require.ErrorIs(t, err, marketplace.ErrOfferingNotFound)
	require.Nil(t, receipt)

	height, err := nftstate.NewManager(db).HostHeight()
	require.NoError(t, err)
	require.Equal(t, uint64(1), height, "rejected invocations must not advance the height")
	require.Len(t, emitter.committed, 1, "rejected invocations must not publish events")
}

func TestHostRejectedListingDoesNotConsumeIdentifier(t *testing.T) {
	ctx := context.Background()
	host, _, db := newTestHost(t)

	_, err := host.ReceiveNFT(ctx,
		marketplace.MessageInfo{Sender: "anyone"},
		marketplace.ReceiveMsg{Sender: "seller", TokenID: "X"},
	)
	require.ErrorIs(t, err, marketplace.ErrMissingListingData)

	_, err = host.ReceiveNFT(ctx,
		marketplace.MessageInfo{Sender: "anyone"},
		marketplace.ReceiveMsg{Sender: "s", TokenID: "X", Msg: listPayload(t, 5, "ATOM")},
	)
	require.ErrorIs(t, err, marketplace.ErrDecode)

	count, err := nftstate.NewManager(db).MarketplaceOfferingCount()
	require.NoError(t, err)
	require.Zero(t, count)

	receipt, err := host.ReceiveNFT(ctx,
		marketplace.MessageInfo{Sender: "anyone"},
		marketplace.ReceiveMsg{Sender: "seller", TokenID: "X", Msg: listPayload(t, 5, "ATOM")},
	)
	require.NoError(t, err)
	require.Equal(t, "1", receipt.OfferingID)
}

func TestHostIdentifiersNeverReused(t *testing.T) {
	ctx := context.Background()
	host, _, _ := newTestHost(t)

	seen := map[string]bool{}
	for i := 0; i < 3; i++ {
		receipt, err := host.ReceiveNFT(ctx,
			marketplace.MessageInfo{Sender: "anyone"},
			marketplace.ReceiveMsg{Sender: "seller", TokenID: "token", Msg: listPayload(t, 1, "ATOM")},
		)
		require.NoError(t, err)
		require.False(t, seen[receipt.OfferingID])
		seen[receipt.OfferingID] = true

		_, err = host.BuyNFT(ctx,
			marketplace.MessageInfo{Sender: "buyer"},
			marketplace.BuyMsg{Spender: "buyer", Amount: marketplace.NewCoin(1, "ATOM"), OfferingID: receipt.OfferingID},
		)
		require.NoError(t, err)
	}
	require.Len(t, seen, 3)
}

func TestHostRespectsCancelledContext(t *testing.T) {
	host, _, _ := newTestHost(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := host.Initialize(ctx, marketplace.InitMsg{Name: "m"})
	require.True(t, errors.Is(err, context.Canceled))
}

func TestHostStrictDenom(t *testing.T) {
	ctx := context.Background()
	db := storage.NewMemDB()
	defer db.Close()
	host, err := NewHost(db, HostConfig{StrictDenom: true})
	require.NoError(t, err)

	_, err = host.ReceiveNFT(ctx,
		marketplace.MessageInfo{Sender: "anyone"},
		marketplace.ReceiveMsg{Sender: "seller", TokenID: "X", Msg: listPayload(t, 5, "ATOM")},
	)
	require.NoError(t, err)
	_, err = host.BuyNFT(ctx,
		marketplace.MessageInfo{Sender: "buyer"},
		marketplace.BuyMsg{Spender: "buyer", Amount: marketplace.NewCoin(5, "OSMO"), OfferingID: "1"},
	)
	require.ErrorIs(t, err, marketplace.ErrDenomMismatch)
}

func TestHostLogsThroughRedactingHandler(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	logger := logging.SetupWriter(&buf, "marketd", "test", slog.LevelInfo)
	db := storage.NewMemDB()
	defer db.Close()
	host, err := NewHost(db, HostConfig{Logger: logger.With("component", "host")})
	require.NoError(t, err)

	_, err = host.ReceiveNFT(context.Background(),
		marketplace.MessageInfo{Sender: "anyone"},
		marketplace.ReceiveMsg{Sender: "seller", TokenID: "X", Msg: listPayload(t, 5, "ATOM")},
	)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	var line map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[len(lines)-1]), &line))
	require.Equal(t, "host", line["component"])
	require.Equal(t, OpReceiveNFT, line["operation"])
	require.Equal(t, "1", line["offeringId"])
	require.Equal(t, gethtypes.EmptyRootHash.Hex(), line["instructionRoot"])
}
