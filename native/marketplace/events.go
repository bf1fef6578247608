package marketplace

import (
	"encoding/hex"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"nftmarket/core/types"
)

const (
	EventTypeInitialized    = "marketplace.initialized"
	EventTypeOfferingListed = "marketplace.offering.listed"
	EventTypeOfferingSold   = "marketplace.offering.sold"

	actionSellNFT = "sell_nft"
	actionBuyNFT  = "buy_nft"
)

// NewInitializedEvent returns the canonical payload emitted once the
// marketplace configuration is stored.
func NewInitializedEvent(info ContractInfo) *types.Event {
	return &types.Event{
		Type:       EventTypeInitialized,
		Attributes: map[string]string{"name": info.Name},
	}
}

// NewOfferingListedEvent returns the canonical payload for a newly escrowed
// NFT. payload is the raw listing message; its keccak256 digest lets indexers
// correlate the event with the deposit that produced it.
func NewOfferingListedEvent(view OfferingView, payload []byte) *types.Event {
	attrs := map[string]string{
		"action":      actionSellNFT,
		"offeringId":  view.ID,
		"seller":      view.Seller,
		"price":       amountOf(view.ListPrice).String(),
		"denom":       view.ListPrice.Denom,
		"tokenId":     view.TokenID,
		"assetSystem": view.ContractAddr,
	}
	if len(payload) > 0 {
		attrs["payloadHash"] = hex.EncodeToString(ethcrypto.Keccak256(payload))
	}
	return &types.Event{Type: EventTypeOfferingListed, Attributes: attrs}
}

// NewOfferingSoldEvent returns the canonical payload for a settled sale.
func NewOfferingSoldEvent(view OfferingView, buyer string, paid Coin) *types.Event {
	return &types.Event{
		Type: EventTypeOfferingSold,
		Attributes: map[string]string{
			"action":      actionBuyNFT,
			"offeringId":  view.ID,
			"buyer":       buyer,
			"seller":      view.Seller,
			"tokenId":     view.TokenID,
			"assetSystem": view.ContractAddr,
			"amount":      amountOf(paid).String(),
			"denom":       paid.Denom,
		},
	}
}
