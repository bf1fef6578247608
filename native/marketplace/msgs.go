package marketplace

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// MessageInfo carries the verified context of an invocation. Sender is the
// address the host authenticated as the caller; it is never read from the
// message body.
type MessageInfo struct {
	Sender string `json:"sender"`
}

// InitMsg configures the marketplace.
type InitMsg struct {
	Name string `json:"name"`
}

// ReceiveMsg is the deposit notification a token contract sends after an NFT
// has been transferred to the marketplace. Sender is the previous owner of the
// token, Msg the opaque payload attached by that owner.
type ReceiveMsg struct {
	Sender  string `json:"sender"`
	TokenID string `json:"token_id"`
	Msg     []byte `json:"msg,omitempty"`
}

// SellNFT is the payload expected inside ReceiveMsg.Msg.
type SellNFT struct {
	ListPrice *Coin `json:"list_price"`
}

// BuyMsg is a purchase request for a live offering.
type BuyMsg struct {
	Spender    string `json:"spender"`
	Amount     Coin   `json:"amount"`
	OfferingID string `json:"offering_id"`
}

// DecodeListPrice extracts the asking price from a deposit payload. Missing,
// undecodable or invalid payloads all yield ErrMissingListingData.
func DecodeListPrice(payload []byte) (Coin, error) {
	if len(bytes.TrimSpace(payload)) == 0 {
		return Coin{}, fmt.Errorf("%w: no payload attached", ErrMissingListingData)
	}
	var msg SellNFT
	if err := json.Unmarshal(payload, &msg); err != nil {
		return Coin{}, fmt.Errorf("%w: %w: %v", ErrMissingListingData, ErrDecode, err)
	}
	if msg.ListPrice == nil {
		return Coin{}, fmt.Errorf("%w: list_price absent", ErrMissingListingData)
	}
	price := msg.ListPrice.Clone()
	if err := price.Validate(); err != nil {
		return Coin{}, fmt.Errorf("%w: %w: %v", ErrMissingListingData, ErrDecode, err)
	}
	return price, nil
}

// EncodeListPrice builds the payload a seller attaches to a deposit.
func EncodeListPrice(price Coin) ([]byte, error) {
	p := price.Clone()
	return json.Marshal(SellNFT{ListPrice: &p})
}
