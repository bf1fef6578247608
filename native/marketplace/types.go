package marketplace

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
)

// Coin is an amount of a single denomination. Amounts are arbitrary precision
// non-negative integers and travel as decimal strings on the wire.
type Coin struct {
	Denom  string
	Amount *big.Int
}

// NewCoin builds a coin from an int64 amount.
func NewCoin(amount int64, denom string) Coin {
	return Coin{Denom: denom, Amount: big.NewInt(amount)}
}

// Clone returns a deep copy of the coin.
func (c Coin) Clone() Coin {
	out := Coin{Denom: c.Denom, Amount: big.NewInt(0)}
	if c.Amount != nil {
		out.Amount = new(big.Int).Set(c.Amount)
	}
	return out
}

// Equal reports whether both denomination and amount match.
func (c Coin) Equal(other Coin) bool {
	return c.Denom == other.Denom && amountOf(c).Cmp(amountOf(other)) == 0
}

func (c Coin) String() string {
	return amountOf(c).String() + c.Denom
}

// Validate checks that the denomination is present and the amount is a
// non-negative integer.
func (c Coin) Validate() error {
	if strings.TrimSpace(c.Denom) == "" {
		return fmt.Errorf("coin denom must not be empty")
	}
	if c.Amount == nil {
		return fmt.Errorf("coin amount must be set")
	}
	if c.Amount.Sign() < 0 {
		return fmt.Errorf("coin amount must be non-negative")
	}
	return nil
}

type coinJSON struct {
	Amount json.RawMessage `json:"amount"`
	Denom  string          `json:"denom"`
}

// MarshalJSON renders the amount as a decimal string.
func (c Coin) MarshalJSON() ([]byte, error) {
	amount, err := json.Marshal(amountOf(c).String())
	if err != nil {
		return nil, err
	}
	return json.Marshal(coinJSON{Amount: amount, Denom: c.Denom})
}

// UnmarshalJSON accepts the amount either as a decimal string or as a bare
// JSON integer.
func (c *Coin) UnmarshalJSON(data []byte) error {
	var raw coinJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	trimmed := bytes.TrimSpace(raw.Amount)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return fmt.Errorf("coin amount required")
	}
	text := string(trimmed)
	if trimmed[0] == '"' {
		if err := json.Unmarshal(trimmed, &text); err != nil {
			return err
		}
	}
	amount, ok := new(big.Int).SetString(strings.TrimSpace(text), 10)
	if !ok {
		return fmt.Errorf("invalid coin amount %q", text)
	}
	c.Amount = amount
	c.Denom = raw.Denom
	return nil
}

func amountOf(c Coin) *big.Int {
	if c.Amount == nil {
		return big.NewInt(0)
	}
	return c.Amount
}

// Offering is an NFT held in escrow awaiting sale. Offerings are never updated
// after creation; a sale deletes them.
type Offering struct {
	ID          string
	TokenID     string
	AssetSystem []byte // canonical address of the token contract that deposited the asset
	Seller      []byte // canonical address entitled to the payment
	ListPrice   Coin
}

// Clone returns a deep copy so callers can mutate the result safely.
func (o *Offering) Clone() *Offering {
	if o == nil {
		return nil
	}
	return &Offering{
		ID:          o.ID,
		TokenID:     o.TokenID,
		AssetSystem: append([]byte(nil), o.AssetSystem...),
		Seller:      append([]byte(nil), o.Seller...),
		ListPrice:   o.ListPrice.Clone(),
	}
}

// SanitizeOffering validates the offering and returns a normalised clone.
func SanitizeOffering(o *Offering) (*Offering, error) {
	if o == nil {
		return nil, fmt.Errorf("nil offering")
	}
	clone := o.Clone()
	clone.ID = strings.TrimSpace(clone.ID)
	if clone.ID == "" {
		return nil, fmt.Errorf("offering id must not be empty")
	}
	if strings.TrimSpace(clone.TokenID) == "" {
		return nil, fmt.Errorf("offering token id must not be empty")
	}
	if len(clone.AssetSystem) == 0 {
		return nil, fmt.Errorf("offering asset system address must not be empty")
	}
	if len(clone.Seller) == 0 {
		return nil, fmt.Errorf("offering seller address must not be empty")
	}
	if err := clone.ListPrice.Validate(); err != nil {
		return nil, fmt.Errorf("offering list price: %w", err)
	}
	return clone, nil
}

// ContractInfo is the marketplace configuration written once at
// initialisation.
type ContractInfo struct {
	Name string `json:"name"`
}

// OfferingView is the query representation of an offering with addresses in
// display form.
type OfferingView struct {
	ID           string `json:"id"`
	TokenID      string `json:"token_id"`
	ListPrice    Coin   `json:"list_price"`
	ContractAddr string `json:"contract_addr"`
	Seller       string `json:"seller"`
}
