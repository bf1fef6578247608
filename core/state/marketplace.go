package state

import (
	"bytes"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/rlp"

	"nftmarket/native/marketplace"
)

func marketplaceOfferingKey(id string) []byte {
	buf := make([]byte, len(marketplaceOfferingPrefix)+len(id))
	copy(buf, marketplaceOfferingPrefix)
	copy(buf[len(marketplaceOfferingPrefix):], id)
	return buf
}

type storedOffering struct {
	ID          string
	TokenID     string
	AssetSystem []byte
	Seller      []byte
	Denom       string
	Amount      *big.Int
}

func newStoredOffering(o *marketplace.Offering) *storedOffering {
	return &storedOffering{
		ID:          o.ID,
		TokenID:     o.TokenID,
		AssetSystem: append([]byte(nil), o.AssetSystem...),
		Seller:      append([]byte(nil), o.Seller...),
		Denom:       o.ListPrice.Denom,
		Amount:      cloneBigInt(o.ListPrice.Amount),
	}
}

func (s *storedOffering) toOffering() *marketplace.Offering {
	return &marketplace.Offering{
		ID:          s.ID,
		TokenID:     s.TokenID,
		AssetSystem: append([]byte(nil), s.AssetSystem...),
		Seller:      append([]byte(nil), s.Seller...),
		ListPrice:   marketplace.Coin{Denom: s.Denom, Amount: cloneBigInt(s.Amount)},
	}
}

type storedContractInfo struct {
	Name string
}

// MarketplaceConfig loads the marketplace configuration.
func (m *Manager) MarketplaceConfig() (*marketplace.ContractInfo, bool, error) {
	var stored storedContractInfo
	ok, err := m.KVGet(marketplaceConfigKey, &stored)
	if err != nil || !ok {
		return nil, ok, err
	}
	return &marketplace.ContractInfo{Name: stored.Name}, true, nil
}

// SetMarketplaceConfig stores the marketplace configuration.
func (m *Manager) SetMarketplaceConfig(info *marketplace.ContractInfo) error {
	if info == nil {
		return fmt.Errorf("marketplace: nil config")
	}
	return m.KVPut(marketplaceConfigKey, &storedContractInfo{Name: info.Name})
}

// MarketplaceOfferingCount returns the highest offering id minted so far.
func (m *Manager) MarketplaceOfferingCount() (uint64, error) {
	return m.Uint64(marketplaceOfferingCountKey)
}

// MarketplaceNextOfferingID advances the offering counter and returns the new
// value. Identifiers are never reused, even after the offering is deleted.
func (m *Manager) MarketplaceNextOfferingID() (uint64, error) {
	return m.IncrementUint64(marketplaceOfferingCountKey)
}

// MarketplaceOfferingPut inserts or overwrites the offering at its id.
func (m *Manager) MarketplaceOfferingPut(o *marketplace.Offering) error {
	sanitized, err := marketplace.SanitizeOffering(o)
	if err != nil {
		return err
	}
	return m.KVPut(marketplaceOfferingKey(sanitized.ID), newStoredOffering(sanitized))
}

// MarketplaceOfferingGet loads the live offering with the given id.
func (m *Manager) MarketplaceOfferingGet(id string) (*marketplace.Offering, bool, error) {
	trimmed := strings.TrimSpace(id)
	if trimmed == "" {
		return nil, false, nil
	}
	var stored storedOffering
	ok, err := m.KVGet(marketplaceOfferingKey(trimmed), &stored)
	if err != nil || !ok {
		return nil, false, err
	}
	return stored.toOffering(), true, nil
}

// MarketplaceOfferingDelete removes the offering with the given id.
func (m *Manager) MarketplaceOfferingDelete(id string) error {
	trimmed := strings.TrimSpace(id)
	if trimmed == "" {
		return fmt.Errorf("marketplace: offering id must not be empty")
	}
	return m.KVDelete(marketplaceOfferingKey(trimmed))
}

// MarketplaceOfferings returns every live offering in ascending key order.
func (m *Manager) MarketplaceOfferings() ([]*marketplace.Offering, error) {
	out := make([]*marketplace.Offering, 0)
	err := m.KVIterate(marketplaceOfferingPrefix, func(key, value []byte) error {
		var stored storedOffering
		if err := rlp.DecodeBytes(value, &stored); err != nil {
			return fmt.Errorf("marketplace: decode offering %q: %w", bytes.TrimPrefix(key, marketplaceOfferingPrefix), err)
		}
		out = append(out, stored.toOffering())
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
