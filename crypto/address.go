package crypto

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/btcsuite/btcutil/bech32"
)

const (
	rawAddressMinLen = 3
	rawAddressMaxLen = 64
)

// ErrInvalidAddress is returned when a human-readable address cannot be
// canonicalised, or a stored canonical address cannot be rendered.
var ErrInvalidAddress = errors.New("address: invalid")

// AddressCodec converts between the human-readable form of an address used on
// the wire and the canonical byte form kept in state.
type AddressCodec interface {
	Canonicalize(human string) ([]byte, error)
	Humanize(canonical []byte) (string, error)
}

// Bech32Codec encodes canonical addresses as bech32 strings carrying a fixed
// human-readable prefix such as "nft".
type Bech32Codec struct {
	Prefix string
}

// NewBech32Codec returns a codec bound to the lower-cased prefix.
func NewBech32Codec(prefix string) Bech32Codec {
	return Bech32Codec{Prefix: strings.ToLower(strings.TrimSpace(prefix))}
}

func (c Bech32Codec) Canonicalize(human string) ([]byte, error) {
	prefix, decoded, err := bech32.Decode(strings.TrimSpace(human))
	if err != nil {
		return nil, fmt.Errorf("%w: invalid bech32 string: %v", ErrInvalidAddress, err)
	}
	if prefix != c.Prefix {
		return nil, fmt.Errorf("%w: unexpected prefix %q", ErrInvalidAddress, prefix)
	}
	conv, err := bech32.ConvertBits(decoded, 5, 8, false)
	if err != nil {
		return nil, fmt.Errorf("%w: error converting bits: %v", ErrInvalidAddress, err)
	}
	if len(conv) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrInvalidAddress)
	}
	return conv, nil
}

func (c Bech32Codec) Humanize(canonical []byte) (string, error) {
	if len(canonical) == 0 {
		return "", fmt.Errorf("%w: empty canonical address", ErrInvalidAddress)
	}
	conv, err := bech32.ConvertBits(canonical, 8, 5, true)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	encoded, err := bech32.Encode(c.Prefix, conv)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	return encoded, nil
}

// RawCodec keeps the UTF-8 bytes of the human address as its canonical form.
// It accepts any printable identifier between 3 and 64 bytes without
// whitespace, which is what local and test networks use ("seller", "buyer").
type RawCodec struct{}

func (RawCodec) Canonicalize(human string) ([]byte, error) {
	if err := validateRaw(human); err != nil {
		return nil, err
	}
	return []byte(human), nil
}

func (RawCodec) Humanize(canonical []byte) (string, error) {
	human := string(canonical)
	if err := validateRaw(human); err != nil {
		return "", err
	}
	return human, nil
}

func validateRaw(human string) error {
	if len(human) < rawAddressMinLen {
		return fmt.Errorf("%w: %q shorter than %d bytes", ErrInvalidAddress, human, rawAddressMinLen)
	}
	if len(human) > rawAddressMaxLen {
		return fmt.Errorf("%w: longer than %d bytes", ErrInvalidAddress, rawAddressMaxLen)
	}
	if !utf8.ValidString(human) {
		return fmt.Errorf("%w: %q is not valid UTF-8", ErrInvalidAddress, human)
	}
	for _, r := range human {
		if unicode.IsSpace(r) || !unicode.IsPrint(r) {
			return fmt.Errorf("%w: %q contains whitespace or control characters", ErrInvalidAddress, human)
		}
	}
	return nil
}

// CodecForPrefix returns the bech32 codec for a non-empty prefix and the raw
// codec otherwise.
func CodecForPrefix(prefix string) AddressCodec {
	if strings.TrimSpace(prefix) == "" {
		return RawCodec{}
	}
	return NewBech32Codec(prefix)
}
