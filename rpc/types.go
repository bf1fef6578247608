package rpc

import (
	"bytes"
	"encoding/json"
	"fmt"

	"nftmarket/native/marketplace"
)

type initializeParams struct {
	Name string `json:"name"`
}

// receiveParams is a deposit notification relayed by the host. Caller is the
// token contract that invoked the marketplace and is honoured only under the
// operator token; a JWT caller is its subject. Sender is the previous owner.
type receiveParams struct {
	Caller  string          `json:"caller"`
	Sender  string          `json:"sender"`
	TokenID string          `json:"token_id"`
	Msg     json.RawMessage `json:"msg,omitempty"`
}

type buyParams struct {
	Caller     string           `json:"caller,omitempty"`
	Spender    string           `json:"spender"`
	Amount     marketplace.Coin `json:"amount"`
	OfferingID string           `json:"offering_id"`
}

type offeringParams struct {
	ID string `json:"id"`
}

// HeightResult reports the number of committed units of work.
type HeightResult struct {
	Height uint64 `json:"height"`
}

// decodeReceivePayload accepts the attached payload either as a base64 JSON
// string or as an inline JSON object.
func decodeReceivePayload(raw json.RawMessage) ([]byte, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	if trimmed[0] == '"' {
		var payload []byte
		if err := json.Unmarshal(trimmed, &payload); err != nil {
			return nil, fmt.Errorf("msg must be base64: %w", err)
		}
		return payload, nil
	}
	return append([]byte(nil), trimmed...), nil
}

func decodeParam(raw json.RawMessage, dst interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
