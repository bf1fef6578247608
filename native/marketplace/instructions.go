package marketplace

// InstructionKind tags the outbound instruction variants.
type InstructionKind string

const (
	InstructionBankSend      InstructionKind = "bank_send"
	InstructionAssetTransfer InstructionKind = "asset_transfer"
)

// BankSend moves native currency between two accounts.
type BankSend struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount Coin   `json:"amount"`
}

// AssetTransfer asks the token contract at Contract to hand TokenID to
// Recipient.
type AssetTransfer struct {
	Contract  string `json:"contract"`
	Recipient string `json:"recipient"`
	TokenID   string `json:"token_id"`
}

// Instruction is an outbound message returned to the host for execution once
// the unit of work commits. Exactly one of the payload fields is set,
// matching Kind.
type Instruction struct {
	Kind          InstructionKind `json:"kind"`
	BankSend      *BankSend       `json:"bank_send,omitempty"`
	AssetTransfer *AssetTransfer  `json:"asset_transfer,omitempty"`
}

// NewBankSendInstruction wraps a native transfer.
func NewBankSendInstruction(from, to string, amount Coin) Instruction {
	return Instruction{
		Kind:     InstructionBankSend,
		BankSend: &BankSend{From: from, To: to, Amount: amount.Clone()},
	}
}

// NewAssetTransferInstruction wraps a token contract transfer call.
func NewAssetTransferInstruction(contract, recipient, tokenID string) Instruction {
	return Instruction{
		Kind:          InstructionAssetTransfer,
		AssetTransfer: &AssetTransfer{Contract: contract, Recipient: recipient, TokenID: tokenID},
	}
}
