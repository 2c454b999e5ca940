// Package settlement is the L1 settlement client capability from spec.md
// §6, consumed by the StateTransition handler. The two update variants
// (classic vs KZG-DA) are modeled as a sum type on the program output per
// spec.md §9's design note, not as subclasses of the client.
package settlement

import "context"

// UpdateKind tags which arm of ProgramOutput is populated.
type UpdateKind int

const (
	KindClassic UpdateKind = iota
	KindKZG
)

// ProgramOutput is the sum type the StateTransition handler submits: Kind
// selects which arm, classic (onchain data hash/size) or KZG (blob proof),
// applies. The handlers in this repository set Kind and Program only and
// leave both arms' fields empty.
type ProgramOutput struct {
	Kind UpdateKind

	Program []byte

	// Classic arm.
	OnchainDataHash []byte
	OnchainDataSize uint64

	// KZG arm.
	KZGProof []byte
}

// TxReceipt is the opaque settlement transaction handle returned as the
// job's external id.
type TxReceipt struct {
	TxHash string
}

// Client submits state transition updates to the L1 settlement contract.
type Client interface {
	UpdateState(ctx context.Context, output ProgramOutput) (TxReceipt, error)
	TxStatus(ctx context.Context, txHash string) (TxStatus, error)
}

// TxStatus is the tri-state result of polling a submitted settlement
// transaction, mirroring the InclusionStatus shape used across the other
// external clients.
type TxStatus int

const (
	Confirmed TxStatus = iota
	PendingTx
	Reverted
)
