package consensus

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Input spends a prior output, addressed by the block that holds the
// producing transaction, that transaction's id, and the output index.
type Input struct {
	PrevTxHash      HashValue
	PrevBlockIndex  uint64
	PrevOutputIndex uint64
	UnlockScript    []byte
}

func NewInput(prevTxHash HashValue, prevBlockIndex, prevOutputIndex uint64, unlockScript []byte) Input {
	return Input{
		PrevTxHash:      prevTxHash,
		PrevBlockIndex:  prevBlockIndex,
		PrevOutputIndex: prevOutputIndex,
		UnlockScript:    unlockScript,
	}
}

type Output struct {
	Amount        decimal.Decimal
	LockingScript []byte
}

func NewOutput(amount decimal.Decimal, lockingScript []byte) Output {
	return Output{Amount: amount, LockingScript: lockingScript}
}

// Receiver names an amount payable to a wallet address.
type Receiver struct {
	Amount  decimal.Decimal
	Address HashValue
}

// Transaction is either a coinbase (empty input list) or a regular
// transaction. ID stays zero until Finalize computes the digest of the
// canonical encoding.
type Transaction struct {
	Inputs  []Input
	Outputs []Output
	ID      HashValue
	Fee     decimal.Decimal

	// AdditionalData is an optional blob. nil means absent; an empty
	// non-nil slice is present-but-empty, and the two serialize
	// differently on the wire.
	AdditionalData []byte
}

func NewTransaction(inputs []Input, outputs []Output, fee decimal.Decimal, additionalData []byte) Transaction {
	return Transaction{
		Inputs:         inputs,
		Outputs:        outputs,
		Fee:            fee,
		AdditionalData: additionalData,
	}
}

// IsCoinbase reports whether the transaction has no inputs.
func (tx *Transaction) IsCoinbase() bool {
	return len(tx.Inputs) == 0
}

// appendCanonical appends the canonical byte stream with the given id in
// the transaction_id slot. The digest uses a zero id; the merkle leaf
// and wire forms use the stored id.
func (tx *Transaction) appendCanonical(dst []byte, id HashValue) ([]byte, error) {
	var err error
	for i := range tx.Inputs {
		in := &tx.Inputs[i]
		dst = append(dst, in.PrevTxHash[:]...)
		dst = AppendU64be(dst, in.PrevBlockIndex)
		dst = AppendU64be(dst, in.PrevOutputIndex)
		dst = AppendU64be(dst, uint64(len(in.UnlockScript)))
		dst = append(dst, in.UnlockScript...)
	}
	for i := range tx.Outputs {
		out := &tx.Outputs[i]
		dst, err = appendAmount(dst, out.Amount)
		if err != nil {
			return nil, err
		}
		dst = AppendU64be(dst, uint64(len(out.LockingScript)))
		dst = append(dst, out.LockingScript...)
	}
	dst = append(dst, id[:]...)
	dst, err = appendAmount(dst, tx.Fee)
	if err != nil {
		return nil, err
	}
	// Absent additional_data contributes nothing; the wire form carries
	// an explicit presence flag instead.
	dst = append(dst, tx.AdditionalData...)
	return dst, nil
}

// Digest hashes the canonical encoding with a zeroed transaction_id
// slot. For a finalized transaction this equals ID.
func (tx *Transaction) Digest() (HashValue, error) {
	enc, err := tx.appendCanonical(nil, zeroHash)
	if err != nil {
		return zeroHash, err
	}
	return Sha256(enc), nil
}

// LeafHash hashes the canonical encoding with the stored id, producing
// the merkle leaf for this transaction.
func (tx *Transaction) LeafHash() (HashValue, error) {
	enc, err := tx.appendCanonical(nil, tx.ID)
	if err != nil {
		return zeroHash, err
	}
	return Sha256(enc), nil
}

// Finalize computes and assigns the transaction id. It fails on a
// transaction that already carries a non-zero id.
func (tx *Transaction) Finalize() error {
	if !tx.ID.IsZero() {
		return coinerr(ERR_ALREADY_FINAL, "transaction id already set")
	}
	digest, err := tx.Digest()
	if err != nil {
		return err
	}
	tx.ID = digest
	return nil
}

// CheckDigest reports whether the stored id matches the digest of the
// canonical encoding.
func (tx *Transaction) CheckDigest() bool {
	digest, err := tx.Digest()
	if err != nil {
		return false
	}
	return digest == tx.ID
}

// SumOutputs returns the total of all output amounts.
func (tx *Transaction) SumOutputs() decimal.Decimal {
	total := decimal.Zero
	for i := range tx.Outputs {
		total = total.Add(tx.Outputs[i].Amount)
	}
	return total
}

func (tx *Transaction) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Transaction %s:\n", tx.ID)
	fmt.Fprintf(&sb, "\tfee: %s\n", tx.Fee)
	for i := range tx.Inputs {
		in := &tx.Inputs[i]
		fmt.Fprintf(&sb, "\tinput[%d]: block %d tx %s output %d\n",
			i, in.PrevBlockIndex, in.PrevTxHash, in.PrevOutputIndex)
	}
	for i := range tx.Outputs {
		out := &tx.Outputs[i]
		fmt.Fprintf(&sb, "\toutput[%d]: %s\n", i, out.Amount)
	}
	return sb.String()
}
