package wallet

import (
	"fmt"
	"io"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/shopspring/decimal"

	"github.com/Nie-Tianyi/rusty-coin/consensus"
)

// UTXO is an ephemeral spendable-output descriptor: an owned copy of
// the producing transaction, where it lives, which output is spent, and
// the cached producing-transaction digest.
type UTXO struct {
	PrevTx          consensus.Transaction
	PrevBlockIndex  uint64
	PrevOutputIndex uint64
	PrevTxHash      consensus.HashValue
}

// NewUTXO caches the producing transaction's digest alongside the
// reference.
func NewUTXO(prevTx consensus.Transaction, prevBlockIndex, prevOutputIndex uint64) UTXO {
	return UTXO{
		PrevTx:          prevTx,
		PrevBlockIndex:  prevBlockIndex,
		PrevOutputIndex: prevOutputIndex,
		PrevTxHash:      prevTx.ID,
	}
}

// Wallet owns a secp256k1 secret key and the UTXO descriptors it
// believes spendable. The address is SHA-256 of the compressed public
// key and doubles as the P2PKH locking script.
type Wallet struct {
	secretKey *secp256k1.PrivateKey
	publicKey *secp256k1.PublicKey
	address   consensus.HashValue
	utxos     []UTXO
}

// New generates a wallet from a cryptographically secure RNG.
func New() (*Wallet, error) {
	priv, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, err
	}
	return fromSecretKey(priv), nil
}

// NewFromRand generates a wallet drawing key material from r, for hosts
// that supply their own entropy source.
func NewFromRand(r io.Reader) (*Wallet, error) {
	priv, err := secp256k1.GeneratePrivateKeyFromRand(r)
	if err != nil {
		return nil, err
	}
	return fromSecretKey(priv), nil
}

func fromSecretKey(priv *secp256k1.PrivateKey) *Wallet {
	pub := priv.PubKey()
	return &Wallet{
		secretKey: priv,
		publicKey: pub,
		address:   consensus.Sha256(pub.SerializeCompressed()),
	}
}

func (w *Wallet) PublicKey() *secp256k1.PublicKey {
	return w.publicKey
}

func (w *Wallet) Address() consensus.HashValue {
	return w.address
}

// LockingScript returns the P2PKH locking script paying this wallet.
func (w *Wallet) LockingScript() []byte {
	return consensus.LockingScript(w.publicKey)
}

// UTXOs returns the descriptors currently tracked as spendable.
func (w *Wallet) UTXOs() []UTXO {
	out := make([]UTXO, len(w.utxos))
	copy(out, w.utxos)
	return out
}

// SetUTXOs replaces the tracked descriptors.
func (w *Wallet) SetUTXOs(utxos []UTXO) {
	w.utxos = append(w.utxos[:0:0], utxos...)
}

// ScanBlocks rebuilds the tracked UTXO set from a block sequence,
// recording every output locked to this wallet's address that no later
// input spends.
func (w *Wallet) ScanBlocks(blocks []consensus.Block) {
	lock := consensus.HashValue(w.LockingScript())

	spent := make(map[spendRef]struct{})
	for bi := range blocks {
		txs := blocks[bi].Transactions
		for ti := range txs {
			for ii := range txs[ti].Inputs {
				in := &txs[ti].Inputs[ii]
				spent[spendRef{in.PrevTxHash, in.PrevOutputIndex}] = struct{}{}
			}
		}
	}

	w.utxos = w.utxos[:0]
	for bi := range blocks {
		txs := blocks[bi].Transactions
		for ti := range txs {
			tx := &txs[ti]
			for oi := range tx.Outputs {
				out := &tx.Outputs[oi]
				if len(out.LockingScript) != consensus.LockingScriptLen {
					continue
				}
				if consensus.HashValue(out.LockingScript) != lock {
					continue
				}
				if _, ok := spent[spendRef{tx.ID, uint64(oi)}]; ok {
					continue
				}
				w.utxos = append(w.utxos, NewUTXO(*tx, blocks[bi].Index, uint64(oi)))
			}
		}
	}
}

type spendRef struct {
	txID  consensus.HashValue
	index uint64
}

// Balance sums the amounts of the tracked UTXOs.
func (w *Wallet) Balance() decimal.Decimal {
	total := decimal.Zero
	for i := range w.utxos {
		utxo := &w.utxos[i]
		if utxo.PrevOutputIndex < uint64(len(utxo.PrevTx.Outputs)) {
			total = total.Add(utxo.PrevTx.Outputs[utxo.PrevOutputIndex].Amount)
		}
	}
	return total
}

// TransferCredits spends the given UTXOs into one output per receiver
// and finalizes the result. Each input carries signature ‖ compressed
// pubkey over the producing transaction's digest. The fee is whatever
// the inputs exceed the outputs by; a shortfall is InvalidInputFee and
// a dangling output reference is InvalidOutputIndex.
func (w *Wallet) TransferCredits(
	utxos []UTXO,
	receivers []consensus.Receiver,
	extraInfo []byte,
) (consensus.Transaction, error) {
	inputSum := decimal.Zero
	inputs := make([]consensus.Input, 0, len(utxos))
	for i := range utxos {
		utxo := &utxos[i]
		if utxo.PrevOutputIndex >= uint64(len(utxo.PrevTx.Outputs)) {
			return consensus.Transaction{}, &consensus.CoinError{
				Code: consensus.ERR_INVALID_OUTPUT_INDEX,
				Msg:  fmt.Sprintf("output %d of transaction %s", utxo.PrevOutputIndex, utxo.PrevTxHash),
			}
		}
		inputSum = inputSum.Add(utxo.PrevTx.Outputs[utxo.PrevOutputIndex].Amount)

		unlock := consensus.UnlockScript(utxo.PrevTxHash, w.secretKey)
		inputs = append(inputs, consensus.NewInput(
			utxo.PrevTxHash,
			utxo.PrevBlockIndex,
			utxo.PrevOutputIndex,
			unlock,
		))
	}

	outputSum := decimal.Zero
	outputs := make([]consensus.Output, 0, len(receivers))
	for _, r := range receivers {
		outputSum = outputSum.Add(r.Amount)
		outputs = append(outputs, consensus.NewOutput(r.Amount, r.Address[:]))
	}

	fee := inputSum.Sub(outputSum)
	if fee.IsNegative() {
		return consensus.Transaction{}, &consensus.CoinError{
			Code: consensus.ERR_INVALID_INPUT_FEE,
			Msg:  fmt.Sprintf("outputs %s exceed inputs %s", outputSum, inputSum),
		}
	}

	tx := consensus.NewTransaction(inputs, outputs, fee, extraInfo)
	if err := tx.Finalize(); err != nil {
		return consensus.Transaction{}, err
	}
	return tx, nil
}
