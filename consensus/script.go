package consensus

import (
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
)

// P2PKH script pair. The locking script is SHA-256 of the receiver's
// 33-byte compressed public key. The unlock script is a 64-byte compact
// ECDSA signature over the producing transaction's digest, followed by
// the 33-byte compressed public key.
const (
	LockingScriptLen = 32
	SignatureLen     = 64
	PubKeyLen        = 33
	UnlockScriptLen  = SignatureLen + PubKeyLen
)

// LockingScript derives the P2PKH locking script for a public key.
func LockingScript(pub *secp256k1.PublicKey) []byte {
	h := Sha256(pub.SerializeCompressed())
	return h[:]
}

// UnlockScript signs the producing transaction's digest and returns
// signature ‖ compressed pubkey. The signature is the 64-byte r ‖ s
// form, without the recovery code.
func UnlockScript(prevTxDigest HashValue, priv *secp256k1.PrivateKey) []byte {
	compact := ecdsa.SignCompact(priv, prevTxDigest[:], true)

	out := make([]byte, 0, UnlockScriptLen)
	out = append(out, compact[1:]...)
	out = append(out, priv.PubKey().SerializeCompressed()...)
	return out
}

// VerifyScripts checks an unlock script against a locking script for
// the output produced by the transaction with the given digest.
// Malformed scripts are rejected, never raised.
func VerifyScripts(prevTxDigest HashValue, unlockScript, lockingScript []byte) bool {
	if len(unlockScript) != UnlockScriptLen || len(lockingScript) != LockingScriptLen {
		return false
	}
	pubBytes := unlockScript[SignatureLen:]
	if Sha256(pubBytes) != HashValue(lockingScript) {
		return false
	}
	pub, err := secp256k1.ParsePubKey(pubBytes)
	if err != nil {
		return false
	}
	var r, s secp256k1.ModNScalar
	if overflow := r.SetByteSlice(unlockScript[:32]); overflow {
		return false
	}
	if overflow := s.SetByteSlice(unlockScript[32:SignatureLen]); overflow {
		return false
	}
	return ecdsa.NewSignature(&r, &s).Verify(prevTxDigest[:], pub)
}
