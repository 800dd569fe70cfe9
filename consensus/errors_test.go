package consensus

import (
	"errors"
	"testing"
)

func TestCoinErrorFormatting(t *testing.T) {
	err := coinerr(ERR_INVALID_OUTPUT_INDEX, "output 5 of 2")
	if got := err.Error(); got != "InvalidOutputIndex: output 5 of 2" {
		t.Fatalf("unexpected message: %q", got)
	}

	bare := &CoinError{Code: ERR_INVALID_INPUT_FEE}
	if got := bare.Error(); got != "InvalidInputFee" {
		t.Fatalf("unexpected bare message: %q", got)
	}
}

func TestIsCode(t *testing.T) {
	err := coinerr(ERR_INVALID_BLOCK_INDEX, "")
	if !IsCode(err, ERR_INVALID_BLOCK_INDEX) {
		t.Fatalf("matching code not recognized")
	}
	if IsCode(err, ERR_INVALID_INPUT_FEE) {
		t.Fatalf("mismatched code recognized")
	}
	if IsCode(errors.New("plain"), ERR_INVALID_BLOCK_INDEX) {
		t.Fatalf("foreign error recognized")
	}
	if IsCode(nil, ERR_INVALID_BLOCK_INDEX) {
		t.Fatalf("nil error recognized")
	}
}
