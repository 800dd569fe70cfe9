package consensus

import "fmt"

type ErrorCode string

const (
	ERR_INVALID_OUTPUT_INDEX      ErrorCode = "InvalidOutputIndex"
	ERR_INVALID_INPUT_FEE         ErrorCode = "InvalidInputFee"
	ERR_INVALID_BLOCK_INDEX       ErrorCode = "InvalidBlockIndex"
	ERR_INVALID_TRANSACTION_INDEX ErrorCode = "InvalidTransactionIndex"
	ERR_INVALID_OUTPUT_AMOUNT     ErrorCode = "InvalidOutputAmount"

	ERR_PARSE            ErrorCode = "ParseFailure"
	ERR_ENCODE           ErrorCode = "EncodeFailure"
	ERR_NONCE_EXHAUSTED  ErrorCode = "NonceExhausted"
	ERR_REWARD_EXCEEDED  ErrorCode = "RewardExceeded"
	ERR_ALREADY_FINAL    ErrorCode = "AlreadyFinalized"
)

// CoinError is the tagged error surfaced at the API boundary for
// structural failures. Validation failures surface as false from the
// Verify* predicates instead.
type CoinError struct {
	Code ErrorCode
	Msg  string
}

func (e *CoinError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Msg == "" {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

func coinerr(code ErrorCode, msg string) error {
	return &CoinError{Code: code, Msg: msg}
}

// IsCode reports whether err is a CoinError carrying the given code.
func IsCode(err error, code ErrorCode) bool {
	ce, ok := err.(*CoinError)
	return ok && ce.Code == code
}
