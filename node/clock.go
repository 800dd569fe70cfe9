package node

import "time"

// Clock supplies wall-clock seconds in UTC. The chain and the miner
// read time only through this so tests can pin it.
type Clock func() uint64

// SystemClock reads the host clock. A clock before the Unix epoch is
// unrecoverable for a ledger keyed on u64 seconds.
func SystemClock() uint64 {
	now := time.Now().UTC().Unix()
	if now < 0 {
		panic("system clock is before the Unix epoch")
	}
	return uint64(now)
}
