package escrow

import (
	"crypto/sha256"

	"github.com/meridian-exchange/escrowd/pkg/helpers"
)

// HashLockSize is the required hash-lock length (SHA256 digest).
const HashLockSize = sha256.Size

// ValidAmount reports whether the escrowed amount is acceptable.
func ValidAmount(amount uint64) bool {
	return amount > 0
}

// ValidRecipient reports whether the recipient can receive from sender.
// Self-sends are rejected.
func ValidRecipient(recipient, sender string) bool {
	return recipient != "" && recipient != sender
}

// ValidHashLock reports whether the hash lock is a usable digest. An
// all-zero digest is rejected: it means the value was never set, the
// way a zero timeout means a missing timeout.
func ValidHashLock(hashLock []byte) bool {
	return len(hashLock) == HashLockSize && !helpers.IsZeroBytes(hashLock)
}

// ValidTimelock reports whether a timelock leaves at least minLock
// blocks between now and expiry.
func ValidTimelock(timelock, now, minLock uint64) bool {
	return timelock > now && timelock-now >= minLock
}

// IDInRange reports whether id could have been allocated: ids are dense
// from 1 up to the counter.
func IDInRange(id, counter uint64) bool {
	return id >= 1 && id <= counter
}

// VerifyPreimage reports whether sha256(preimage) equals hashLock.
// The comparison is constant time.
func VerifyPreimage(preimage, hashLock []byte) bool {
	digest := sha256.Sum256(preimage)
	return helpers.ConstantTimeCompare(digest[:], hashLock)
}
