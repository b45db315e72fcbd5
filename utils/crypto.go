package utils

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/vitwit/payments/types"
)

// taskPrefix domain-separates payment task names from other scheduled work.
const taskPrefix = "payment"

// TaskName derives the scheduler name of the refund task for id:
// keccak256("payment" || big-endian id).
func TaskName(id types.PaymentID) common.Hash {
	var idBytes [8]byte
	binary.BigEndian.PutUint64(idBytes[:], uint64(id))
	return crypto.Keccak256Hash([]byte(taskPrefix), idBytes[:])
}
