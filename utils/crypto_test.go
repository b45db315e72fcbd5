package utils

import (
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
)

func TestTaskName(t *testing.T) {
	want := crypto.Keccak256Hash([]byte("payment"), []byte{0, 0, 0, 0, 0, 0, 0, 7})
	assert.Equal(t, want, TaskName(7))
	assert.NotEqual(t, TaskName(7), TaskName(8))
}
