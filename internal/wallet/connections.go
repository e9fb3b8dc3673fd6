package wallet

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Connections tracks which wallet address each user has connected.
type Connections struct {
	mu    sync.RWMutex
	addrs map[string]common.Address
}

func NewConnections() *Connections {
	return &Connections{addrs: make(map[string]common.Address)}
}

// Connect stores the checksummed form of address for userID.
func (c *Connections) Connect(userID, address string) (string, error) {
	if !common.IsHexAddress(address) {
		return "", ErrInvalidAddress
	}
	addr := common.HexToAddress(address)
	if addr == (common.Address{}) {
		return "", ErrInvalidAddress
	}

	c.mu.Lock()
	c.addrs[userID] = addr
	c.mu.Unlock()
	return addr.Hex(), nil
}

func (c *Connections) Disconnect(userID string) {
	c.mu.Lock()
	delete(c.addrs, userID)
	c.mu.Unlock()
}

// Address returns the connected address, or "" when none.
func (c *Connections) Address(userID string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if addr, ok := c.addrs[userID]; ok {
		return addr.Hex()
	}
	return ""
}
