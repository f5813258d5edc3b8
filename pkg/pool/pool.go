// Package pool reduces allocation churn in the coordination engine's
// partitioning loop, which repeatedly builds and discards fixed-capacity
// batches of candidate user IDs.
package pool

import "sync"

// BatchSize is the capacity new batches are preallocated to. It is a fixed
// starting capacity, not the partitioning loop's per-batch candidate-user
// count; a larger batch grows its slice on append.
const BatchSize = 1000

// userBatchPool pools []string batches sized for one partitioning round.
var userBatchPool = sync.Pool{
	New: func() interface{} {
		return make([]string, 0, BatchSize)
	},
}

// GetUserBatch returns an empty []string with spare capacity for a batch of
// candidate user IDs.
func GetUserBatch() []string {
	return userBatchPool.Get().([]string)[:0]
}

// PutUserBatch returns a batch slice to the pool once the worker that
// consumed it has finished with the batch.
func PutUserBatch(s []string) {
	userBatchPool.Put(s)
}
