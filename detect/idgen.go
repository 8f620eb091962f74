package detect

import "sync"

// IDGenerator hands out incrementing ID numbers starting at 1
type IDGenerator struct {
	id int64
	sync.Mutex
}

// NewIDGenerator returns a generator starting from zero
func NewIDGenerator() *IDGenerator {
	return &IDGenerator{}
}

// GetNext returns the next incremental number
func (id *IDGenerator) GetNext() int64 {
	id.Lock()
	defer id.Unlock()
	id.id++
	return id.id
}

// Last returns the most recently issued number, zero if none issued
func (id *IDGenerator) Last() int64 {
	id.Lock()
	defer id.Unlock()
	return id.id
}
