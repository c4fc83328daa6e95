package mocks

import (
	"fmt"

	"github.com/mcoot/lessonprogress/internal/dependencies/random"
	"github.com/mcoot/lessonprogress/internal/model"
)

// MockRandom is a mock implementation of Random for testing
type MockRandom struct {
	// IdentityResults is a queue of results to return from Identity
	IdentityResults []model.Identity
	identityIndex   int

	// tokens counts generated tokens so each one is unique
	tokens int
}

// Ensure MockRandom implements Random
var _ random.Random = (*MockRandom)(nil)

// NewMockRandom creates a new MockRandom
func NewMockRandom() *MockRandom {
	return &MockRandom{}
}

// Identity returns the next queued identity. When the queue is empty it
// falls back to a deterministic identity derived from the call count.
func (r *MockRandom) Identity() model.Identity {
	if r.identityIndex >= len(r.IdentityResults) {
		var id model.Identity
		r.identityIndex++
		id[0] = 0xff
		id[model.IdentitySize-1] = byte(r.identityIndex)
		return id
	}
	result := r.IdentityResults[r.identityIndex]
	r.identityIndex++
	return result
}

// Token returns prefix plus a sequence number
func (r *MockRandom) Token(prefix string) string {
	r.tokens++
	return fmt.Sprintf("%s%d", prefix, r.tokens)
}

// QueueIdentity adds values to the Identity result queue
func (r *MockRandom) QueueIdentity(values ...model.Identity) {
	r.IdentityResults = append(r.IdentityResults, values...)
}

// Reset clears all queued results
func (r *MockRandom) Reset() {
	r.IdentityResults = nil
	r.identityIndex = 0
	r.tokens = 0
}
