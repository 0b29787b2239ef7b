package breaker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"usdfcterminal/domain"
)

func TestTripsAfterThresholdWithinWindow(t *testing.T) {
	current := time.Unix(0, 0)
	clock := func() time.Time { return current }
	r := NewRegistry(Config{FailureThreshold: 3, FailureWindow: 30 * time.Second, OpenTimeout: time.Second, HalfOpenTimeout: time.Second}, clock)

	assert.True(t, r.ShouldAllow("explorer:transfers"))
	r.RecordFailure("explorer:transfers")
	assert.Equal(t, domain.StateClosed, r.Snapshot("explorer:transfers").State)

	r.RecordFailure("explorer:transfers")
	r.RecordFailure("explorer:transfers")

	assert.Equal(t, domain.StateOpen, r.Snapshot("explorer:transfers").State)
	assert.False(t, r.ShouldAllow("explorer:transfers"))
}

func TestOpenToHalfOpenAfterTimeout(t *testing.T) {
	current := time.Unix(0, 0)
	clock := func() time.Time { return current }
	r := NewRegistry(Config{FailureThreshold: 1, FailureWindow: 30 * time.Second, OpenTimeout: time.Second, HalfOpenTimeout: time.Second}, clock)

	r.RecordFailure("rpc:total_supply")
	assert.Equal(t, domain.StateOpen, r.Snapshot("rpc:total_supply").State)
	assert.False(t, r.ShouldAllow("rpc:total_supply"))

	current = current.Add(999 * time.Millisecond)
	assert.False(t, r.ShouldAllow("rpc:total_supply"))

	current = current.Add(2 * time.Millisecond)
	assert.True(t, r.ShouldAllow("rpc:total_supply"))
	assert.Equal(t, domain.StateHalfOpen, r.Snapshot("rpc:total_supply").State)
}

func TestHalfOpenSuccessClosesAndResets(t *testing.T) {
	current := time.Unix(0, 0)
	clock := func() time.Time { return current }
	r := NewRegistry(Config{FailureThreshold: 1, FailureWindow: 30 * time.Second, OpenTimeout: time.Second, HalfOpenTimeout: time.Second}, clock)

	r.RecordFailure("rpc:price")
	current = current.Add(2 * time.Second)
	assert.True(t, r.ShouldAllow("rpc:price"))

	r.RecordSuccess("rpc:price")
	snapshot := r.Snapshot("rpc:price")
	assert.Equal(t, domain.StateClosed, snapshot.State)
	assert.Equal(t, 0, snapshot.FailureCount)
	assert.True(t, r.ShouldAllow("rpc:price"))
}

func TestHalfOpenFailureReopens(t *testing.T) {
	current := time.Unix(0, 0)
	clock := func() time.Time { return current }
	r := NewRegistry(Config{FailureThreshold: 1, FailureWindow: 30 * time.Second, OpenTimeout: time.Second, HalfOpenTimeout: time.Second}, clock)

	r.RecordFailure("dex:pools")
	current = current.Add(2 * time.Second)
	r.ShouldAllow("dex:pools")
	r.RecordFailure("dex:pools")

	assert.Equal(t, domain.StateOpen, r.Snapshot("dex:pools").State)
	assert.False(t, r.ShouldAllow("dex:pools"))
}

func TestReset(t *testing.T) {
	r := NewRegistry(DefaultConfig(), nil)
	r.RecordFailure("indexer:markets")
	r.RecordFailure("indexer:markets")
	r.RecordFailure("indexer:markets")
	assert.Equal(t, domain.StateOpen, r.Snapshot("indexer:markets").State)

	r.Reset("indexer:markets")
	snapshot := r.Snapshot("indexer:markets")
	assert.Equal(t, domain.StateClosed, snapshot.State)
	assert.Equal(t, 0, snapshot.FailureCount)
}

func TestThreeSequentialFailuresThenRecoveryScenario(t *testing.T) {
	current := time.Unix(0, 0)
	clock := func() time.Time { return current }
	r := NewRegistry(Config{FailureThreshold: 3, FailureWindow: 30 * time.Second, OpenTimeout: time.Second, HalfOpenTimeout: time.Second}, clock)

	for i := 0; i < 3; i++ {
		assert.True(t, r.ShouldAllow("explorer:transfers"))
		r.RecordFailure("explorer:transfers")
	}

	assert.False(t, r.ShouldAllow("explorer:transfers"))

	current = current.Add(1100 * time.Millisecond)
	assert.True(t, r.ShouldAllow("explorer:transfers"))
	r.RecordSuccess("explorer:transfers")
	assert.Equal(t, 0, r.Snapshot("explorer:transfers").FailureCount)
}
