package cache

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/aristath/marketcore/internal/clock"
)

func TestTtlFor_KnownNamespace(t *testing.T) {
	f, err := NewFabric(nil, DefaultTTLPolicy(), clock.NewFake(time.Now()), zerolog.Nop())
	assert.NoError(t, err)

	pair := f.ttlFor(NamespaceSector)
	assert.Equal(t, 7*24*time.Hour, pair.L1)
	assert.Equal(t, 30*24*time.Hour, pair.L2)
}

func TestTtlFor_UnknownNamespace_FallsBackToDefault(t *testing.T) {
	f, err := NewFabric(nil, DefaultTTLPolicy(), clock.NewFake(time.Now()), zerolog.Nop())
	assert.NoError(t, err)

	assert.Equal(t, DefaultTTL, f.ttlFor("something_unlisted"))
}
