package keylock

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLockSerializesSameKey(t *testing.T) {
	locks := New()
	counter := 0
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.Lock("conv:1")
			defer unlock()
			v := counter
			v++
			counter = v
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, counter)
	assert.Equal(t, 0, locks.Len())
}

func TestUnlockIsIdempotent(t *testing.T) {
	locks := New()
	unlock := locks.Lock("a")
	unlock()
	unlock()

	require.Equal(t, 0, locks.Len())
	again := locks.Lock("a")
	again()
}

func TestPairKeyIsOrderIndependent(t *testing.T) {
	assert.Equal(t, PairKey("direct", "b", "a"), PairKey("direct", "a", "b"))
	assert.NotEqual(t, OrderedKey("friend", "b", "a"), OrderedKey("friend", "a", "b"))
}
