package dedup

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCoordinator_Do_SingleCaller(t *testing.T) {
	c := New()
	v, err := c.Do("AAPL", func() ([]byte, error) { return []byte("ok"), nil })
	assert.NoError(t, err)
	assert.Equal(t, []byte("ok"), v)
}

func TestCoordinator_Do_ConcurrentCallersShareOneFetch(t *testing.T) {
	c := New()
	var calls int32
	release := make(chan struct{})

	fn := func() ([]byte, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return []byte("fetched"), nil
	}

	var wg sync.WaitGroup
	results := make([][]byte, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			v, _ := c.Do("AAPL", fn)
			results[idx] = v
		}(i)
	}

	time.Sleep(20 * time.Millisecond) // let all goroutines register as waiters
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	for _, r := range results {
		assert.Equal(t, []byte("fetched"), r)
	}
}

func TestCoordinator_Do_PropagatesError(t *testing.T) {
	c := New()
	wantErr := errors.New("upstream down")
	_, err := c.Do("AAPL", func() ([]byte, error) { return nil, wantErr })
	assert.ErrorIs(t, err, wantErr)
}

func TestCoordinator_Do_ClearsAfterCompletion(t *testing.T) {
	c := New()
	_, _ = c.Do("AAPL", func() ([]byte, error) { return []byte("x"), nil })
	assert.False(t, c.InFlight("AAPL"))
}

func TestCoordinator_Do_SequentialCallsRunFnTwice(t *testing.T) {
	c := New()
	var calls int32
	fn := func() ([]byte, error) {
		atomic.AddInt32(&calls, 1)
		return []byte("x"), nil
	}
	_, _ = c.Do("AAPL", fn)
	_, _ = c.Do("AAPL", fn)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}
