package shared

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUserLocksSerialisePerUser(t *testing.T) {
	locks := NewUserLocks()
	counter := 0

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release := locks.Lock("u1")
			defer release()
			v := counter
			counter = v + 1
		}()
	}
	wg.Wait()

	require.Equal(t, 50, counter)
	require.Empty(t, locks.locks)
}

func TestUserLocksIndependentUsers(t *testing.T) {
	locks := NewUserLocks()
	releaseA := locks.Lock("a")
	releaseB := locks.Lock("b")
	require.Len(t, locks.locks, 2)
	releaseA()
	releaseB()
	require.Empty(t, locks.locks)
}
