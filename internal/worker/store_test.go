package worker_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wrmsprobe/wrmsprobe/internal/worker"
	"github.com/wrmsprobe/wrmsprobe/internal/wrms"
)

func TestStore_PutAndLatest(t *testing.T) {
	store := worker.NewStore()

	_, ok := store.Latest("shop")
	assert.False(t, ok)

	store.Put(&wrms.ResultSet{Site: "shop", RunID: "1"})
	store.Put(&wrms.ResultSet{Site: "shop", RunID: "2"})
	store.Put(nil)

	rs, ok := store.Latest("shop")
	require.True(t, ok)
	assert.Equal(t, "2", rs.RunID)
	assert.Equal(t, 1, store.Len())
}

func TestStore_AllSorted(t *testing.T) {
	store := worker.NewStore()
	for _, site := range []string{"c", "a", "b"} {
		store.Put(&wrms.ResultSet{Site: site})
	}

	all := store.All()
	require.Len(t, all, 3)
	assert.Equal(t, "a", all[0].Site)
	assert.Equal(t, "b", all[1].Site)
	assert.Equal(t, "c", all[2].Site)
}

func TestStore_Concurrent(t *testing.T) {
	store := worker.NewStore()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			store.Put(&wrms.ResultSet{Site: string(rune('a' + i%5))})
			store.All()
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 5, store.Len())
}
