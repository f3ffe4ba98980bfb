package session

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMemoryStore_Contract(t *testing.T) {
	testStoreContract(t, func(t *testing.T) Store {
		return NewMemoryStore(zap.NewNop())
	})
}

func TestMemoryStore_CreateCopiesInput(t *testing.T) {
	s := NewMemoryStore(zap.NewNop())
	in := newTestSession("ABC123", true, "h1")
	require.NoError(t, s.Create(context.Background(), in))

	in.Roster[0].Name = "changed"
	got, err := s.Get(context.Background(), "ABC123")
	require.NoError(t, err)
	assert.Equal(t, "h1", got.Roster[0].Name)
}

func TestMemoryStore_ConcurrentAccess(t *testing.T) {
	s := NewMemoryStore(zap.NewNop())
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := string(rune('A'+i%26)) + "X"
			_ = s.Create(ctx, newTestSession(id, i%2 == 0, "h"))
			_, _ = s.ListPublicActive(ctx)
			if i%3 == 0 {
				_ = s.Delete(ctx, id)
			}
		}(i)
	}
	wg.Wait()

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.LessOrEqual(t, n, 26)
	assert.NoError(t, s.Close())
}
