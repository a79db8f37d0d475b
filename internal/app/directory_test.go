package app

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avoran/gramstream/internal/domain"
)

func TestDirectoryGetOrCreate(t *testing.T) {
	d := NewDirectory()

	s1, created := d.GetOrCreate(42)
	require.True(t, created)
	require.NotNil(t, s1)

	s2, created := d.GetOrCreate(42)
	assert.False(t, created)
	assert.Same(t, s1, s2)

	s3, created := d.GetOrCreate(99)
	assert.True(t, created)
	assert.NotSame(t, s1, s3)
	assert.Equal(t, 2, d.Len())
}

func TestDirectoryRemove(t *testing.T) {
	d := NewDirectory()
	d.GetOrCreate(42)

	d.Remove(42)
	_, ok := d.Get(42)
	assert.False(t, ok)
	assert.Equal(t, 0, d.Len())

	// Removing an untracked chat is harmless.
	d.Remove(42)
}

func TestDirectoryConcurrentGetOrCreate(t *testing.T) {
	d := NewDirectory()
	const workers = 32

	sessions := make([]*Session, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sessions[i], _ = d.GetOrCreate(42)
		}(i)
	}
	wg.Wait()

	require.Equal(t, 1, d.Len())
	for i := 1; i < workers; i++ {
		assert.Same(t, sessions[0], sessions[i])
	}
}

func TestDirectoryChats(t *testing.T) {
	d := NewDirectory()
	d.GetOrCreate(1)
	d.GetOrCreate(2)

	chats := d.Chats()
	assert.ElementsMatch(t, []domain.ChatID{1, 2}, chats)
}
