package table

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/image-inspector/backend/internal/models"
)

func records(n int) []models.ImageMetadata {
	out := make([]models.ImageMetadata, n)
	for i := range out {
		out[i] = models.NewImageMetadata(fmt.Sprintf("f%02d.png", i), uint64(i))
	}
	return out
}

func TestStore_AppendKeepsArrivalOrder(t *testing.T) {
	s := NewStore()
	all := records(5)
	s.Append(all[:3])
	s.Append(nil)
	s.Append(all[3:])

	require.Equal(t, 5, s.Len())
	assert.Equal(t, all, s.Records())
}

func TestStore_RecordsIsACopy(t *testing.T) {
	s := NewStore()
	s.Append(records(2))

	got := s.Records()
	got[0].FileName = "changed"
	assert.Equal(t, "f00.png", s.Records()[0].FileName)
}

func TestStore_Clear(t *testing.T) {
	s := NewStore()
	s.Append(records(3))
	s.Clear()
	assert.Zero(t, s.Len())

	s.Append(records(1))
	assert.Equal(t, 1, s.Len())
}

func TestStore_Page(t *testing.T) {
	s := NewStore()
	s.Append(records(10))

	t.Run("first page", func(t *testing.T) {
		page, total := s.Page(0, 4)
		assert.Equal(t, 10, total)
		require.Len(t, page, 4)
		assert.Equal(t, "f00.png", page[0].FileName)
	})

	t.Run("last partial page", func(t *testing.T) {
		page, _ := s.Page(8, 4)
		require.Len(t, page, 2)
		assert.Equal(t, "f09.png", page[1].FileName)
	})

	t.Run("past the end", func(t *testing.T) {
		page, total := s.Page(20, 4)
		assert.Empty(t, page)
		assert.Equal(t, 10, total)
	})

	t.Run("no limit", func(t *testing.T) {
		page, _ := s.Page(-1, 0)
		assert.Len(t, page, 10)
	})
}

func TestStore_ConcurrentReaders(t *testing.T) {
	s := NewStore()
	done := make(chan struct{})

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
					_ = s.Records()
					_, _ = s.Page(0, 5)
				}
			}
		}()
	}

	for i := 0; i < 50; i++ {
		s.Append(records(2))
	}
	close(done)
	wg.Wait()

	assert.Equal(t, 100, s.Len())
}
