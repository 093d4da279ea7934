package manifest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendAndRows(t *testing.T) {
	store, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	now := time.Now()
	require.NoError(t, store.Append(Row{
		Timestamp: now, CaseID: "case01", SeriesUID: "1.2.3", Plane: "axial",
		SliceIndex: 25, Label: "L1", CenterX: 50, CenterY: 50, CenterZ: 75, RadiusMM: 5,
	}))
	require.NoError(t, store.Append(Row{
		Timestamp: now, CaseID: "case01", Label: "L2", RadiusMM: 7.5,
	}))
	require.NoError(t, store.Append(Row{
		Timestamp: now, CaseID: "case02", Label: "L1", RadiusMM: 4,
	}))

	rows, err := store.Rows(context.Background(), "case01")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "L1", rows[0].Label)
	assert.Equal(t, "L2", rows[1].Label)
	assert.Equal(t, 75.0, rows[0].CenterZ)

	all, err := store.Rows(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestAppend_ConcurrentWritersSerialize(t *testing.T) {
	store, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 10; i++ {
				_ = store.Append(Row{Timestamp: time.Now(), CaseID: "case01", Label: "L1"})
			}
		}(w)
	}
	wg.Wait()

	rows, err := store.Rows(context.Background(), "case01")
	require.NoError(t, err)
	assert.Len(t, rows, 40)
}
