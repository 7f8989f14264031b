package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kalambet/electroschematic/internal/schematic"
)

func testItem(id string, ts int64) schematic.HistoryItem {
	return schematic.HistoryItem{
		ID:             id,
		Timestamp:      ts,
		OriginalImage:  "b3JpZ2luYWw=",
		GeneratedImage: "Z2VuZXJhdGVk",
		Analysis: schematic.AnalysisResult{
			DeviceName: "Device " + id,
			Summary:    "It does things.",
			Components: []schematic.ComponentInfo{
				{Name: "Coil", Description: "Copper", WorkflowRole: "Moves", Analogy: "Spring", ScientificPrinciple: "Induction"},
				{Name: "Magnet", Description: "Grey", WorkflowRole: "Pulls", Analogy: "Hand", ScientificPrinciple: "Magnetism"},
			},
		},
	}
}

// runBackendContract exercises the behaviour every Backend must share.
func runBackendContract(t *testing.T, b Backend) {
	ctx := context.Background()

	t.Run("empty", func(t *testing.T) {
		items, err := b.All(ctx)
		require.NoError(t, err)
		assert.NotNil(t, items)
		assert.Empty(t, items)
	})

	t.Run("newest first", func(t *testing.T) {
		require.NoError(t, b.Put(ctx, testItem("a", 1000)))
		require.NoError(t, b.Put(ctx, testItem("c", 3000)))
		require.NoError(t, b.Put(ctx, testItem("b", 2000)))

		items, err := b.All(ctx)
		require.NoError(t, err)
		require.Len(t, items, 3)
		assert.Equal(t, []string{"c", "b", "a"}, ids(items))
		assert.Equal(t, testItem("c", 3000), items[0])
	})

	t.Run("upsert replaces by id", func(t *testing.T) {
		updated := testItem("a", 4000)
		updated.Analysis.DeviceName = "Renamed"
		require.NoError(t, b.Put(ctx, updated))

		items, err := b.All(ctx)
		require.NoError(t, err)
		require.Len(t, items, 3)
		assert.Equal(t, "a", items[0].ID)
		assert.Equal(t, "Renamed", items[0].Analysis.DeviceName)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, b.Delete(ctx, "b"))
		require.NoError(t, b.Delete(ctx, "never-existed"))

		items, err := b.All(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "c"}, ids(items))
	})

	t.Run("clear", func(t *testing.T) {
		require.NoError(t, b.Clear(ctx))
		items, err := b.All(ctx)
		require.NoError(t, err)
		assert.Empty(t, items)

		require.NoError(t, b.Clear(ctx), "clearing an empty store is fine")
	})
}

func ids(items []schematic.HistoryItem) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}
