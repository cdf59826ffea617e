package utils

import (
	"context"
	"testing"
)

func BenchmarkBatchQuery(b *testing.B) {
	ctx := context.Background()
	items := make([]int, 1000)
	for i := range items {
		items[i] = i
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = BatchQuery(ctx, items, func(ctx context.Context, item int, index int) (int, error) {
			return item * 2, nil
		}, &BatchConfig{BatchSize: 50, Concurrency: 5})
	}
}

func BenchmarkParallelCollect(b *testing.B) {
	ctx := context.Background()
	items := make([]int, 100)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = ParallelCollect(ctx, items, func(ctx context.Context, item int, index int) (int, error) {
			return item, nil
		}, 0)
	}
}
