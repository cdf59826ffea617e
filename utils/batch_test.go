package utils

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestParallelCollect(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("boom")

	results, errs := ParallelCollect(ctx, []int{1, 2, 3, 4}, func(ctx context.Context, item int, index int) (int, error) {
		if item == 3 {
			return 0, boom
		}
		return item * 10, nil
	}, 2)

	want := []int{10, 20, 0, 40}
	for i := range want {
		if results[i] != want[i] {
			t.Errorf("results[%d] = %d, want %d", i, results[i], want[i])
		}
	}
	for i, err := range errs {
		if i == 2 {
			if !errors.Is(err, boom) {
				t.Errorf("errs[2] = %v, want boom", err)
			}
			continue
		}
		if err != nil {
			t.Errorf("errs[%d] = %v, want nil", i, err)
		}
	}
}

func TestParallelCollect_ConcurrencyLimit(t *testing.T) {
	var running, peak atomic.Int32

	_, _ = ParallelCollect(context.Background(), make([]int, 10), func(ctx context.Context, _ int, _ int) (struct{}, error) {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		running.Add(-1)
		return struct{}{}, nil
	}, 3)

	if peak.Load() > 3 {
		t.Errorf("peak concurrency = %d, want <= 3", peak.Load())
	}
}

func TestParallelCollect_Empty(t *testing.T) {
	results, errs := ParallelCollect(context.Background(), []int{}, func(ctx context.Context, item int, index int) (int, error) {
		return item, nil
	}, 0)
	if len(results) != 0 || len(errs) != 0 {
		t.Errorf("expected empty output, got %v %v", results, errs)
	}
}

func TestBatchQuery(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name        string
		items       []int
		config      *BatchConfig
		wantFailed  int
		wantBatches int
	}{
		{name: "empty items", items: []int{}, config: DefaultBatchConfig(), wantBatches: 0},
		{name: "single item", items: []int{1}, config: DefaultBatchConfig(), wantBatches: 1},
		{name: "multiple batches", items: []int{1, 2, 3, 4, 5}, config: &BatchConfig{BatchSize: 2, Concurrency: 2}, wantBatches: 3},
		{name: "with failure", items: []int{1, -1, 3}, config: &BatchConfig{BatchSize: 2}, wantFailed: 1, wantBatches: 2},
		{name: "nil config", items: []int{1, 2}, config: nil, wantBatches: -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			batches := 0
			if tt.config != nil {
				tt.config.OnProgress = func(p BatchProgress) {
					batches++
					if p.Total != len(tt.items) {
						t.Errorf("OnProgress: Total = %d, want %d", p.Total, len(tt.items))
					}
				}
			}

			result := BatchQuery(ctx, tt.items, func(ctx context.Context, item int, index int) (int, error) {
				if item < 0 {
					return 0, errors.New("negative")
				}
				if tt.items[index] != item {
					t.Errorf("index %d maps to %d, want %d", index, tt.items[index], item)
				}
				return item * 2, nil
			}, tt.config)

			if result.Total() != len(tt.items) {
				t.Errorf("Total = %d, want %d", result.Total(), len(tt.items))
			}
			if result.Failed != tt.wantFailed {
				t.Errorf("Failed = %d, want %d", result.Failed, tt.wantFailed)
			}
			if result.Success != len(tt.items)-tt.wantFailed {
				t.Errorf("Success = %d, want %d", result.Success, len(tt.items)-tt.wantFailed)
			}
			if tt.wantFailed > 0 && result.FirstError() == nil {
				t.Error("FirstError() = nil, want error")
			}
			if tt.wantBatches >= 0 && batches != tt.wantBatches {
				t.Errorf("progress calls = %d, want %d", batches, tt.wantBatches)
			}
			for i, item := range tt.items {
				if item >= 0 && result.Results[i] != item*2 {
					t.Errorf("Results[%d] = %d, want %d", i, result.Results[i], item*2)
				}
			}
		})
	}
}

func TestBatchArray(t *testing.T) {
	tests := []struct {
		name  string
		items []int
		size  int
		want  int
	}{
		{"exact", []int{1, 2, 3, 4}, 2, 2},
		{"remainder", []int{1, 2, 3, 4, 5}, 2, 3},
		{"empty", nil, 3, 0},
		{"zero size", []int{1, 2, 3}, 0, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := len(BatchArray(tt.items, tt.size)); got != tt.want {
				t.Errorf("BatchArray() = %d batches, want %d", got, tt.want)
			}
		})
	}
}
