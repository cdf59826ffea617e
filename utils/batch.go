package utils

import (
	"context"
	"sync"
)

// BatchConfig 批量操作配置
type BatchConfig struct {
	// BatchSize 批量大小
	BatchSize int
	// Concurrency 并发数量
	Concurrency int
	// OnProgress 进度回调函数
	OnProgress func(progress BatchProgress)
}

// BatchProgress 批量操作进度
type BatchProgress struct {
	Completed int
	Total     int
	Success   int
	Failed    int
}

// DefaultBatchConfig 返回默认批量配置
func DefaultBatchConfig() *BatchConfig {
	return &BatchConfig{
		BatchSize:   50,
		Concurrency: 5,
	}
}

// BatchQueryResult 批量查询结果
//
// Results 与 Errors 按输入下标对齐，失败项的 Results[i] 为零值
type BatchQueryResult[R any] struct {
	Results []R
	Errors  []error
	Success int
	Failed  int
}

// Total 总数量
func (r *BatchQueryResult[R]) Total() int {
	return len(r.Results)
}

// FirstError 第一个失败项的错误
func (r *BatchQueryResult[R]) FirstError() error {
	for _, err := range r.Errors {
		if err != nil {
			return err
		}
	}
	return nil
}

// ParallelCollect 并发执行并按下标收集结果和错误
//
// 单项失败不影响其他项。ctx 取消后尚未开始的项直接记为 ctx.Err()。
func ParallelCollect[T any, R any](
	ctx context.Context,
	items []T,
	fn func(ctx context.Context, item T, index int) (R, error),
	concurrency int,
) ([]R, []error) {
	if concurrency <= 0 {
		concurrency = len(items)
	}
	if concurrency == 0 {
		concurrency = 1
	}

	results := make([]R, len(items))
	errs := make([]error, len(items))
	var wg sync.WaitGroup
	sem := make(chan struct{}, concurrency)

	for i, item := range items {
		wg.Add(1)
		go func(index int, it T) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				errs[index] = ctx.Err()
				return
			}
			defer func() { <-sem }()

			results[index], errs[index] = fn(ctx, it, index)
		}(i, item)
	}

	wg.Wait()
	return results, errs
}

// BatchQuery 分批并发查询
//
// 批次之间串行，批次内部并发，上限为 Concurrency
func BatchQuery[T any, R any](
	ctx context.Context,
	items []T,
	queryFn func(ctx context.Context, item T, index int) (R, error),
	config *BatchConfig,
) *BatchQueryResult[R] {
	if config == nil {
		config = DefaultBatchConfig()
	}
	batchSize := config.BatchSize
	if batchSize <= 0 {
		batchSize = 50
	}
	concurrency := config.Concurrency
	if concurrency <= 0 {
		concurrency = 5
	}

	out := &BatchQueryResult[R]{
		Results: make([]R, len(items)),
		Errors:  make([]error, len(items)),
	}

	offset := 0
	for _, batch := range BatchArray(items, batchSize) {
		base := offset
		results, errs := ParallelCollect(ctx, batch, func(ctx context.Context, item T, i int) (R, error) {
			return queryFn(ctx, item, base+i)
		}, concurrency)

		for i := range batch {
			out.Results[base+i] = results[i]
			out.Errors[base+i] = errs[i]
			if errs[i] != nil {
				out.Failed++
			} else {
				out.Success++
			}
		}
		offset += len(batch)

		if config.OnProgress != nil {
			config.OnProgress(BatchProgress{
				Completed: offset,
				Total:     len(items),
				Success:   out.Success,
				Failed:    out.Failed,
			})
		}
	}

	return out
}

// BatchArray 将数组分批次
func BatchArray[T any](array []T, batchSize int) [][]T {
	if batchSize <= 0 {
		batchSize = len(array)
	}
	batches := make([][]T, 0)
	for i := 0; i < len(array); i += batchSize {
		end := i + batchSize
		if end > len(array) {
			end = len(array)
		}
		batches = append(batches, array[i:end])
	}
	return batches
}
