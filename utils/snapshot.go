package utils

import (
	"sync"
)

// SnapshotStore 按 key 保存不可变快照
//
// 更新只能整体替换，每次替换后推送给该 key 的订阅者。订阅通道缓冲为 1，
// 订阅者来不及消费时只保留最新值。
type SnapshotStore[K comparable, V any] struct {
	mu     sync.RWMutex
	items  map[K]V
	subs   map[K]map[uint64]chan V
	nextID uint64
}

// NewSnapshotStore 创建快照仓库
func NewSnapshotStore[K comparable, V any]() *SnapshotStore[K, V] {
	return &SnapshotStore[K, V]{
		items: make(map[K]V),
		subs:  make(map[K]map[uint64]chan V),
	}
}

// Get 读取快照
func (s *SnapshotStore[K, V]) Get(key K) (V, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.items[key]
	return v, ok
}

// Put 整体替换快照并通知订阅者
func (s *SnapshotStore[K, V]) Put(key K, value V) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[key] = value
	s.publishLocked(key, value)
}

// Update 基于当前快照计算新快照
//
// fn 返回错误时仓库保持不变。key 不存在时 fn 收到零值和 false。
func (s *SnapshotStore[K, V]) Update(key K, fn func(current V, ok bool) (V, error)) (V, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.items[key]
	next, err := fn(current, ok)
	if err != nil {
		return current, err
	}
	s.items[key] = next
	s.publishLocked(key, next)
	return next, nil
}

// Delete 删除快照并关闭该 key 的订阅
func (s *SnapshotStore[K, V]) Delete(key K) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, key)
	for id, ch := range s.subs[key] {
		close(ch)
		delete(s.subs[key], id)
	}
	delete(s.subs, key)
}

// Keys 当前所有 key
func (s *SnapshotStore[K, V]) Keys() []K {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]K, 0, len(s.items))
	for k := range s.items {
		out = append(out, k)
	}
	return out
}

// Subscribe 订阅 key 的后续替换
//
// 返回的 cancel 可重复调用。
func (s *SnapshotStore[K, V]) Subscribe(key K) (<-chan V, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	id := s.nextID
	ch := make(chan V, 1)
	if s.subs[key] == nil {
		s.subs[key] = make(map[uint64]chan V)
	}
	s.subs[key][id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if c, ok := s.subs[key][id]; ok {
				close(c)
				delete(s.subs[key], id)
			}
		})
	}
	return ch, cancel
}

func (s *SnapshotStore[K, V]) publishLocked(key K, value V) {
	for _, ch := range s.subs[key] {
		select {
		case ch <- value:
		default:
			// 丢弃旧值，保留最新
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- value:
			default:
			}
		}
	}
}
