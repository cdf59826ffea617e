package link

import (
	"github.com/cashierlink/link-sdk-go/types"
	"github.com/cashierlink/link-sdk-go/utils"
)

// Snapshot 某一时刻的链接草稿状态，不可变
type Snapshot struct {
	Step      Step
	Link      types.Link
	Action    *types.Action // 仅 CreateLink 之后存在
	Confirmed bool          // 后端是否已持久化该链接
	Version   uint64
}

// clone 深拷贝，保证快照之间不共享可变数据
func (s Snapshot) clone() Snapshot {
	out := s
	out.Link = s.Link.Clone()
	if s.Action != nil {
		a := s.Action.Clone()
		out.Action = &a
	}
	return out
}

// Store 按链接 ID 保存快照
type Store struct {
	snapshots *utils.SnapshotStore[string, Snapshot]
}

// NewStore 创建快照仓库
func NewStore() *Store {
	return &Store{snapshots: utils.NewSnapshotStore[string, Snapshot]()}
}

// Get 读取快照副本
func (s *Store) Get(linkID string) (Snapshot, bool) {
	snap, ok := s.snapshots.Get(linkID)
	if !ok {
		return Snapshot{}, false
	}
	return snap.clone(), true
}

// Put 整体写入快照，Version 自动递增
func (s *Store) Put(snap Snapshot) Snapshot {
	out, _ := s.Update(snap.Link.ID, func(cur Snapshot, ok bool) (Snapshot, error) {
		return snap, nil
	})
	return out
}

// Update 基于当前快照计算新快照；fn 出错时不做任何修改
func (s *Store) Update(linkID string, fn func(cur Snapshot, ok bool) (Snapshot, error)) (Snapshot, error) {
	next, err := s.snapshots.Update(linkID, func(cur Snapshot, ok bool) (Snapshot, error) {
		next, err := fn(cur.clone(), ok)
		if err != nil {
			return cur, err
		}
		next = next.clone()
		next.Version = cur.Version + 1
		return next, nil
	})
	if err != nil {
		return Snapshot{}, err
	}
	return next.clone(), nil
}

// Subscribe 订阅快照替换
func (s *Store) Subscribe(linkID string) (<-chan Snapshot, func()) {
	return s.snapshots.Subscribe(linkID)
}

// Delete 删除快照
func (s *Store) Delete(linkID string) {
	s.snapshots.Delete(linkID)
}

// IDs 所有链接 ID
func (s *Store) IDs() []string {
	return s.snapshots.Keys()
}
