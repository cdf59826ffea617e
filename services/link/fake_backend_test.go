package link

import (
	"context"
	"errors"
	"sync"

	"github.com/cashierlink/link-sdk-go/client"
	"github.com/cashierlink/link-sdk-go/types"
)

// fakeBackend 内存后端：带草稿字段的 update_link 进入 CreateLink，之后依次推进到 Active、InactiveEnded
type fakeBackend struct {
	mu          sync.Mutex
	links       map[string]types.Link
	createCalls int
	updateCalls int
	processErr  error
	createID    string
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{links: map[string]types.Link{}}
}

func (f *fakeBackend) CreateLink(_ context.Context, req *client.CreateLinkRequest) (*types.Link, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	id := req.ID
	if f.createID != "" {
		id = f.createID
	}
	l := types.Link{ID: id, LinkType: req.LinkType, State: types.LinkStateChooseLinkType}
	f.links[id] = l
	return &l, nil
}

func (f *fakeBackend) UpdateLink(_ context.Context, linkID string, patch *client.LinkPatch) (*types.Link, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updateCalls++
	l, ok := f.links[linkID]
	if !ok {
		return nil, errors.New("link not found")
	}
	if patch.Title != nil {
		l.Title = *patch.Title
	}
	if patch.Description != nil {
		l.Description = *patch.Description
	}
	if patch.Assets != nil {
		l.Assets = patch.Assets
	}
	if patch.MaxUseCount != nil {
		l.MaxUseCount = *patch.MaxUseCount
	}
	if patch.Title != nil {
		l.State = types.LinkStateCreateLink
	} else {
		switch l.State {
		case types.LinkStateCreateLink:
			l.State = types.LinkStateActive
		case types.LinkStateActive:
			l.State = types.LinkStateInactiveEnded
		}
	}
	f.links[linkID] = l
	return &l, nil
}

func (f *fakeBackend) ProcessAction(_ context.Context, req *client.ProcessActionRequest) (*types.Action, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.processErr != nil {
		return nil, f.processErr
	}
	return &types.Action{
		ID:    "action-" + req.LinkID,
		Type:  req.ActionType,
		State: types.ActionStateCreated,
		Intents: []types.Intent{
			{ID: "i1", Task: types.TaskTransferWalletToLink, State: types.IntentStateCreated},
			{ID: "i2", Task: types.TaskTransferWalletToTreasury, State: types.IntentStateCreated},
		},
	}, nil
}

func (f *fakeBackend) UpdateAction(context.Context, *client.UpdateActionRequest) (*types.Action, error) {
	return nil, errors.New("not used")
}

func (f *fakeBackend) GetLinkUserState(context.Context, *client.LinkUserStateRequest) (*types.LinkUserStateResult, error) {
	return nil, errors.New("not used")
}

func (f *fakeBackend) Close() error { return nil }
