package link

import (
	"fmt"

	"github.com/cashierlink/link-sdk-go/types"
)

// Step 链接创建流程的步骤
type Step int

const (
	StepChooseLinkType Step = iota
	StepAddAsset
	StepPreview
	StepCreateLink
	StepActive
	StepInactive
)

func (s Step) String() string {
	switch s {
	case StepChooseLinkType:
		return "ChooseLinkType"
	case StepAddAsset:
		return "AddAsset"
	case StepPreview:
		return "Preview"
	case StepCreateLink:
		return "CreateLink"
	case StepActive:
		return "Active"
	case StepInactive:
		return "Inactive"
	}
	return fmt.Sprintf("Step(%d)", int(s))
}

// Prev goBack 的目标步骤；没有前驱的步骤返回自身
func (s Step) Prev() Step {
	switch s {
	case StepAddAsset:
		return StepChooseLinkType
	case StepPreview:
		return StepAddAsset
	case StepCreateLink:
		return StepPreview
	case StepChooseLinkType, StepActive, StepInactive:
		return s
	}
	return s
}

// LinkState 步骤对应的链接状态
func (s Step) LinkState() types.LinkState {
	switch s {
	case StepChooseLinkType:
		return types.LinkStateChooseLinkType
	case StepAddAsset:
		return types.LinkStateAddAssets
	case StepPreview:
		return types.LinkStatePreview
	case StepCreateLink:
		return types.LinkStateCreateLink
	case StepActive:
		return types.LinkStateActive
	case StepInactive:
		return types.LinkStateInactive
	}
	return types.LinkStateChooseLinkType
}

// StepForState 后端链接状态对应的步骤
func StepForState(state types.LinkState) (Step, error) {
	switch state {
	case types.LinkStateChooseLinkType:
		return StepChooseLinkType, nil
	case types.LinkStateAddAssets:
		return StepAddAsset, nil
	case types.LinkStatePreview:
		return StepPreview, nil
	case types.LinkStateCreateLink:
		return StepCreateLink, nil
	case types.LinkStateActive:
		return StepActive, nil
	case types.LinkStateInactive, types.LinkStateInactiveEnded:
		return StepInactive, nil
	}
	return 0, fmt.Errorf("unknown link state %q", state)
}
