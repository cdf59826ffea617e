package types

import (
	"math/big"
	"testing"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to IntentState
		want     bool
	}{
		{IntentStateCreated, IntentStateProcessing, true},
		{IntentStateCreated, IntentStateSuccess, false},
		{IntentStateProcessing, IntentStateSuccess, true},
		{IntentStateProcessing, IntentStateFail, true},
		{IntentStateProcessing, IntentStateCreated, false},
		{IntentStateFail, IntentStateProcessing, true},
		{IntentStateFail, IntentStateSuccess, false},
		{IntentStateSuccess, IntentStateProcessing, false},
		{IntentStateSuccess, IntentStateFail, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			if got := CanTransition(tt.from, tt.to); got != tt.want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestIntentState_Display(t *testing.T) {
	want := map[IntentState]DisplayState{
		IntentStateCreated:    DisplayCreated,
		IntentStateProcessing: DisplayProcessing,
		IntentStateSuccess:    DisplaySucceed,
		IntentStateFail:       DisplayFailed,
	}
	for state, display := range want {
		if got := state.Display(); got != display {
			t.Errorf("%s.Display() = %s, want %s", state, got, display)
		}
	}
}

func TestLinkType_SingleAsset(t *testing.T) {
	if !LinkTypeSendTip.SingleAsset() || !LinkTypeSendAirdrop.SingleAsset() || !LinkTypeReceivePayment.SingleAsset() {
		t.Error("tip, airdrop and receive payment must be single-asset")
	}
	if LinkTypeSendTokenBasket.SingleAsset() {
		t.Error("token basket must allow several assets")
	}
	if LinkType("Bogus").Valid() {
		t.Error("unknown link type must be invalid")
	}
}

func TestLink_CloneDoesNotShareAmounts(t *testing.T) {
	orig := Link{
		ID: "l1",
		Assets: []AssetInfo{{
			Asset:  Asset{Chain: ChainIC, Address: "ryjl3-tyaaa-aaaaa-aaaba-cai"},
			Amount: big.NewInt(100),
		}},
	}
	cp := orig.Clone()
	cp.Assets[0].Amount.SetInt64(5)

	if orig.Assets[0].Amount.Int64() != 100 {
		t.Errorf("clone mutated original amount: %s", orig.Assets[0].Amount)
	}
}

func TestAction_AllSucceeded(t *testing.T) {
	a := Action{Intents: []Intent{{State: IntentStateSuccess}, {State: IntentStateFail}}}
	if a.AllSucceeded() {
		t.Error("expected false with a failed intent")
	}
	a.Intents[1].State = IntentStateSuccess
	if !a.AllSucceeded() {
		t.Error("expected true when every intent succeeded")
	}
}
