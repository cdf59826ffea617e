package signer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cashierlink/link-sdk-go/types"
)

func sampleBatch() BatchRequest {
	return BatchRequest{
		{
			{CanisterID: "ryjl3-tyaaa-aaaaa-aaaba-cai", Method: "icrc1_transfer", Arg: []byte{0x44, 0x49, 0x44, 0x4c}, Nonce: []byte{1, 2, 3}},
			{CanisterID: "mxzaz-hqaaa-aaaar-qaada-cai", Method: "icrc2_approve", Arg: []byte{}},
		},
		{
			{CanisterID: "jjio5-5aaaa-aaaam-adhaq-cai", Method: "trigger_transaction", Arg: []byte("payload")},
		},
	}
}

func TestToWire_Encoding(t *testing.T) {
	params := ToWire("sender-1", sampleBatch(), &ValidationTarget{CanisterID: "backend", Method: "icrc114_validate"})

	assert.Equal(t, "sender-1", params.Sender)
	require.Len(t, params.Requests, 2)
	require.Len(t, params.Requests[0], 2)
	assert.Equal(t, "RElETA==", params.Requests[0][0].Arg)
	assert.Equal(t, "AQID", params.Requests[0][0].Nonce)
	assert.Empty(t, params.Requests[0][1].Nonce)
	assert.Equal(t, "icrc114_validate", params.Validation.Method)
}

func TestWire_RoundTrip(t *testing.T) {
	batch := sampleBatch()
	back, err := FromWire(ToWire("s", batch, nil))
	require.NoError(t, err)

	require.Len(t, back, len(batch))
	for g := range batch {
		require.Len(t, back[g], len(batch[g]))
		for i := range batch[g] {
			assert.Equal(t, batch[g][i].CanisterID, back[g][i].CanisterID)
			assert.Equal(t, batch[g][i].Method, back[g][i].Method)
			assert.Equal(t, string(batch[g][i].Arg), string(back[g][i].Arg))
			assert.Equal(t, batch[g][i].Nonce, back[g][i].Nonce)
		}
	}
	assert.Equal(t, 3, back.Len())
}

func TestFromWire_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		params *BatchCallParams
	}{
		{"nil", nil},
		{"bad arg", &BatchCallParams{Requests: [][]WireCall{{{CanisterID: "c", Method: "m", Arg: "!!"}}}}},
		{"bad nonce", &BatchCallParams{Requests: [][]WireCall{{{CanisterID: "c", Method: "m", Arg: "", Nonce: "%%"}}}}},
		{"missing method", &BatchCallParams{Requests: [][]WireCall{{{CanisterID: "c"}}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromWire(tt.params)
			assert.Error(t, err)
		})
	}
}

func TestCheckShape(t *testing.T) {
	params := ToWire("s", BatchRequest{{types.CanisterCall{CanisterID: "c", Method: "m"}}}, nil)

	ok := &BatchCallResult{Responses: [][]CallResponse{{{}}}}
	assert.NoError(t, ok.CheckShape(params))

	wrongGroups := &BatchCallResult{Responses: [][]CallResponse{{{}}, {{}}}}
	assert.Error(t, wrongGroups.CheckShape(params))

	wrongCalls := &BatchCallResult{Responses: [][]CallResponse{{}}}
	assert.Error(t, wrongCalls.CheckShape(params))
}
