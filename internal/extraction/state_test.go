package extraction

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStateAdvance(t *testing.T) {
	tests := []struct {
		from    State
		to      State
		want    State
		changed bool
	}{
		{StateIdle, StatePending, StatePending, true},
		{StatePending, StateProcessing, StateProcessing, true},
		{StateProcessing, StatePending, StateProcessing, false},
		{StateProcessing, StateProcessing, StateProcessing, false},
		{StateProcessing, StateCompleted, StateCompleted, true},
		{StatePending, StateFailed, StateFailed, true},
		{StateProcessing, StateFailed, StateFailed, true},
		{StateCompleted, StateFailed, StateCompleted, false},
		{StateCompleted, StateProcessing, StateCompleted, false},
		{StateFailed, StateCompleted, StateFailed, false},
		{StateFailed, StateIdle, StateFailed, false},
	}

	for _, tt := range tests {
		t.Run(tt.from.String()+"->"+tt.to.String(), func(t *testing.T) {
			got, changed := tt.from.Advance(tt.to)
			require.Equal(t, tt.want, got)
			require.Equal(t, tt.changed, changed)
		})
	}
}

func TestStateJSON(t *testing.T) {
	data, err := json.Marshal(map[string]State{"state": StateProcessing})
	require.NoError(t, err)
	require.JSONEq(t, `{"state":"processing"}`, string(data))

	var s State
	require.NoError(t, json.Unmarshal([]byte(`"completed"`), &s))
	require.Equal(t, StateCompleted, s)
	require.Error(t, json.Unmarshal([]byte(`"done"`), &s))
}

func TestStateProcessing(t *testing.T) {
	require.False(t, StateIdle.Processing())
	require.True(t, StatePending.Processing())
	require.True(t, StateProcessing.Processing())
	require.False(t, StateCompleted.Processing())
	require.False(t, StateFailed.Processing())
}
