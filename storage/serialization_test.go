package storage

import (
	"testing"
	"time"

	"github.com/poiesic/quarry/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalUnmarshalID(t *testing.T) {
	tests := []struct {
		name string
		id   core.ID
	}{
		{"zero ID", core.ID(0)},
		{"small ID", core.ID(42)},
		{"large ID", core.ID(18446744073709551615)}, // max uint64
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := MarshalID(tt.id)
			require.Len(t, data, 8)

			decoded, err := UnmarshalID(data)
			require.NoError(t, err)
			assert.Equal(t, tt.id, decoded)
		})
	}
}

func TestMarshalID_SortsNumerically(t *testing.T) {
	assert.Less(t, string(MarshalID(9)), string(MarshalID(10)))
	assert.Less(t, string(MarshalID(255)), string(MarshalID(256)))
}

func TestUnmarshalID_Invalid(t *testing.T) {
	for _, data := range [][]byte{{}, {1, 2, 3}, make([]byte, 9)} {
		_, err := UnmarshalID(data)
		assert.ErrorIs(t, err, ErrSerializationFailed)
	}
}

func TestMarshalRecord_PreservesOptionalFields(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Microsecond)
	start, end := 3, 9
	quote := &core.Quote{
		Id:           7,
		Owner:        "user-1",
		RawContentId: 3,
		Text:         "crashes on login",
		StartIndex:   &start,
		EndIndex:     &end,
		Sentiment:    "negative",
		Emotions:     []string{"frustration"},
		IsSuggestion: true,
		CreatedAt:    now,
	}

	data, err := MarshalRecord(quote)
	require.NoError(t, err)

	decoded, err := UnmarshalRecord[core.Quote](data)
	require.NoError(t, err)
	assert.Equal(t, quote, decoded)
	assert.Nil(t, decoded.Review.ReviewedAt)
}

func TestMarshalRecord_OptionalValues(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Microsecond)
	reviewed := now.Add(-time.Hour)

	t.Run("raw content before and after processing", func(t *testing.T) {
		content := &core.RawContent{Id: 2, Owner: "user-1", SourceId: 1, Text: "Users say the app crashes on login.", Checksum: core.Checksum("x"), CreatedAt: now}
		data, err := MarshalRecord(content)
		require.NoError(t, err)
		decoded, err := UnmarshalRecord[core.RawContent](data)
		require.NoError(t, err)
		assert.Equal(t, content, decoded)
		assert.Nil(t, decoded.ProcessedAt)

		content.ProcessedAt = &now
		data, err = MarshalRecord(content)
		require.NoError(t, err)
		decoded, err = UnmarshalRecord[core.RawContent](data)
		require.NoError(t, err)
		require.NotNil(t, decoded.ProcessedAt)
		assert.True(t, now.Equal(*decoded.ProcessedAt))
	})

	t.Run("node with vector and review", func(t *testing.T) {
		node := &core.Node{
			Id: 9, Owner: "user-1", RawContentId: 2, Type: core.NodeTypePain,
			Label: "Login crash", Vector: []float32{0.25, -1.5, 3},
			IsSuggestion: true, Review: core.Review{ReviewedBy: "pm", ReviewedAt: &reviewed},
			CreatedAt: now,
		}
		data, err := MarshalRecord(node)
		require.NoError(t, err)
		decoded, err := UnmarshalRecord[core.Node](data)
		require.NoError(t, err)
		assert.Equal(t, node, decoded)
	})

	t.Run("zero times and empty collections", func(t *testing.T) {
		source := &core.Source{Id: 1, Owner: "user-1", Kind: core.SourceKindManual}
		data, err := MarshalRecord(source)
		require.NoError(t, err)
		decoded, err := UnmarshalRecord[core.Source](data)
		require.NoError(t, err)
		assert.Equal(t, source, decoded)
		assert.True(t, decoded.CreatedAt.IsZero())
		assert.Nil(t, decoded.Metadata)
	})
}

func TestMarshalRecord_MapOrderIsStable(t *testing.T) {
	idea := &core.Idea{Id: 4, Owner: "user-1", Text: "Add retry", Status: core.IdeaStatusGenerated,
		Metadata: map[string]string{"b": "2", "a": "1", "c": "3", "d": "4"}}

	first, err := MarshalRecord(idea)
	require.NoError(t, err)
	for range 10 {
		again, err := MarshalRecord(idea)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}

	decoded, err := UnmarshalRecord[core.Idea](first)
	require.NoError(t, err)
	assert.Equal(t, idea, decoded)
}

func TestUnmarshalRecord_Invalid(t *testing.T) {
	edge := &core.Edge{Id: 3, Owner: "user-1", FromNodeId: 1, ToNodeId: 2, Type: "solves", CreatedAt: time.Now().UTC()}
	data, err := MarshalRecord(edge)
	require.NoError(t, err)

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", []byte{}},
		{"truncated", data[:len(data)-1]},
		{"trailing bytes", append(append([]byte{}, data...), 0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := UnmarshalRecord[core.Edge](tt.data)
			assert.ErrorIs(t, err, ErrSerializationFailed)
		})
	}
}

func TestUnmarshalRecord_RejectsOversizedLength(t *testing.T) {
	quote := &core.Quote{Id: 1, Owner: "u", Text: "t", Emotions: []string{"anger"}}
	data, err := MarshalRecord(quote)
	require.NoError(t, err)

	// Emotions length follows id, owner, raw content id, text, two absent
	// offsets and the sentiment. 1+2+1+2+1+1+1 bytes.
	const emotionsAt = 9
	data[emotionsAt] = 0x7e

	_, err = UnmarshalRecord[core.Quote](data)
	assert.ErrorIs(t, err, ErrSerializationFailed)
}
