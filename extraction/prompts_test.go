package extraction

import (
	"strings"
	"testing"

	"github.com/poiesic/quarry/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPrompt(t *testing.T) {
	text := "Users say the app crashes on login."
	p := BuildPrompt(text)

	t.Run("deterministic", func(t *testing.T) {
		assert.Equal(t, p, BuildPrompt(text))
	})

	t.Run("user prompt carries the text", func(t *testing.T) {
		assert.Contains(t, p.User, text)
		assert.NotContains(t, p.System, text)
	})

	t.Run("system prompt declares the schema", func(t *testing.T) {
		for _, key := range []string{`"quotes"`, `"nodes"`, `"edges"`, `"quote_node_links"`,
			`"from_node_id"`, `"to_node_id"`, `"quote_id"`, `"node_id"`, `"start_index"`, `"end_index"`} {
			assert.Contains(t, p.System, key)
		}
	})

	t.Run("system prompt lists every node type", func(t *testing.T) {
		for _, nt := range core.NodeTypes {
			assert.Contains(t, p.System, string(nt))
		}
	})

	t.Run("no unfilled verbs", func(t *testing.T) {
		assert.NotContains(t, p.System, "%!")
		assert.NotContains(t, p.System, "%s")
	})

	t.Run("text is passed verbatim", func(t *testing.T) {
		raw := "he said \"stop\"\nthen\tleft"
		p := BuildPrompt(raw)
		assert.Contains(t, p.User, "<text>\n"+raw+"\n</text>")
		assert.NotContains(t, p.User, `\"stop\"`)
	})
}

func TestBuildPrompt_ExampleParses(t *testing.T) {
	// The worked example in the prompt must itself satisfy the parser.
	_, example, found := strings.Cut(systemPrompt, "Output:\n")
	require.True(t, found)

	got, err := Parse(example)
	require.NoError(t, err)
	assert.Len(t, got.Quotes, 2)
	assert.Len(t, got.Nodes, 2)
	assert.Len(t, got.Edges, 1)
	assert.Len(t, got.Links, 2)
}
