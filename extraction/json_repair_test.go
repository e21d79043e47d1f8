package extraction

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRepairJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"well formed is untouched", `{"a":1,"b":[1,2]}`, `{"a":1,"b":[1,2]}`},
		{"missing opening quote after comma", `{"id":1, type":"pain"}`, `{"id":1, "type":"pain"}`},
		{"missing opening quote after brace", `{label":"x"}`, `{"label":"x"}`},
		{"underscored key", `{"a":1,node_id":2}`, `{"a":1,"node_id":2}`},
		{"bare literals are kept", `[1, true, null]`, `[1, true, null]`},
		{"trailing comma in array", `[1,2,]`, `[1,2]`},
		{"trailing comma in object", "{\"a\":1,\n}", "{\"a\":1\n}"},
		{"comma inside string kept", `{"t":"a,]"}`, `{"t":"a,]"}`},
		{"escaped quote inside string", `{"t":"say \",]\" ok",}`, `{"t":"say \",]\" ok"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, repairJSON(tt.in))
		})
	}
}

func TestStripCodeFence(t *testing.T) {
	assert.Equal(t, `{"a":1}`, stripCodeFence("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripCodeFence("```\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripCodeFence("```json{\"a\":1}```"))
	assert.Equal(t, `{"a":1}`, stripCodeFence("  {\"a\":1}  "))
}

func TestExtractObject(t *testing.T) {
	assert.Equal(t, `{"a":{"b":1}}`, extractObject(`noise {"a":{"b":1}} trailing`))
	assert.Equal(t, "", extractObject("no braces"))
	assert.Equal(t, "", extractObject("} backwards {"))
}

func TestArrayFirst(t *testing.T) {
	assert.True(t, arrayFirst(`[{"a":1}]`))
	assert.True(t, arrayFirst(`Here you go: [{"a":1}]`))
	assert.True(t, arrayFirst(`[1, 2]`))
	assert.False(t, arrayFirst(`{"quotes":[]}`))
	assert.False(t, arrayFirst(`Result: {"quotes":[1]}`))
	assert.False(t, arrayFirst(`no json here`))
}
