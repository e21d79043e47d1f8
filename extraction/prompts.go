// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package extraction

import (
	"fmt"
	"strings"

	"github.com/poiesic/quarry/ai"
	"github.com/poiesic/quarry/core"
)

const extractionResponseSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "quotes": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "id": {"type": ["integer", "string"]},
          "text": {"type": "string"},
          "start_index": {"type": "integer", "minimum": 0},
          "end_index": {"type": "integer", "minimum": 0},
          "sentiment": {"type": "string", "enum": ["positive", "negative", "neutral", "mixed"]},
          "emotions": {"type": "array", "items": {"type": "string"}}
        },
        "required": ["id", "text"]
      }
    },
    "nodes": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "id": {"type": ["integer", "string"]},
          "type": {"type": "string", "enum": [%s]},
          "label": {"type": "string"},
          "description": {"type": "string"}
        },
        "required": ["id", "type", "label"]
      }
    },
    "edges": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "from_node_id": {"type": ["integer", "string"]},
          "to_node_id": {"type": ["integer", "string"]},
          "type": {"type": "string"},
          "description": {"type": "string"}
        },
        "required": ["from_node_id", "to_node_id", "type"]
      }
    },
    "quote_node_links": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "quote_id": {"type": ["integer", "string"]},
          "node_id": {"type": ["integer", "string"]},
          "type": {"type": "string"}
        },
        "required": ["quote_id", "node_id", "type"]
      }
    }
  },
  "required": ["quotes", "nodes", "edges", "quote_node_links"],
  "additionalProperties": false
}`

const extractionPromptTemplate = `You analyze customer feedback. Extract verbatim quotes, the pain points,
solutions, themes, features and jobs-to-be-done they express, and the relationships between them.
Return them as JSON.

Output ONLY valid JSON which complies with the schema given below. Do not include any preamble, explanation,
greeting, or acknowledgment. Start your response directly with the opening brace { and end with the closing
brace }. Your output must exactly follow this schema:

%s

Rules:
- Quote text must be copied verbatim from the input. When you can locate it, give start_index and end_index as character offsets into the input, counted from the first character after the opening <text> tag, end exclusive.
- Node type must match exactly one of the listed values: %s.
- Node labels are short (2-6 words). Put any explanation in description.
- Ids are local to this response. Number quotes and nodes from 1 and use those ids in edges and quote_node_links.
- Edges only connect nodes listed in "nodes". Use edge types such as "causes", "solves", "relates_to", "part_of".
- Every quote should support at least one node through quote_node_links. Use link type "supports" unless the quote contradicts the node ("contradicts").
- Include only what the text states or clearly implies. Do not hallucinate.
- If nothing can be extracted, return empty arrays for all four keys.
- The JSON must parse without errors; no trailing commas, no extra keys, and no extraneous text outside the object.

Example:
Input:
<text>
Checkout keeps timing out on mobile. I'd pay more for a faster app.
</text>
Output:
{
  "quotes": [
    {"id":1,"text":"Checkout keeps timing out on mobile","start_index":0,"end_index":35,"sentiment":"negative","emotions":["frustration"]},
    {"id":2,"text":"I'd pay more for a faster app","start_index":37,"end_index":66,"sentiment":"neutral","emotions":[]}
  ],
  "nodes": [
    {"id":1,"type":"pain","label":"Mobile checkout timeouts","description":"Checkout requests time out on mobile devices"},
    {"id":2,"type":"solution","label":"Faster app performance","description":"Users would pay for improved speed"}
  ],
  "edges": [
    {"from_node_id":2,"to_node_id":1,"type":"solves","description":"Better performance addresses checkout timeouts"}
  ],
  "quote_node_links": [
    {"quote_id":1,"node_id":1,"type":"supports"},
    {"quote_id":2,"node_id":2,"type":"supports"}
  ]
}`

// The text goes in verbatim so offsets the model reports index RawContent.Text.
const userPromptTemplate = `Input:
<text>
%s
</text>
Output:`

// systemPrompt is computed once; it depends only on the node type list.
var systemPrompt = buildSystemPrompt()

// buildSystemPrompt creates the system prompt with node types embedded.
func buildSystemPrompt() string {
	types := make([]string, len(core.NodeTypes))
	quoted := make([]string, len(core.NodeTypes))
	for i, t := range core.NodeTypes {
		types[i] = string(t)
		quoted[i] = fmt.Sprintf("%q", t)
	}
	return fmt.Sprintf(extractionPromptTemplate,
		fmt.Sprintf(extractionResponseSchema, strings.Join(quoted, ", ")),
		strings.Join(types, ", "))
}

// BuildPrompt returns the system and user instructions for analyzing text.
// The same text always yields the same prompt.
func BuildPrompt(text string) ai.Prompt {
	return ai.Prompt{
		System: systemPrompt,
		User:   fmt.Sprintf(userPromptTemplate, text),
	}
}
