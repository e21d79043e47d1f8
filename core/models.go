package core

import (
	"encoding/binary"
	"encoding/hex"
	"strings"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a durable identifier for stored entities.
// IDs are assigned by the storage layer from sequences; 0 means "not yet stored".
type ID uint64

// Checksum returns a 64-bit BLAKE2b digest of text.
// Identical text always produces the identical checksum.
func Checksum(text string) uint64 {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return binary.LittleEndian.Uint64(sum)
}

// ShortHash returns a short, stable, non-reversible token for s.
// Used where an identifier has to be correlated in logs without being printed.
func ShortHash(s string) string {
	h, _ := blake2b.New(6, nil)
	h.Write([]byte(s))
	return hex.EncodeToString(h.Sum(nil))
}

// SourceKind describes where a submission came from.
type SourceKind string

const (
	SourceKindManual  SourceKind = "manual"
	SourceKindWebpage SourceKind = "webpage"
	SourceKindFile    SourceKind = "file"
	SourceKindAPI     SourceKind = "api"
)

// IsValid reports whether k is a known source kind.
func (k SourceKind) IsValid() bool {
	switch k {
	case SourceKindManual, SourceKindWebpage, SourceKindFile, SourceKindAPI:
		return true
	}
	return false
}

// NodeType tags what a concept node represents.
type NodeType string

const (
	NodeTypePain        NodeType = "pain"
	NodeTypeSolution    NodeType = "solution"
	NodeTypeTheme       NodeType = "theme"
	NodeTypeFeature     NodeType = "feature"
	NodeTypeJobToBeDone NodeType = "job_to_be_done"
	NodeTypeInsight     NodeType = "insight"
)

// NodeTypes lists every valid node type in prompt order.
var NodeTypes = []NodeType{
	NodeTypePain,
	NodeTypeSolution,
	NodeTypeTheme,
	NodeTypeFeature,
	NodeTypeJobToBeDone,
	NodeTypeInsight,
}

var nodeTypeAliases = map[string]NodeType{
	"pain_point":      NodeTypePain,
	"problem":         NodeTypePain,
	"jtbd":            NodeTypeJobToBeDone,
	"job":             NodeTypeJobToBeDone,
	"jobs_to_be_done": NodeTypeJobToBeDone,
	"feature_request": NodeTypeFeature,
}

// IsValid reports whether t is a known node type.
func (t NodeType) IsValid() bool {
	for _, known := range NodeTypes {
		if t == known {
			return true
		}
	}
	return false
}

// NormalizeNodeType folds case, spaces and hyphens and resolves common aliases.
// The result may still be invalid; callers check IsValid.
func NormalizeNodeType(s string) NodeType {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer(" ", "_", "-", "_").Replace(s)
	if alias, ok := nodeTypeAliases[s]; ok {
		return alias
	}
	return NodeType(s)
}

// IdeaStatus is the lifecycle state of an Idea.
type IdeaStatus string

const (
	IdeaStatusGenerated   IdeaStatus = "generated"
	IdeaStatusApproved    IdeaStatus = "approved"
	IdeaStatusImplemented IdeaStatus = "implemented"
	IdeaStatusDiscarded   IdeaStatus = "discarded"
)

// IsValid reports whether s is a known idea status.
func (s IdeaStatus) IsValid() bool {
	switch s {
	case IdeaStatusGenerated, IdeaStatusApproved, IdeaStatusImplemented, IdeaStatusDiscarded:
		return true
	}
	return false
}

// Review holds human review metadata. Both fields stay empty until a reviewer acts.
type Review struct {
	ReviewedBy string     `json:"reviewed_by,omitempty"`
	ReviewedAt *time.Time `json:"reviewed_at,omitempty"`
}

// Source records the provenance of one submission. Immutable once stored.
type Source struct {
	Id        ID                `json:"id"`
	Owner     string            `json:"owner_id"`
	Kind      SourceKind        `json:"type"`
	URL       string            `json:"url,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// RawContent is the submitted text body.
// ProcessedAt is set exactly once, after an analysis attempt finishes.
type RawContent struct {
	Id          ID         `json:"id"`
	Owner       string     `json:"owner_id"`
	SourceId    ID         `json:"source_id"`
	Text        string     `json:"text_content"`
	Checksum    uint64     `json:"checksum"`
	CreatedAt   time.Time  `json:"created_at"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
}

// Quote is an excerpt extracted from a RawContent.
type Quote struct {
	Id           ID        `json:"id"`
	Owner        string    `json:"owner_id"`
	RawContentId ID        `json:"raw_content_id"`
	Text         string    `json:"text"`
	StartIndex   *int      `json:"start_index,omitempty"`
	EndIndex     *int      `json:"end_index,omitempty"`
	Sentiment    string    `json:"sentiment,omitempty"`
	Emotions     []string  `json:"emotions,omitempty"`
	IsSuggestion bool      `json:"is_suggestion"`
	Review       Review    `json:"review"`
	CreatedAt    time.Time `json:"created_at"`
}

// Node is a concept (pain, solution, theme, ...) found in a RawContent.
type Node struct {
	Id           ID        `json:"id"`
	Owner        string    `json:"owner_id"`
	RawContentId ID        `json:"raw_content_id"`
	Type         NodeType  `json:"type"`
	Label        string    `json:"label"`
	Description  string    `json:"description,omitempty"`
	Vector       []float32 `json:"embedding,omitempty"` // Populated by an external embedding job
	IsSuggestion bool      `json:"is_suggestion"`
	Review       Review    `json:"review"`
	CreatedAt    time.Time `json:"created_at"`
}

// Edge is a directed relationship between two Nodes.
type Edge struct {
	Id           ID        `json:"id"`
	Owner        string    `json:"owner_id"`
	RawContentId ID        `json:"raw_content_id"`
	FromNodeId   ID        `json:"from_node_id"`
	ToNodeId     ID        `json:"to_node_id"`
	Type         string    `json:"type"`
	Description  string    `json:"description,omitempty"`
	IsSuggestion bool      `json:"is_suggestion"`
	Review       Review    `json:"review"`
	CreatedAt    time.Time `json:"created_at"`
}

// QuoteNodeLink records that a Quote is evidence for a Node.
// At most one link exists per (quote, node) pair.
type QuoteNodeLink struct {
	Id           ID        `json:"id"`
	Owner        string    `json:"owner_id"`
	RawContentId ID        `json:"raw_content_id"`
	QuoteId      ID        `json:"quote_id"`
	NodeId       ID        `json:"node_id"`
	Type         string    `json:"type"`
	IsSuggestion bool      `json:"is_suggestion"`
	Review       Review    `json:"review"`
	CreatedAt    time.Time `json:"created_at"`
}

// Idea is a downstream suggestion derived from a Node or Quote.
// NodeId and QuoteId are 0 when the idea has no generating reference.
type Idea struct {
	Id        ID                `json:"id"`
	Owner     string            `json:"owner_id"`
	NodeId    ID                `json:"node_id,omitempty"`
	QuoteId   ID                `json:"quote_id,omitempty"`
	Text      string            `json:"text"`
	Type      string            `json:"type,omitempty"`
	Status    IdeaStatus        `json:"status"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}
