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


package core

import (
	"fmt"
	"strings"
)

// ValidateSource validates a Source according to domain rules.
//
// Validation rules:
//   - Owner must not be empty
//   - Kind must be a known SourceKind
//
// NOT validated:
//   - ID (0 is valid until storage assigns one)
func ValidateSource(source *Source) error {
	if source == nil {
		return fmt.Errorf("%w: source is nil", ErrInvalidSource)
	}
	if err := validateOwner(source.Owner); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSource, err)
	}
	if !source.Kind.IsValid() {
		return fmt.Errorf("%w: %w: %q", ErrInvalidSource, ErrInvalidSourceKind, source.Kind)
	}
	return nil
}

// ValidateRawContent validates a RawContent according to domain rules.
//
// Validation rules:
//   - Owner must not be empty
//   - Text must contain non-whitespace characters
//   - SourceId must reference a stored Source
func ValidateRawContent(content *RawContent) error {
	if content == nil {
		return fmt.Errorf("%w: raw content is nil", ErrInvalidRawContent)
	}
	if err := validateOwner(content.Owner); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRawContent, err)
	}
	if strings.TrimSpace(content.Text) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidRawContent, ErrEmptyContent)
	}
	if content.SourceId == 0 {
		return fmt.Errorf("%w: %w: source", ErrInvalidRawContent, ErrMissingReference)
	}
	return nil
}

// ValidateQuote validates a Quote according to domain rules.
//
// Validation rules:
//   - Owner must not be empty
//   - RawContentId must be set
//   - Text must not be empty
//   - Offsets, when present, must be non-negative and start <= end
func ValidateQuote(quote *Quote) error {
	if quote == nil {
		return fmt.Errorf("%w: quote is nil", ErrInvalidQuote)
	}
	if err := validateOwner(quote.Owner); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidQuote, err)
	}
	if quote.RawContentId == 0 {
		return fmt.Errorf("%w: %w: raw content", ErrInvalidQuote, ErrMissingReference)
	}
	if strings.TrimSpace(quote.Text) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidQuote, ErrEmptyContent)
	}
	if err := ValidateOffsets(quote.StartIndex, quote.EndIndex); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidQuote, err)
	}
	return nil
}

// ValidateOffsets checks optional character offsets.
func ValidateOffsets(start, end *int) error {
	if start != nil && *start < 0 {
		return fmt.Errorf("%w: start %d", ErrInvalidOffsets, *start)
	}
	if end != nil && *end < 0 {
		return fmt.Errorf("%w: end %d", ErrInvalidOffsets, *end)
	}
	if start != nil && end != nil && *start > *end {
		return fmt.Errorf("%w: start %d after end %d", ErrInvalidOffsets, *start, *end)
	}
	return nil
}

// ValidateNode validates a Node according to domain rules.
//
// NOT validated:
//   - Vector (populated later by an external embedding job)
func ValidateNode(node *Node) error {
	if node == nil {
		return fmt.Errorf("%w: node is nil", ErrInvalidNode)
	}
	if err := validateOwner(node.Owner); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidNode, err)
	}
	if !node.Type.IsValid() {
		return fmt.Errorf("%w: %w: %q", ErrInvalidNode, ErrInvalidNodeType, node.Type)
	}
	if strings.TrimSpace(node.Label) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidNode, ErrEmptyLabel)
	}
	return nil
}

// ValidateEdge validates an Edge. Both endpoints must be durable node IDs.
func ValidateEdge(edge *Edge) error {
	if edge == nil {
		return fmt.Errorf("%w: edge is nil", ErrInvalidEdge)
	}
	if err := validateOwner(edge.Owner); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidEdge, err)
	}
	if edge.FromNodeId == 0 || edge.ToNodeId == 0 {
		return fmt.Errorf("%w: %w: node", ErrInvalidEdge, ErrMissingReference)
	}
	return nil
}

// ValidateQuoteNodeLink validates a QuoteNodeLink. Both references must be durable IDs.
func ValidateQuoteNodeLink(link *QuoteNodeLink) error {
	if link == nil {
		return fmt.Errorf("%w: link is nil", ErrInvalidLink)
	}
	if err := validateOwner(link.Owner); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidLink, err)
	}
	if link.QuoteId == 0 {
		return fmt.Errorf("%w: %w: quote", ErrInvalidLink, ErrMissingReference)
	}
	if link.NodeId == 0 {
		return fmt.Errorf("%w: %w: node", ErrInvalidLink, ErrMissingReference)
	}
	return nil
}

// ValidateIdea validates an Idea.
func ValidateIdea(idea *Idea) error {
	if idea == nil {
		return fmt.Errorf("%w: idea is nil", ErrInvalidIdea)
	}
	if err := validateOwner(idea.Owner); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidIdea, err)
	}
	if strings.TrimSpace(idea.Text) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidIdea, ErrEmptyContent)
	}
	if !idea.Status.IsValid() {
		return fmt.Errorf("%w: %w: %q", ErrInvalidIdea, ErrInvalidIdeaStatus, idea.Status)
	}
	return nil
}

func validateOwner(owner string) error {
	if strings.TrimSpace(owner) == "" {
		return ErrEmptyOwner
	}
	return nil
}
