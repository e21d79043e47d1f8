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

import "errors"

// Domain validation errors
var (
	// ErrInvalidSource indicates a Source failed validation.
	ErrInvalidSource = errors.New("invalid source")

	// ErrInvalidRawContent indicates a RawContent failed validation.
	ErrInvalidRawContent = errors.New("invalid raw content")

	// ErrInvalidQuote indicates a Quote failed validation.
	ErrInvalidQuote = errors.New("invalid quote")

	// ErrInvalidNode indicates a Node failed validation.
	ErrInvalidNode = errors.New("invalid node")

	// ErrInvalidEdge indicates an Edge failed validation.
	ErrInvalidEdge = errors.New("invalid edge")

	// ErrInvalidLink indicates a QuoteNodeLink failed validation.
	ErrInvalidLink = errors.New("invalid quote-node link")

	// ErrInvalidIdea indicates an Idea failed validation.
	ErrInvalidIdea = errors.New("invalid idea")

	// ErrEmptyOwner indicates the owner field is empty.
	ErrEmptyOwner = errors.New("owner cannot be empty")

	// ErrEmptyContent indicates a required text field is empty.
	ErrEmptyContent = errors.New("content cannot be empty")

	// ErrEmptyLabel indicates a node label is empty.
	ErrEmptyLabel = errors.New("label cannot be empty")

	// ErrInvalidSourceKind indicates an unknown SourceKind value.
	ErrInvalidSourceKind = errors.New("invalid source kind")

	// ErrInvalidNodeType indicates an unknown NodeType value.
	ErrInvalidNodeType = errors.New("invalid node type")

	// ErrInvalidIdeaStatus indicates an unknown IdeaStatus value.
	ErrInvalidIdeaStatus = errors.New("invalid idea status")

	// ErrInvalidOffsets indicates quote offsets are negative or reversed.
	ErrInvalidOffsets = errors.New("invalid character offsets")

	// ErrMissingReference indicates a required entity reference is 0.
	ErrMissingReference = errors.New("missing entity reference")
)
