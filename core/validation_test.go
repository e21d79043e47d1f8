package core

import (
	"errors"
	"testing"
)

func intPtr(v int) *int { return &v }

func TestValidateSource(t *testing.T) {
	tests := []struct {
		name    string
		source  *Source
		wantErr error
	}{
		{
			name:    "valid source",
			source:  &Source{Owner: "user-1", Kind: SourceKindManual},
			wantErr: nil,
		},
		{
			name:    "valid webpage source with url",
			source:  &Source{Owner: "user-1", Kind: SourceKindWebpage, URL: "https://example.com"},
			wantErr: nil,
		},
		{
			name:    "nil source",
			source:  nil,
			wantErr: ErrInvalidSource,
		},
		{
			name:    "empty owner",
			source:  &Source{Owner: "", Kind: SourceKindManual},
			wantErr: ErrEmptyOwner,
		},
		{
			name:    "whitespace owner",
			source:  &Source{Owner: "   ", Kind: SourceKindManual},
			wantErr: ErrEmptyOwner,
		},
		{
			name:    "unknown kind",
			source:  &Source{Owner: "user-1", Kind: "carrier-pigeon"},
			wantErr: ErrInvalidSourceKind,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSource(tt.source)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateSource() unexpected error = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateSource() error = %v, want %v", err, tt.wantErr)
			}
			if !errors.Is(err, ErrInvalidSource) {
				t.Errorf("ValidateSource() error should wrap ErrInvalidSource, got %v", err)
			}
		})
	}
}

func TestValidateRawContent(t *testing.T) {
	tests := []struct {
		name    string
		content *RawContent
		wantErr error
	}{
		{
			name:    "valid content",
			content: &RawContent{Owner: "user-1", SourceId: 1, Text: "hello"},
		},
		{
			name:    "nil content",
			wantErr: ErrInvalidRawContent,
		},
		{
			name:    "empty text",
			content: &RawContent{Owner: "user-1", SourceId: 1, Text: ""},
			wantErr: ErrEmptyContent,
		},
		{
			name:    "whitespace text",
			content: &RawContent{Owner: "user-1", SourceId: 1, Text: " \n\t "},
			wantErr: ErrEmptyContent,
		},
		{
			name:    "missing owner",
			content: &RawContent{SourceId: 1, Text: "hello"},
			wantErr: ErrEmptyOwner,
		},
		{
			name:    "missing source",
			content: &RawContent{Owner: "user-1", Text: "hello"},
			wantErr: ErrMissingReference,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRawContent(tt.content)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateRawContent() unexpected error = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateRawContent() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateQuote(t *testing.T) {
	tests := []struct {
		name    string
		quote   *Quote
		wantErr error
	}{
		{
			name:  "valid quote without offsets",
			quote: &Quote{Owner: "u", RawContentId: 1, Text: "app crashes"},
		},
		{
			name:  "valid quote with offsets",
			quote: &Quote{Owner: "u", RawContentId: 1, Text: "app crashes", StartIndex: intPtr(3), EndIndex: intPtr(14)},
		},
		{
			name:  "equal offsets",
			quote: &Quote{Owner: "u", RawContentId: 1, Text: "x", StartIndex: intPtr(3), EndIndex: intPtr(3)},
		},
		{
			name:    "reversed offsets",
			quote:   &Quote{Owner: "u", RawContentId: 1, Text: "x", StartIndex: intPtr(5), EndIndex: intPtr(2)},
			wantErr: ErrInvalidOffsets,
		},
		{
			name:    "negative start",
			quote:   &Quote{Owner: "u", RawContentId: 1, Text: "x", StartIndex: intPtr(-1)},
			wantErr: ErrInvalidOffsets,
		},
		{
			name:    "missing raw content",
			quote:   &Quote{Owner: "u", Text: "x"},
			wantErr: ErrMissingReference,
		},
		{
			name:    "empty text",
			quote:   &Quote{Owner: "u", RawContentId: 1},
			wantErr: ErrEmptyContent,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateQuote(tt.quote)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateQuote() unexpected error = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateQuote() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateNode(t *testing.T) {
	tests := []struct {
		name    string
		node    *Node
		wantErr error
	}{
		{
			name: "valid pain node",
			node: &Node{Owner: "u", Type: NodeTypePain, Label: "Login crash"},
		},
		{
			name:    "unknown type",
			node:    &Node{Owner: "u", Type: "banana", Label: "x"},
			wantErr: ErrInvalidNodeType,
		},
		{
			name:    "empty label",
			node:    &Node{Owner: "u", Type: NodeTypeTheme, Label: " "},
			wantErr: ErrEmptyLabel,
		},
		{
			name:    "nil node",
			wantErr: ErrInvalidNode,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateNode(tt.node)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateNode() unexpected error = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateNode() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateEdgeAndLink(t *testing.T) {
	if err := ValidateEdge(&Edge{Owner: "u", FromNodeId: 1, ToNodeId: 2}); err != nil {
		t.Errorf("ValidateEdge() unexpected error = %v", err)
	}
	if err := ValidateEdge(&Edge{Owner: "u", FromNodeId: 1}); !errors.Is(err, ErrMissingReference) {
		t.Errorf("ValidateEdge() error = %v, want %v", err, ErrMissingReference)
	}
	if err := ValidateQuoteNodeLink(&QuoteNodeLink{Owner: "u", QuoteId: 1, NodeId: 1}); err != nil {
		t.Errorf("ValidateQuoteNodeLink() unexpected error = %v", err)
	}
	if err := ValidateQuoteNodeLink(&QuoteNodeLink{Owner: "u", NodeId: 1}); !errors.Is(err, ErrMissingReference) {
		t.Errorf("ValidateQuoteNodeLink() error = %v, want %v", err, ErrMissingReference)
	}
	if err := ValidateQuoteNodeLink(&QuoteNodeLink{QuoteId: 1, NodeId: 1}); !errors.Is(err, ErrEmptyOwner) {
		t.Errorf("ValidateQuoteNodeLink() error = %v, want %v", err, ErrEmptyOwner)
	}
}

func TestValidateIdea(t *testing.T) {
	if err := ValidateIdea(&Idea{Owner: "u", Text: "Add SSO", Status: IdeaStatusGenerated}); err != nil {
		t.Errorf("ValidateIdea() unexpected error = %v", err)
	}
	if err := ValidateIdea(&Idea{Owner: "u", Text: "Add SSO", Status: "maybe"}); !errors.Is(err, ErrInvalidIdeaStatus) {
		t.Errorf("ValidateIdea() error = %v, want %v", err, ErrInvalidIdeaStatus)
	}
	if err := ValidateIdea(&Idea{Owner: "u", Status: IdeaStatusApproved}); !errors.Is(err, ErrEmptyContent) {
		t.Errorf("ValidateIdea() error = %v, want %v", err, ErrEmptyContent)
	}
}
