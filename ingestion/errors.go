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


package ingestion

import (
	"errors"

	"github.com/poiesic/quarry/ai"
	"github.com/poiesic/quarry/extraction"
)

var (
	// ErrInvalidInput is returned when text or owner is missing.
	ErrInvalidInput = errors.New("invalid input")

	// ErrStorageFailure is returned when the source or content cannot be saved.
	ErrStorageFailure = errors.New("storage failure")

	// ErrStoreRequired is returned when a store is not provided.
	ErrStoreRequired = errors.New("store required")

	// ErrClientRequired is returned when an AI client is not provided.
	ErrClientRequired = errors.New("AI client required")

	// ErrResolverRequired is returned when a credential resolver is not provided.
	ErrResolverRequired = errors.New("credential resolver required")

	// ErrInvalidMaxAttempts is returned when maxAttempts is <= 0.
	ErrInvalidMaxAttempts = errors.New("maxAttempts must be greater than 0")
)

// Error codes reported to callers.
const (
	CodeInvalidInput          = "InvalidInput"
	CodeStorageFailure        = "StorageFailure"
	CodeNoCredentialAvailable = "NoCredentialAvailable"
	CodeCredentialRejected    = "CredentialRejected"
	CodeProviderUnavailable   = "ProviderUnavailable"
	CodeEmptyResponse         = "EmptyResponse"
	CodeMalformedExtraction   = "MalformedExtraction"
	CodeInternalError         = "InternalError"
)

// ErrorCode maps err to its error code. It returns "" for nil and
// CodeInternalError for anything unrecognized.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidInput):
		return CodeInvalidInput
	case errors.Is(err, ai.ErrNoCredentialAvailable):
		return CodeNoCredentialAvailable
	case errors.Is(err, ai.ErrCredentialRejected):
		return CodeCredentialRejected
	case errors.Is(err, ai.ErrProviderUnavailable):
		return CodeProviderUnavailable
	case errors.Is(err, ai.ErrEmptyResponse):
		return CodeEmptyResponse
	case errors.Is(err, extraction.ErrMalformedExtraction):
		return CodeMalformedExtraction
	case errors.Is(err, ErrStorageFailure):
		return CodeStorageFailure
	default:
		return CodeInternalError
	}
}
