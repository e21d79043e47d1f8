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


// Package storage provides the storage abstraction layer for quarry.
//
// This package defines repository interfaces that decouple storage implementation
// from the ingestion pipeline. Two backends implement them: storage/badger
// (embedded key-value store, the default) and storage/sqlite (the relational
// seven-table layout).
//
// # Constructor Return Type Pattern
//
// Public constructors return the storage.Store interface:
//
//	store, err := badger.NewStore(path)   // returns storage.Store
//	store, err := sqlite.NewStore(path)   // returns storage.Store
//
// Internal package constructors (newStore, newSubmissionRepository, etc.) may
// return concrete types since they're only used within the implementation package.
//
// # Architecture
//
//   - SubmissionRepository: sources and raw content, including the processed stamp
//   - GraphRepository: quotes, nodes, edges and quote-node links
//   - IdeaRepository: ideas derived from nodes or quotes
//   - Store: all of the above plus transactions
//
// # Owner Scoping
//
// Every record carries an owner. Reads take the owner explicitly and never
// return another owner's rows. Writes reject references (a raw content's
// source, an edge's endpoints, a link's quote and node) that do not exist
// under the same owner, with ErrInvalidReference.
//
// # Transactions
//
// WithTransaction places the backend transaction in the context passed to fn.
// Repository calls made with that context join the transaction; calls made
// with any other context run in their own transaction. Each Add* call is
// atomic on its own: either every record in the batch is stored or none is.
//
// # Thread Safety
//
// All repository implementations must be thread-safe and support
// concurrent access from multiple goroutines.
package storage
