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


// Package materialize turns one parsed extraction into durable graph rows.
//
// A run inserts four batches in order: quotes, nodes, edges, then
// quote-node links. Quotes and nodes are keyed by their extraction-local id,
// or by array index when the model gave none; an explicit id always wins
// over an index (see IDMap). Edges and links are resolved through those keys
// before they are written. References that do
// not resolve are dropped and counted rather than failing the run.
//
// By default each batch is attempted independently, so a failing batch is
// recorded in its PhaseResult and the later batches still run. WithAtomic
// wraps all four batches in one storage transaction instead: either every
// row is written or none are.
package materialize
