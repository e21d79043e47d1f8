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


// Package extraction turns raw text into an analysis prompt and decodes the
// model's JSON reply into a validated Result.
//
// The identifiers inside a Result (quote ids, node ids) are local to one model
// response. They are never storage identifiers; the materialize package
// resolves them into durable ids.
//
// Parse is a pure function: identical input yields an identical Result or an
// identical error. Any reply that does not conform to the declared shape is
// rejected with ErrMalformedExtraction.
package extraction
