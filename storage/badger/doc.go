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


// Package badger implements storage.Store on an embedded BadgerDB.
//
// Every record key starts with its kind and owner, so listing an owner's
// rows is a prefix scan and rows of different owners never share a prefix.
// IDs come from one BadgerDB sequence per record kind. Values are JSON.
package badger
