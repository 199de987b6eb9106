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

// Package vectorstore defines the vector database abstraction used by docqa.
//
// A Store holds named indexes. Each index has a fixed vector dimension and a
// similarity metric, and holds records keyed by string id. Upserting a record
// with an existing id overwrites it. Queries return the top-K most similar
// records, ordered by descending score.
//
// # Implementations
//
//   - vectorstore/qdrant: hosted Qdrant collections over gRPC
//   - vectorstore/badger: embedded BadgerDB store with exhaustive search
//   - vectorstore/mock: recording test double
//
// Public constructors return the Store interface:
//
//	store, err := badger.NewStore("/var/lib/docqa")  // returns vectorstore.Store
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer store.Close()
//
//	names, err := store.ListIndexNames(ctx)
//	idx := store.Index("docqa")
//	matches, err := idx.Query(ctx, vector, vectorstore.QueryOptions{TopK: 10})
//
// # Thread Safety
//
// All implementations must be safe for concurrent use.
package vectorstore
