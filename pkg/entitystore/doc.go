// Package entitystore abstracts the entity/graph persistence layer the
// delivery engine reads recipients from and writes receipts to.
//
// The engine only needs a narrow key-value/document surface: get and update
// entities by reference, query an entity's collection with an equality
// filter and cursor-based paging, and read or patch individual properties.
// Store is that surface. MemoryStore implements it for tests and local
// development; MongoStore persists entities and collection membership edges
// in MongoDB.
//
// Collection queries are paged: a non-empty Page.Cursor means more results
// exist and can be fetched by passing the cursor back in the next Query.
// This is what lets the fan-out engine suspend a huge recipient expansion
// and resume it later from a background job.
package entitystore
