// Package id provides unique ID generation: UUID v4 (random), Snowflake
// (time-based, sortable, node-partitioned), and ULID (lexicographically
// sortable with embedded millisecond timestamp).
//
//	uuid := id.NewUUID()
//	ulid := id.NewULID()
//	sf := id.NewSnowflake()
//
//	gen, err := id.NewSnowflakeGenerator(id.WithNodeID(3))
package id
