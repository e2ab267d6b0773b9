package store

import "github.com/pgvector/pgvector-go"

// toVector adapts a raw embedding slice to the pgvector column type. A nil
// or empty slice still produces a valid zero-length vector; callers that
// care about dimensionality validate it upstream (gateway, biz package).
func toVector(embedding []float32) pgvector.Vector {
	return pgvector.NewVector(embedding)
}
