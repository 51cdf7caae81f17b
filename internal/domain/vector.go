package domain

import (
	"strconv"
	"strings"
)

// DefaultVectorDimension is the embedding width of the canonical deployment
// (text-embedding-v4 at 2048 dimensions). The codec is configurable so tests
// and alternate models can use smaller vectors.
const DefaultVectorDimension = 2048

// VectorCodec encodes fixed-dimension float vectors to and from the storage
// engine's textual vector literal, validating dimensionality on both sides.
type VectorCodec struct {
	dimension int
}

// NewVectorCodec creates a codec for the given dimension. Non-positive
// dimensions fall back to DefaultVectorDimension.
func NewVectorCodec(dimension int) VectorCodec {
	if dimension <= 0 {
		dimension = DefaultVectorDimension
	}
	return VectorCodec{dimension: dimension}
}

// Dimension returns the expected vector length.
func (c VectorCodec) Dimension() int {
	return c.dimension
}

// Validate checks a vector's length against the configured dimension.
func (c VectorCodec) Validate(vector []float32) error {
	if len(vector) != c.dimension {
		return NewDimensionMismatchError(len(vector), c.dimension)
	}
	return nil
}

// Encode renders a vector as the bracket-delimited comma-separated literal the
// storage engine accepts, e.g. "[0.1,0.2,0.3]". Fails on dimension mismatch.
func (c VectorCodec) Encode(vector []float32) (string, error) {
	if err := c.Validate(vector); err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteByte('[')
	for i, v := range vector {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(v), 'f', -1, 32))
	}
	b.WriteByte(']')
	return b.String(), nil
}

// Decode is the inverse of Encode, used when the storage layer returns
// embeddings as text rather than a typed vector.
func (c VectorCodec) Decode(literal string) ([]float32, error) {
	trimmed := strings.TrimSpace(literal)
	if len(trimmed) < 2 || trimmed[0] != '[' || trimmed[len(trimmed)-1] != ']' {
		return nil, NewDomainError(ErrCodeValidation, "vector literal must be bracket-delimited")
	}

	inner := trimmed[1 : len(trimmed)-1]
	if strings.TrimSpace(inner) == "" {
		return nil, NewDimensionMismatchError(0, c.dimension)
	}

	parts := strings.Split(inner, ",")
	if len(parts) != c.dimension {
		return nil, NewDimensionMismatchError(len(parts), c.dimension)
	}

	vector := make([]float32, len(parts))
	for i, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 32)
		if err != nil {
			return nil, NewDomainErrorWithCause(ErrCodeValidation, "invalid vector component", err)
		}
		vector[i] = float32(v)
	}
	return vector, nil
}
