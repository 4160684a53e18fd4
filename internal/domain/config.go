package domain

// VectorConfig holds entry-node vectorization settings.
type VectorConfig struct {
	Model          string
	Dimensions     int
	DistanceMetric string
	// QueryInstruction is prepended to entity text before embedding; empty for symmetric models.
	QueryInstruction string
}

// DefaultVectorConfig matches the model the entry-node indexes are built with.
func DefaultVectorConfig() VectorConfig {
	return VectorConfig{
		Model:          "bge-base-zh-v1.5",
		Dimensions:     768,
		DistanceMetric: "cosine",
	}
}

// Retrieval defaults.
const (
	DefaultTopK                 = 10
	DefaultEffectiveSearchRatio = 2
)
