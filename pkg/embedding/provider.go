package embedding

// Task types passed to providers that distinguish document and query
// embeddings. Providers without task-type support ignore them.
const (
	TaskDocument = "RETRIEVAL_DOCUMENT"
	TaskQuery    = "RETRIEVAL_QUERY"
)

// EmbeddingProvider defines the interface for generating text embeddings
type EmbeddingProvider interface {
	Generate(text string, taskType string) (*EmbeddingResponse, error)
}

// Vector holds the embedding values. The json shape mirrors the Gemini
// embedContent response so that provider can decode into it directly.
type Vector struct {
	Values []float32 `json:"values"`
}

type EmbeddingResponse struct {
	Embedding Vector `json:"embedding"`
}
