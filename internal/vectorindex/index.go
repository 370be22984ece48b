// Package vectorindex provides nearest-neighbor search over pre-embedded
// knowledge documents. The index is built offline; at runtime it is loaded
// once and is read-only, so Search is safe for concurrent callers.
package vectorindex

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"os"
	"sort"
)

// Metric selects the distance function. It must match the metric used when
// the vectors were built.
type Metric int

const (
	// MetricCosine uses cosine distance (1 - cosine similarity).
	MetricCosine Metric = iota
	// MetricL2 uses squared Euclidean distance.
	MetricL2
)

// Result is one search hit: the document's index position and its distance
// from the query (smaller is closer).
type Result struct {
	Index    int
	Distance float64
}

// Index holds pre-embedded document vectors and their source texts.
// A zero-document Index is valid: Search returns no results.
type Index struct {
	metric    Metric
	dimension int
	vectors   [][]float32
	documents []string
}

// New builds an index from vectors and their corresponding documents.
func New(vectors [][]float32, documents []string, metric Metric) (*Index, error) {
	if len(vectors) != len(documents) {
		return nil, fmt.Errorf("vector/document count mismatch: %d != %d", len(vectors), len(documents))
	}

	dim := 0
	for i, v := range vectors {
		if dim == 0 {
			dim = len(v)
		}
		if len(v) != dim {
			return nil, fmt.Errorf("vector %d dimension mismatch: got %d, want %d", i, len(v), dim)
		}
	}

	return &Index{
		metric:    metric,
		dimension: dim,
		vectors:   vectors,
		documents: documents,
	}, nil
}

// Load reads a pre-built index from disk: a JSON array of float vectors and a
// JSON array of document strings. Missing files are not an error — retrieval
// is an optional enhancement, so Load returns an empty index and logs a
// warning instead of failing.
func Load(vectorsPath, documentsPath string, metric Metric, logger *slog.Logger) (*Index, error) {
	if logger == nil {
		logger = slog.Default()
	}

	vectorsData, err := os.ReadFile(vectorsPath)
	if os.IsNotExist(err) {
		logger.Warn("vector index not found, symptom retrieval disabled", "path", vectorsPath)
		return &Index{metric: metric}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read vectors: %w", err)
	}

	documentsData, err := os.ReadFile(documentsPath)
	if os.IsNotExist(err) {
		logger.Warn("index documents not found, symptom retrieval disabled", "path", documentsPath)
		return &Index{metric: metric}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read documents: %w", err)
	}

	var vectors [][]float32
	if err := json.Unmarshal(vectorsData, &vectors); err != nil {
		return nil, fmt.Errorf("decode vectors: %w", err)
	}
	var documents []string
	if err := json.Unmarshal(documentsData, &documents); err != nil {
		return nil, fmt.Errorf("decode documents: %w", err)
	}

	ix, err := New(vectors, documents, metric)
	if err != nil {
		return nil, err
	}
	logger.Info("vector index loaded", "documents", len(documents), "dimension", ix.dimension)
	return ix, nil
}

// Len returns the number of indexed documents.
func (ix *Index) Len() int {
	return len(ix.vectors)
}

// Dimension returns the vector dimension, or 0 for an empty index.
func (ix *Index) Dimension() int {
	return ix.dimension
}

// Document returns the text at index position i.
func (ix *Index) Document(i int) (string, bool) {
	if i < 0 || i >= len(ix.documents) {
		return "", false
	}
	return ix.documents[i], true
}

// Search returns up to k nearest documents ordered by ascending distance.
// An empty index or query yields no results. Vectors whose dimension does not
// match the query are skipped.
func (ix *Index) Search(query []float32, k int) []Result {
	if len(ix.vectors) == 0 || len(query) == 0 || k <= 0 {
		return nil
	}

	results := make([]Result, 0, len(ix.vectors))
	for i, v := range ix.vectors {
		if len(v) != len(query) {
			continue
		}
		results = append(results, Result{Index: i, Distance: ix.distance(query, v)})
	}
	if len(results) == 0 {
		return nil
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Distance < results[j].Distance })
	if len(results) > k {
		results = results[:k]
	}
	return results
}

func (ix *Index) distance(a, b []float32) float64 {
	switch ix.metric {
	case MetricL2:
		var sum float64
		for i := range a {
			d := float64(a[i]) - float64(b[i])
			sum += d * d
		}
		return sum
	default:
		return 1 - cosineSimilarity(a, b)
	}
}

func cosineSimilarity(a, b []float32) float64 {
	var dot, magA, magB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		magA += float64(a[i]) * float64(a[i])
		magB += float64(b[i]) * float64(b[i])
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}
