package analyzer

import (
	"bufio"
	"encoding/gob"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/elodkocsis/tenebra/internal/catalogue"
)

var tokenPattern = regexp.MustCompile(`[a-z0-9]+`)

func tokenize(text string) []string {
	return tokenPattern.FindAllString(strings.ToLower(text), -1)
}

// docVector is one page's sparse TF-IDF weights, persisted form.
type docVector struct {
	URL     string
	Weights map[int]float64
}

// Model is a from-scratch TF-IDF vector space with cosine-similarity
// ranking. The concrete scoring algorithm is deliberately swappable; no
// third-party topic-model library fits this narrowly scoped a job.
type Model struct {
	Vocab map[string]int
	IDF   []float64
	Docs  []docVector

	// indexed and norms hold per-document L2 norms, built by Index and
	// never persisted (unexported fields are not gob-encoded). The manager
	// calls Index after loading a model from disk and after saving a
	// freshly trained one.
	indexed bool
	norms   []float64
}

// Train builds a new Model from a corpus of trainable pages, spreading the
// per-document weight computation across threads worker goroutines once
// the vocabulary and IDF table are known. It returns (nil, nil) for an
// empty corpus, signaling the caller to skip the swap entirely rather than
// install an empty model.
func Train(pages []catalogue.Page, threads int) (*Model, error) {
	if len(pages) == 0 {
		return nil, nil
	}
	if threads < 1 {
		threads = 1
	}

	vocab := make(map[string]int)
	docTokens := make([][]string, len(pages))
	df := make(map[string]int)

	for i, p := range pages {
		text := p.Title()
		if p.PageContent != nil {
			text += " " + *p.PageContent
		}
		tokens := tokenize(text)
		docTokens[i] = tokens

		seen := make(map[string]struct{}, len(tokens))
		for _, tok := range tokens {
			if _, ok := vocab[tok]; !ok {
				vocab[tok] = len(vocab)
			}
			seen[tok] = struct{}{}
		}
		for tok := range seen {
			df[tok]++
		}
	}

	n := float64(len(pages))
	idf := make([]float64, len(vocab))
	for term, idx := range vocab {
		idf[idx] = math.Log((n+1)/(float64(df[term])+1)) + 1
	}

	docs := make([]docVector, len(pages))
	indices := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < threads; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indices {
				counts := make(map[int]int)
				for _, tok := range docTokens[i] {
					counts[vocab[tok]]++
				}
				weights := make(map[int]float64, len(counts))
				for idx, count := range counts {
					tf := float64(count) / float64(len(docTokens[i]))
					weights[idx] = tf * idf[idx]
				}
				docs[i] = docVector{URL: pages[i].URL, Weights: weights}
			}
		}()
	}
	for i := range pages {
		indices <- i
	}
	close(indices)
	wg.Wait()

	return &Model{Vocab: vocab, IDF: idf, Docs: docs}, nil
}

// Index builds the in-memory nearest-neighbor structure a freshly
// loaded or trained model needs before it can serve queries. It must
// run after Save, mirroring an external ANN library whose index can't
// be reconstructed from the same serialized bytes as the vectors.
func (m *Model) Index() {
	norms := make([]float64, len(m.Docs))
	for i, d := range m.Docs {
		var sumSq float64
		for _, w := range d.Weights {
			sumSq += w * w
		}
		norms[i] = math.Sqrt(sumSq)
	}
	m.norms = norms
	m.indexed = true
}

// Query returns the top-n document URLs ranked by cosine similarity to
// query, most similar first. n must already be clamped by the caller.
func (m *Model) Query(query string, n int) []string {
	qWeights := make(map[int]float64)
	for _, tok := range tokenize(query) {
		idx, ok := m.Vocab[tok]
		if !ok {
			continue
		}
		qWeights[idx] += m.IDF[idx]
	}

	var qNorm float64
	for _, w := range qWeights {
		qNorm += w * w
	}
	qNorm = math.Sqrt(qNorm)
	if qNorm == 0 {
		return nil
	}

	type scored struct {
		url   string
		score float64
	}
	scores := make([]scored, 0, len(m.Docs))
	for i, d := range m.Docs {
		if m.indexed && m.norms[i] == 0 {
			continue
		}
		var dot float64
		for idx, w := range qWeights {
			dot += w * d.Weights[idx]
		}
		if dot == 0 {
			continue
		}
		docNorm := m.docNorm(i, d)
		if docNorm == 0 {
			continue
		}
		scores = append(scores, scored{url: d.URL, score: dot / (qNorm * docNorm)})
	}

	sort.Slice(scores, func(i, j int) bool { return scores[i].score > scores[j].score })

	if n > len(scores) {
		n = len(scores)
	}
	urls := make([]string, n)
	for i := 0; i < n; i++ {
		urls[i] = scores[i].url
	}
	return urls
}

func (m *Model) docNorm(i int, d docVector) float64 {
	if m.indexed {
		return m.norms[i]
	}
	var sumSq float64
	for _, w := range d.Weights {
		sumSq += w * w
	}
	return math.Sqrt(sumSq)
}

// Save persists the model's vectors to dir/file, creating dir if needed.
// The in-memory index is intentionally not part of the encoded gob.
func Save(m *Model, dir, file string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating model directory: %w", err)
	}

	f, err := os.Create(filepath.Join(dir, file))
	if err != nil {
		return fmt.Errorf("creating model file: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if err := gob.NewEncoder(w).Encode(m); err != nil {
		return fmt.Errorf("encoding model: %w", err)
	}
	return w.Flush()
}

// Load reads a model previously written by Save. The returned Model is
// not indexed; callers must call Index before serving queries.
func Load(dir, file string) (*Model, error) {
	f, err := os.Open(filepath.Join(dir, file))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var m Model
	if err := gob.NewDecoder(bufio.NewReader(f)).Decode(&m); err != nil {
		return nil, fmt.Errorf("decoding model: %w", err)
	}
	return &m, nil
}
