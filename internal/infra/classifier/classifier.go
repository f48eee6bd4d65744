// Package classifier implements the help-post content classifier: a
// multinomial naive Bayes model over stopword-filtered tokens, trained by
// `streakd train` and persisted to SQLite. The Guard decorator adds a
// circuit breaker and a verdict cache in front of inference.
package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/streakforge/streakd/internal/domain"
	"github.com/streakforge/streakd/internal/infra/metrics"
	"github.com/streakforge/streakd/internal/infra/sqlite"
)

// Model is a trained multinomial naive Bayes text classifier.
// Class 1 is "good" (substantive help content), class 0 is "bad".
type Model struct {
	ID        string         `json:"id"`
	Version   string         `json:"version"`
	TrainedAt time.Time      `json:"trained_at"`
	GoodDocs  int            `json:"good_docs"`
	BadDocs   int            `json:"bad_docs"`
	GoodToks  map[string]int `json:"good_tokens"`
	BadToks   map[string]int `json:"bad_tokens"`
	GoodTotal int            `json:"good_total"`
	BadTotal  int            `json:"bad_total"`
	Vocab     int            `json:"vocab"`
}

// Encode serializes the model for blob storage.
func (m *Model) Encode() ([]byte, error) {
	return json.Marshal(m)
}

// DecodeModel deserializes a stored model blob.
func DecodeModel(blob []byte) (*Model, error) {
	var m Model
	if err := json.Unmarshal(blob, &m); err != nil {
		return nil, fmt.Errorf("decode classifier model: %w", err)
	}
	if m.Vocab == 0 || m.GoodDocs+m.BadDocs == 0 {
		return nil, fmt.Errorf("decode classifier model: empty model")
	}
	return &m, nil
}

// probGood returns P(good | tokens) using Laplace-smoothed token likelihoods.
func (m *Model) probGood(tokens []string) float64 {
	total := float64(m.GoodDocs + m.BadDocs)
	logGood := math.Log(float64(m.GoodDocs) / total)
	logBad := math.Log(float64(m.BadDocs) / total)

	for _, tok := range tokens {
		logGood += math.Log(float64(m.GoodToks[tok]+1) / float64(m.GoodTotal+m.Vocab))
		logBad += math.Log(float64(m.BadToks[tok]+1) / float64(m.BadTotal+m.Vocab))
	}
	// Logistic of the log-odds keeps the result in (0, 1) without overflow.
	return 1 / (1 + math.Exp(logBad-logGood))
}

// ─── Preprocessing ──────────────────────────────────────────────────────────

// nonToken strips everything except word characters, whitespace, and the
// punctuation that carries signal in code snippets.
var nonToken = regexp.MustCompile(`[^\w\s.()+\-*/=<>%]`)

// Preprocess lowercases, strips noise punctuation, and drops English
// stopwords. Training and inference must share this exact pipeline.
func Preprocess(text string) []string {
	text = nonToken.ReplaceAllString(strings.ToLower(text), "")
	fields := strings.Fields(text)
	out := fields[:0]
	for _, w := range fields {
		if !stopwords[w] {
			out = append(out, w)
		}
	}
	return out
}

// ─── Classifier ─────────────────────────────────────────────────────────────

// Classifier serves verdicts from the currently loaded model.
// Safe for concurrent use; the model can be swapped at runtime.
type Classifier struct {
	mu    sync.RWMutex
	model *Model
}

// New creates an empty classifier. Until a model is set, every call
// reports ErrClassifierUnavailable.
func New() *Classifier {
	return &Classifier{}
}

// SetModel installs a model.
func (c *Classifier) SetModel(m *Model) {
	c.mu.Lock()
	c.model = m
	c.mu.Unlock()
}

// LoadFromStore installs the newest persisted model for a version.
func (c *Classifier) LoadFromStore(db *sqlite.DB, version string) error {
	_, blob, err := db.LatestClassifierModel(version)
	if err != nil {
		return err
	}
	m, err := DecodeModel(blob)
	if err != nil {
		return err
	}
	c.SetModel(m)
	return nil
}

// Ready reports whether a model is loaded.
func (c *Classifier) Ready() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.model != nil
}

// ValidateContent classifies free text. Idempotent and side-effect-free.
// A missing model is ErrClassifierUnavailable; text that is empty after
// preprocessing is a negative verdict, not an error.
func (c *Classifier) ValidateContent(ctx context.Context, text string) (domain.ClassifierVerdict, error) {
	c.mu.RLock()
	m := c.model
	c.mu.RUnlock()
	if m == nil {
		return domain.ClassifierVerdict{}, fmt.Errorf("%w: no model loaded", domain.ErrClassifierUnavailable)
	}
	if err := ctx.Err(); err != nil {
		return domain.ClassifierVerdict{}, fmt.Errorf("%w: %v", domain.ErrClassifierUnavailable, err)
	}

	start := time.Now()
	defer func() { metrics.ClassifierLatency.Observe(time.Since(start).Seconds()) }()

	tokens := Preprocess(text)
	if len(tokens) == 0 {
		return domain.ClassifierVerdict{
			IsGood: false,
			Reason: "content is empty or contains only stopwords and punctuation",
		}, nil
	}

	p := m.probGood(tokens)
	verdict := domain.ClassifierVerdict{Confidence: &p}
	if p >= 0.5 {
		verdict.IsGood = true
		verdict.Reason = fmt.Sprintf("content classified as valid (p_good=%.2f)", p)
	} else {
		verdict.Reason = fmt.Sprintf("content classified as low quality or irrelevant (p_good=%.2f)", p)
	}
	return verdict, nil
}
