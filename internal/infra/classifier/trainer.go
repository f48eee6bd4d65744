package classifier

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
)

// Sample is one labeled training document. Label 1 is good content.
type Sample struct {
	Text  string `json:"text"`
	Label int    `json:"label"`
}

// Report summarizes a training run.
type Report struct {
	Samples  int
	Holdout  int
	Accuracy float64
}

// LoadSamples reads a JSONL corpus of {"text": ..., "label": 0|1} lines.
func LoadSamples(path string) ([]Sample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open training data: %w", err)
	}
	defer f.Close()

	var samples []Sample
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 1024*1024), 1024*1024)
	line := 0
	for sc.Scan() {
		line++
		raw := sc.Bytes()
		if len(raw) == 0 {
			continue
		}
		var s Sample
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("training data line %d: %w", line, err)
		}
		if s.Label != 0 && s.Label != 1 {
			return nil, fmt.Errorf("training data line %d: label must be 0 or 1, got %d", line, s.Label)
		}
		samples = append(samples, s)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read training data: %w", err)
	}
	return samples, nil
}

// Train fits a naive Bayes model on the corpus and evaluates it on a
// deterministic 20% holdout (every fifth sample), so repeated runs over
// the same corpus report the same accuracy.
func Train(samples []Sample, version string) (*Model, Report, error) {
	if len(samples) < 10 {
		return nil, Report{}, fmt.Errorf("need at least 10 samples, got %d", len(samples))
	}

	var train, holdout []Sample
	for i, s := range samples {
		if i%5 == 4 {
			holdout = append(holdout, s)
		} else {
			train = append(train, s)
		}
	}

	m := &Model{
		ID:        uuid.NewString(),
		Version:   version,
		TrainedAt: time.Now().UTC(),
		GoodToks:  make(map[string]int),
		BadToks:   make(map[string]int),
	}

	vocab := make(map[string]bool)
	for _, s := range train {
		tokens := Preprocess(s.Text)
		if len(tokens) == 0 {
			continue
		}
		if s.Label == 1 {
			m.GoodDocs++
			for _, tok := range tokens {
				m.GoodToks[tok]++
				m.GoodTotal++
				vocab[tok] = true
			}
		} else {
			m.BadDocs++
			for _, tok := range tokens {
				m.BadToks[tok]++
				m.BadTotal++
				vocab[tok] = true
			}
		}
	}
	m.Vocab = len(vocab)

	if m.GoodDocs == 0 || m.BadDocs == 0 {
		return nil, Report{}, fmt.Errorf("training corpus needs both classes (good=%d bad=%d)", m.GoodDocs, m.BadDocs)
	}

	correct := 0
	for _, s := range holdout {
		tokens := Preprocess(s.Text)
		if len(tokens) == 0 {
			// The runtime path rejects empty-after-preprocessing content.
			if s.Label == 0 {
				correct++
			}
			continue
		}
		predicted := 0
		if m.probGood(tokens) >= 0.5 {
			predicted = 1
		}
		if predicted == s.Label {
			correct++
		}
	}

	rep := Report{Samples: len(samples), Holdout: len(holdout)}
	if len(holdout) > 0 {
		rep.Accuracy = float64(correct) / float64(len(holdout))
	}
	return m, rep, nil
}
