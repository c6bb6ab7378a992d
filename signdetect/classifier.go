package signdetect

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
)

var defaultLabels = []string{
	"hello", "thank_you", "yes", "no", "please",
	"sorry", "help", "love", "family", "friend",
}

// LabelClassifier stands in for a trained model: it hashes the upload and
// maps the hash onto a fixed label set, so the same bytes always give the
// same answer.
type LabelClassifier struct {
	labels []string
	kind   Kind
}

func NewLabelClassifier(kind Kind, labels []string) *LabelClassifier {
	if len(labels) == 0 {
		labels = defaultLabels
	}
	return &LabelClassifier{labels: labels, kind: kind}
}

// LoadLabels reads a JSON array of label names. An empty path yields the
// built-in set.
func LoadLabels(kind Kind, path string) (*LabelClassifier, error) {
	if path == "" {
		return NewLabelClassifier(kind, nil), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read labels: %w", err)
	}
	var labels []string
	if err := json.Unmarshal(data, &labels); err != nil {
		return nil, fmt.Errorf("parse labels %s: %w", path, err)
	}
	if len(labels) == 0 {
		return nil, fmt.Errorf("labels %s: empty label list", path)
	}
	return NewLabelClassifier(kind, labels), nil
}

func (c *LabelClassifier) Labels() []string {
	return append([]string(nil), c.labels...)
}

func (c *LabelClassifier) Classify(data []byte) (Result, error) {
	if len(data) == 0 {
		return Result{}, errors.New("empty upload")
	}
	if c.kind == Image {
		if _, _, err := image.DecodeConfig(bytes.NewReader(data)); err != nil {
			return Result{}, fmt.Errorf("cannot decode image: %w", err)
		}
	}
	h := fnv.New64a()
	h.Write(data)
	sum := h.Sum64()
	idx := int(sum % uint64(len(c.labels)))
	conf := 0.5 + float64((sum>>32)%5000)/10000
	return Result{Label: c.labels[idx], Confidence: conf}, nil
}
