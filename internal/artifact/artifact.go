// Package artifact loads the trained churn model: a dictionary vectorizer
// paired with a binary classifier, serialized together in one file.
package artifact

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadError is the fatal error returned when an artifact file is missing,
// unreadable, or does not decode into a vectorizer and classifier.
type LoadError struct {
	Path   string
	Reason string
	Err    error
}

func (e *LoadError) Error() string {
	msg := fmt.Sprintf("artifact: load %s: %s", e.Path, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *LoadError) Unwrap() error { return e.Err }

// Artifact is a loaded model. It is immutable and safe to share between
// goroutines.
type Artifact struct {
	name       string
	path       string
	checksum   string
	vectorizer *Vectorizer
	classifier Classifier
}

// Name is the artifact's self-declared name, or the file's base name.
func (a *Artifact) Name() string { return a.name }

// Path is the file the artifact was loaded from.
func (a *Artifact) Path() string { return a.path }

// Checksum is the hex SHA-256 of the raw file. It is informational only.
func (a *Artifact) Checksum() string { return a.checksum }

// Vectorizer returns the feature encoder.
func (a *Artifact) Vectorizer() *Vectorizer { return a.vectorizer }

// Classifier returns the trained classifier.
func (a *Artifact) Classifier() Classifier { return a.classifier }

// Info summarizes an artifact for display.
type Info struct {
	Name           string   `json:"name"`
	Path           string   `json:"path"`
	Checksum       string   `json:"checksum"`
	ClassifierType string   `json:"classifier_type"`
	FeatureNames   []string `json:"feature_names"`
}

// Info returns a display summary of the artifact.
func (a *Artifact) Info() Info {
	return Info{
		Name:           a.name,
		Path:           a.path,
		Checksum:       a.checksum,
		ClassifierType: a.classifier.Type(),
		FeatureNames:   a.vectorizer.FeatureNames(),
	}
}

// document is the serialized form of an artifact.
type document struct {
	Name       string         `json:"name" yaml:"name"`
	Vectorizer *vectorizerDoc `json:"vectorizer" yaml:"vectorizer"`
	Classifier *classifierDoc `json:"classifier" yaml:"classifier"`
}

type vectorizerDoc struct {
	FeatureNames []string `json:"feature_names" yaml:"feature_names"`
	Separator    string   `json:"separator" yaml:"separator"`
}

type classifierDoc struct {
	Type      string     `json:"type" yaml:"type"`
	Coef      []float64  `json:"coef,omitempty" yaml:"coef,omitempty"`
	Intercept float64    `json:"intercept,omitempty" yaml:"intercept,omitempty"`
	Nodes     []TreeNode `json:"nodes,omitempty" yaml:"nodes,omitempty"`
}

// Load reads and decodes the artifact at path. The format is chosen by
// extension: .yaml and .yml are YAML, anything else is JSON.
func Load(path string) (*Artifact, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Path: path, Reason: "read file", Err: err}
	}

	var doc document
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(raw, &doc); err != nil {
			return nil, &LoadError{Path: path, Reason: "decode yaml", Err: err}
		}
	default:
		dec := json.NewDecoder(bytes.NewReader(raw))
		if err := dec.Decode(&doc); err != nil {
			return nil, &LoadError{Path: path, Reason: "decode json", Err: err}
		}
		if err := dec.Decode(&struct{}{}); err != io.EOF {
			return nil, &LoadError{Path: path, Reason: "trailing data after json document", Err: err}
		}
	}

	art, reason := build(doc)
	if reason != "" {
		return nil, &LoadError{Path: path, Reason: reason}
	}

	sum := sha256.Sum256(raw)
	art.path = path
	art.checksum = hex.EncodeToString(sum[:])
	if art.name == "" {
		art.name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return art, nil
}

// build checks the decoded document's shape. It returns a non-empty reason
// when the document is not a usable vectorizer/classifier pair.
func build(doc document) (*Artifact, string) {
	if doc.Vectorizer == nil {
		return nil, "missing vectorizer"
	}
	if doc.Classifier == nil {
		return nil, "missing classifier"
	}

	vec, reason := newVectorizer(doc.Vectorizer.FeatureNames, doc.Vectorizer.Separator)
	if reason != "" {
		return nil, reason
	}
	n := len(doc.Vectorizer.FeatureNames)

	var clf Classifier
	switch doc.Classifier.Type {
	case TypeLogisticRegression:
		if len(doc.Classifier.Coef) != n {
			return nil, fmt.Sprintf("classifier has %d coefficients, vectorizer has %d features", len(doc.Classifier.Coef), n)
		}
		for i, c := range doc.Classifier.Coef {
			if math.IsNaN(c) || math.IsInf(c, 0) {
				return nil, fmt.Sprintf("coefficient %d is not finite", i)
			}
		}
		if math.IsNaN(doc.Classifier.Intercept) || math.IsInf(doc.Classifier.Intercept, 0) {
			return nil, "intercept is not finite"
		}
		clf = newLogisticRegression(doc.Classifier.Coef, doc.Classifier.Intercept)
	case TypeDecisionTree:
		tree, reason := newDecisionTree(doc.Classifier.Nodes, n)
		if reason != "" {
			return nil, reason
		}
		clf = tree
	case "":
		return nil, "classifier type is empty"
	default:
		return nil, fmt.Sprintf("unsupported classifier type %q", doc.Classifier.Type)
	}

	return &Artifact{
		name:       doc.Name,
		vectorizer: vec,
		classifier: clf,
	}, ""
}
