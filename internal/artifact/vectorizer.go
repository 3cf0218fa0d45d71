package artifact

import (
	"fmt"

	"github.com/rotisserie/eris"
)

// DefaultSeparator joins a categorical key and its value into a column name.
const DefaultSeparator = "="

// Vectorizer one-hot encodes string values and passes numbers through,
// following a fixed vocabulary of column names. Keys or categories that are
// not in the vocabulary are dropped, which encodes them as zeros.
type Vectorizer struct {
	names     []string
	separator string
	index     map[string]int
}

func newVectorizer(names []string, separator string) (*Vectorizer, string) {
	if len(names) == 0 {
		return nil, "vectorizer has no feature names"
	}
	if separator == "" {
		separator = DefaultSeparator
	}
	index := make(map[string]int, len(names))
	for i, name := range names {
		if name == "" {
			return nil, fmt.Sprintf("feature name %d is empty", i)
		}
		if _, dup := index[name]; dup {
			return nil, fmt.Sprintf("duplicate feature name %q", name)
		}
		index[name] = i
	}
	return &Vectorizer{
		names:     append([]string(nil), names...),
		separator: separator,
		index:     index,
	}, ""
}

// FeatureNames returns a copy of the column names in matrix order.
func (v *Vectorizer) FeatureNames() []string {
	return append([]string(nil), v.names...)
}

// Len is the width of a transformed row.
func (v *Vectorizer) Len() int { return len(v.names) }

// Transform encodes one record into a row of the feature matrix.
func (v *Vectorizer) Transform(features map[string]any) ([]float64, error) {
	row := make([]float64, len(v.names))
	for key, value := range features {
		column, x, err := v.encode(key, value)
		if err != nil {
			return nil, err
		}
		if i, ok := v.index[column]; ok {
			row[i] = x
		}
	}
	return row, nil
}

func (v *Vectorizer) encode(key string, value any) (string, float64, error) {
	switch x := value.(type) {
	case string:
		return key + v.separator + x, 1, nil
	case float64:
		return key, x, nil
	case float32:
		return key, float64(x), nil
	case int:
		return key, float64(x), nil
	case int64:
		return key, float64(x), nil
	case bool:
		if x {
			return key, 1, nil
		}
		return key, 0, nil
	}
	return "", 0, eris.Errorf("artifact: feature %q has unsupported type %T", key, value)
}
