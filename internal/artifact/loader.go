package artifact

import (
	"sync"

	"go.uber.org/zap"
)

// Loader loads one artifact file at most once. The first Get reads the file;
// every later Get returns the same artifact, or the same error, without
// touching the file again.
type Loader struct {
	path string
	once sync.Once
	art  *Artifact
	err  error
}

// NewLoader returns a Loader for the artifact at path.
func NewLoader(path string) *Loader {
	return &Loader{path: path}
}

// Path is the file the loader reads.
func (l *Loader) Path() string { return l.path }

// Get returns the loaded artifact. A failure is a *LoadError and is final;
// there is no retry.
func (l *Loader) Get() (*Artifact, error) {
	l.once.Do(func() {
		l.art, l.err = Load(l.path)
		if l.err != nil {
			zap.L().Error("artifact: load failed", zap.String("path", l.path), zap.Error(l.err))
			return
		}
		zap.L().Info("artifact: loaded",
			zap.String("name", l.art.Name()),
			zap.String("classifier", l.art.Classifier().Type()),
			zap.Int("features", l.art.Vectorizer().Len()),
			zap.String("sha256", l.art.Checksum()),
		)
	})
	return l.art, l.err
}
