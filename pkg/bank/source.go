package bank

import (
	"context"
	"embed"
	"io/fs"
	"os"

	"github.com/pkg/errors"
)

//go:embed data/questions.json
var embedded embed.FS

const embeddedPath = "data/questions.json"

// FileSource lee el banco desde un archivo JSON en disco
type FileSource struct {
	Path string
}

// NewFileSource crea una fuente basada en archivo
func NewFileSource(path string) *FileSource {
	return &FileSource{Path: path}
}

func (s *FileSource) Name() string {
	return "file:" + s.Path
}

func (s *FileSource) Read(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "context ended before reading question bank")
	}
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, errors.Wrapf(ErrDataUnavailable, "file %s not found", s.Path)
		}

		return nil, errors.Wrapf(err, "failed to read %s", s.Path)
	}

	return data, nil
}

// EmbeddedSource banco de preguntas incluido en el binario
type EmbeddedSource struct {
	fsys fs.FS
	path string
}

// NewEmbeddedSource devuelve la fuente con el banco por defecto
func NewEmbeddedSource() *EmbeddedSource {
	return &EmbeddedSource{fsys: embedded, path: embeddedPath}
}

func (s *EmbeddedSource) Name() string {
	return "embedded:" + s.path
}

func (s *EmbeddedSource) Read(context.Context) ([]byte, error) {
	data, err := fs.ReadFile(s.fsys, s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, errors.Wrapf(ErrDataUnavailable, "embedded %s not found", s.path)
		}

		return nil, errors.Wrapf(err, "failed to read embedded %s", s.path)
	}

	return data, nil
}

// DefaultQuestionsJSON devuelve el banco embebido, usado para sembrar Redis
func DefaultQuestionsJSON() ([]byte, error) {
	return NewEmbeddedSource().Read(context.Background())
}
