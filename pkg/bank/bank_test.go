package bank

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testBank = `[
	{"id": "q1", "category": "Swift", "baseDifficulty": "Easy", "targetLevel": "Easy",
	 "questionText": "let or var?", "options": ["let", "var"], "correctAnswerIndex": 0, "explanation": "let is constant"},
	{"id": "q2", "category": "Algorithm", "targetLevel": "Hard",
	 "questionText": "Fastest worst-case sort?", "options": ["Bubble", "Merge", "Insertion"], "correctAnswerIndex": 1},
	{"id": "q3", "category": "OS",
	 "questionText": "What is a page?", "options": ["Block of memory", "A thread"], "correctAnswerIndex": 0}
]`

type countingSource struct {
	data  []byte
	err   error
	reads atomic.Int32
	delay time.Duration
}

func (*countingSource) Name() string { return "counting" }

func (s *countingSource) Read(context.Context) ([]byte, error) {
	s.reads.Add(1)
	if s.delay > 0 {
		time.Sleep(s.delay)
	}

	return s.data, s.err
}

func TestDecode(t *testing.T) {
	t.Parallel()

	questions, err := Decode([]byte(testBank))
	require.NoError(t, err)
	require.Len(t, questions, 3)
	require.Equal(t, "q2", questions[1].ID)
	require.Equal(t, []string{"Bubble", "Merge", "Insertion"}, questions[1].Options)
	require.Equal(t, 1, questions[1].CorrectAnswerIndex)
	require.Empty(t, questions[2].TargetLevel)
}

func TestDecodeCorrupt(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data string
	}{
		{name: "malformed json", data: `[{"id": "q1",`},
		{name: "wrong types", data: `[{"id": 1, "category": "OS", "questionText": "x", "options": ["a"], "correctAnswerIndex": 0}]`},
		{name: "not an array", data: `{"questions": []}`},
		{name: "missing id", data: `[{"category": "OS", "questionText": "x", "options": ["a"], "correctAnswerIndex": 0}]`},
		{name: "missing options", data: `[{"id": "q", "category": "OS", "questionText": "x", "correctAnswerIndex": 0}]`},
		{name: "missing correct index", data: `[{"id": "q", "category": "OS", "questionText": "x", "options": ["a"]}]`},
		{name: "index out of bounds", data: `[{"id": "q", "category": "OS", "questionText": "x", "options": ["a", "b"], "correctAnswerIndex": 2}]`},
		{name: "negative index", data: `[{"id": "q", "category": "OS", "questionText": "x", "options": ["a"], "correctAnswerIndex": -1}]`},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			questions, err := Decode([]byte(tt.data))
			require.Nil(t, questions)
			require.ErrorIs(t, err, ErrDataCorrupt)
			require.NotErrorIs(t, err, ErrDataUnavailable)
		})
	}
}

func TestDecodeReportsEveryInvalidRecord(t *testing.T) {
	t.Parallel()

	_, err := Decode([]byte(`[
		{"id": "ok", "category": "OS", "questionText": "x", "options": ["a"], "correctAnswerIndex": 0},
		{"category": "OS", "questionText": "x", "options": ["a"], "correctAnswerIndex": 0},
		{"id": "bad", "category": "OS", "questionText": "x", "options": ["a"], "correctAnswerIndex": 5}
	]`))
	require.ErrorIs(t, err, ErrDataCorrupt)
	require.Contains(t, err.Error(), "record 1: missing required fields: id")
	require.Contains(t, err.Error(), "record 2 (bad): correctAnswerIndex 5 out of bounds")
}

func TestEmbeddedSource(t *testing.T) {
	t.Parallel()

	data, err := NewEmbeddedSource().Read(context.Background())
	require.NoError(t, err)

	questions, err := Decode(data)
	require.NoError(t, err)
	require.NotEmpty(t, questions)

	meta := Describe("embedded", questions)
	require.Equal(t, len(questions), meta.Total)
	for _, label := range []string{"Computer Science", "Algorithm", "Data Structure", "OS", "Network", "Swift", "SwiftUI", "UIKit", "Mobile Dev"} {
		require.Positive(t, meta.Categories[label], label)
	}
	require.Positive(t, meta.Levels["none"])
}

func TestFileSource(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "questions.json")
	require.NoError(t, os.WriteFile(path, []byte(testBank), 0o600))

	data, err := NewFileSource(path).Read(context.Background())
	require.NoError(t, err)
	require.JSONEq(t, testBank, string(data))

	_, err = NewFileSource(filepath.Join(dir, "missing.json")).Read(context.Background())
	require.ErrorIs(t, err, ErrDataUnavailable)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = NewFileSource(path).Read(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestLoaderCachesForProcessLifetime(t *testing.T) {
	t.Parallel()

	src := &countingSource{data: []byte(testBank)}
	loader := NewLoader(src)

	first, err := loader.Load(context.Background())
	require.NoError(t, err)
	second, err := loader.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.EqualValues(t, 1, src.reads.Load())

	loader.Clear()
	_, err = loader.Load(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 2, src.reads.Load())
}

func TestLoaderConcurrentCallersShareDecode(t *testing.T) {
	t.Parallel()

	src := &countingSource{data: []byte(testBank), delay: 50 * time.Millisecond}
	loader := NewLoader(src)

	const callers = 16
	var wg sync.WaitGroup
	wg.Add(callers)
	for i := 0; i < callers; i++ {
		go func() {
			defer wg.Done()
			questions, err := loader.Load(context.Background())
			require.NoError(t, err)
			require.Len(t, questions, 3)
		}()
	}
	wg.Wait()

	require.EqualValues(t, 1, src.reads.Load())
}

func TestLoaderDoesNotCacheFailures(t *testing.T) {
	t.Parallel()

	src := &countingSource{err: errors.Wrap(ErrDataUnavailable, "gone")}
	loader := NewLoader(src)

	_, err := loader.Load(context.Background())
	require.ErrorIs(t, err, ErrDataUnavailable)

	src.err = nil
	src.data = []byte(`not json`)
	_, err = loader.Load(context.Background())
	require.ErrorIs(t, err, ErrDataCorrupt)

	src.data = []byte(testBank)
	meta, err := loader.Metadata(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, meta.Total)
	require.Equal(t, 1, meta.Levels["Easy"])
	require.Equal(t, 1, meta.Levels["none"])
	require.EqualValues(t, 3, src.reads.Load())
}

// gatedSource bloquea la próxima lectura hasta que se cierra gate
type gatedSource struct {
	mu      sync.Mutex
	data    []byte
	gate    chan struct{}
	started chan struct{}
}

func newGatedSource(data string) *gatedSource {
	return &gatedSource{data: []byte(data), gate: make(chan struct{}), started: make(chan struct{})}
}

func (*gatedSource) Name() string { return "gated" }

func (s *gatedSource) Read(ctx context.Context) ([]byte, error) {
	s.mu.Lock()
	data, gate := s.data, s.gate
	s.gate = nil
	s.mu.Unlock()

	if gate != nil {
		close(s.started)
		<-gate
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return data, nil
}

func (s *gatedSource) setData(data string) {
	s.mu.Lock()
	s.data = []byte(data)
	s.mu.Unlock()
}

func TestLoaderClearDiscardsInFlightLoad(t *testing.T) {
	t.Parallel()

	src := newGatedSource(testBank)
	gate := src.gate
	loader := NewLoader(src)

	done := make(chan struct{})
	go func() {
		defer close(done)
		questions, err := loader.Load(context.Background())
		assert.NoError(t, err)
		assert.Len(t, questions, 3)
	}()
	<-src.started

	loader.Clear()
	src.setData(`[{"id": "fresh", "category": "OS", "questionText": "x", "options": ["a"], "correctAnswerIndex": 0}]`)
	reloaded, err := loader.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, reloaded, 1)

	close(gate)
	<-done

	cached, err := loader.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, cached, 1)
	require.Equal(t, "fresh", cached[0].ID)
}

func TestLoaderSharedReadIgnoresCallerCancellation(t *testing.T) {
	t.Parallel()

	src := newGatedSource(testBank)
	gate := src.gate
	loader := NewLoader(src)

	ctx, cancel := context.WithCancel(context.Background())
	type loadResult struct {
		questions int
		err       error
	}
	results := make(chan loadResult, 1)
	go func() {
		questions, err := loader.Load(ctx)
		results <- loadResult{questions: len(questions), err: err}
	}()
	<-src.started

	cancel()
	close(gate)

	res := <-results
	require.NoError(t, res.err)
	require.Equal(t, 3, res.questions)

	questions, err := loader.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, questions, 3)
}
