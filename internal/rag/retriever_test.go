package rag

import (
	"context"
	"errors"
	"testing"
)

// fakeEmbedder returns a fixed vector and counts calls.
type fakeEmbedder struct {
	calls int
	err   error
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{0.1, 0.2, 0.3}
	}
	return out, nil
}

// fakeStore is an in-memory VectorStore.
type fakeStore struct {
	state    ConnState
	docs     []Document
	lastTopK int
	err      error
}

func (f *fakeStore) Upsert(_ context.Context, docs []Document) error {
	f.docs = append(f.docs, docs...)
	return f.err
}

func (f *fakeStore) Search(_ context.Context, _ []float32, topK int) ([]Document, error) {
	f.lastTopK = topK
	if f.err != nil {
		return nil, f.err
	}
	if topK < len(f.docs) {
		return f.docs[:topK], nil
	}
	return f.docs, nil
}

func (f *fakeStore) Get(_ context.Context, id string) (*Document, error) {
	for i := range f.docs {
		if f.docs[i].ID == id {
			return &f.docs[i], nil
		}
	}
	return nil, ErrNotFound
}

func (f *fakeStore) Delete(context.Context, []string) error { return nil }
func (f *fakeStore) State() ConnState                       { return f.state }
func (f *fakeStore) Close() error                           { return nil }

func TestNewRetriever_Validation(t *testing.T) {
	t.Parallel()

	if _, err := NewRetriever(nil, &fakeStore{}, 5); err == nil {
		t.Error("expected error for nil embedder")
	}
	if _, err := NewRetriever(&fakeEmbedder{}, nil, 5); err == nil {
		t.Error("expected error for nil store")
	}
}

func TestRetriever_DefaultTopK(t *testing.T) {
	t.Parallel()

	store := &fakeStore{state: StateConnected}
	r, err := NewRetriever(&fakeEmbedder{}, store, 0)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := r.Retrieve(context.Background(), "what is physical AI?", 0); err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if store.lastTopK != DefaultTopK {
		t.Errorf("topK = %d, want %d", store.lastTopK, DefaultTopK)
	}
}

func TestRetriever_UnavailableSkipsEmbedding(t *testing.T) {
	t.Parallel()

	for _, state := range []ConnState{StateUninitialized, StateUnreachable} {
		emb := &fakeEmbedder{}
		r, _ := NewRetriever(emb, &fakeStore{state: state}, 5)

		if r.Available() {
			t.Errorf("%v: Available() = true", state)
		}
		_, err := r.Retrieve(context.Background(), "q", 5)
		if !errors.Is(err, ErrStoreUnavailable) {
			t.Errorf("%v: err = %v, want ErrStoreUnavailable", state, err)
		}
		if emb.calls != 0 {
			t.Errorf("%v: embedder called %d times", state, emb.calls)
		}
	}
}

func TestRetriever_PropagatesErrors(t *testing.T) {
	t.Parallel()

	embErr := errors.New("embedding api down")
	r, _ := NewRetriever(&fakeEmbedder{err: embErr}, &fakeStore{state: StateConnected}, 5)
	if _, err := r.Retrieve(context.Background(), "q", 5); !errors.Is(err, embErr) {
		t.Errorf("expected wrapped embedder error, got %v", err)
	}

	searchErr := errors.New("search failed")
	r, _ = NewRetriever(&fakeEmbedder{}, &fakeStore{state: StateConnected, err: searchErr}, 5)
	if _, err := r.Retrieve(context.Background(), "q", 5); !errors.Is(err, searchErr) {
		t.Errorf("expected wrapped search error, got %v", err)
	}
}
