package lsp

import "sync"

// Store holds open documents and their latest analysis.
type Store struct {
	mu   sync.RWMutex
	docs map[string]*document
}

type document struct {
	text     string
	analysis *Analysis
}

func NewStore() *Store {
	return &Store{docs: map[string]*document{}}
}

// Set replaces the text of uri and returns its fresh analysis.
func (s *Store) Set(uri, text string) *Analysis {
	an := Analyze(text)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[uri] = &document{text: text, analysis: an}
	return an
}

func (s *Store) Get(uri string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.docs[uri]
	if !ok {
		return "", false
	}
	return d.text, true
}

// Analysis returns the analysis computed when uri was last set.
func (s *Store) Analysis(uri string) (*Analysis, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.docs[uri]
	if !ok {
		return nil, false
	}
	return d.analysis, true
}

func (s *Store) Delete(uri string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, uri)
}
