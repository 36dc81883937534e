package crawler

import (
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
)

// VisitedSet deduplicates crawl targets. AddIfAbsent is the only mutator:
// it must atomically test-and-add so concurrent callers racing on the same
// URL never both get true.
type VisitedSet interface {
	AddIfAbsent(u NormalizedURL) bool
	Size() int
}

// exactVisitedSet is a mutex-guarded string set. Memory grows linearly with
// distinct URLs seen; use it when exact recall matters more than memory.
type exactVisitedSet struct {
	mu  sync.Mutex
	set map[string]struct{}
}

// NewExactVisitedSet returns a VisitedSet with perfect recall.
func NewExactVisitedSet() VisitedSet {
	return &exactVisitedSet{set: make(map[string]struct{})}
}

func (s *exactVisitedSet) AddIfAbsent(u NormalizedURL) bool {
	key := u.String()
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.set[key]; ok {
		return false
	}
	s.set[key] = struct{}{}
	return true
}

func (s *exactVisitedSet) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.set)
}

// bloomVisitedSet trades a bounded false-positive rate (some new URLs are
// wrongly treated as already seen, so pages are silently skipped) for
// constant memory regardless of crawl size. It never false-negatives: once
// a URL has been added, Test always reports it present.
type bloomVisitedSet struct {
	mu     sync.Mutex
	filter *bloom.BloomFilter
	count  int
}

// NewBloomVisitedSet returns an approximate VisitedSet sized for
// expectedItems URLs at the given false-positive rate.
func NewBloomVisitedSet(expectedItems uint, fpr float64) VisitedSet {
	return &bloomVisitedSet{filter: bloom.NewWithEstimates(expectedItems, fpr)}
}

func (s *bloomVisitedSet) AddIfAbsent(u NormalizedURL) bool {
	key := []byte(u.String())
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.filter.Test(key) {
		return false
	}
	s.filter.Add(key)
	s.count++
	return true
}

func (s *bloomVisitedSet) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}
