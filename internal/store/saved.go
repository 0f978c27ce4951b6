// Package store remembers tracks already saved to the playlist.
package store

import (
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultFalsePositiveRate is the bloom filter target used by NewSavedTracks
const DefaultFalsePositiveRate = 0.01

// SavedTracks is a bounded set of track URIs. The bloom filter answers most misses;
// the LRU evicts the oldest URI once capacity is reached.
type SavedTracks struct {
	uris  map[string]struct{}
	bloom *bloom.BloomFilter
	lru   *lru.Cache[string, struct{}]
	mutex sync.RWMutex
}

// NewSavedTracks creates a set that holds at most capacity URIs.
func NewSavedTracks(capacity int, falsePositiveRate float64) *SavedTracks {
	if capacity <= 0 {
		capacity = 1
	}

	s := &SavedTracks{
		uris:  make(map[string]struct{}),
		bloom: bloom.NewWithEstimates(uint(capacity), falsePositiveRate),
	}
	// Runs inside lru.Add, with s.mutex already held
	s.lru, _ = lru.NewWithEvict[string, struct{}](capacity, func(uri string, _ struct{}) {
		delete(s.uris, uri)
	})
	return s
}

func (s *SavedTracks) Has(trackURI string) bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if !s.bloom.TestString(trackURI) {
		return false
	}

	_, exists := s.uris[trackURI]
	return exists
}

func (s *SavedTracks) Add(trackURI string) {
	if trackURI == "" {
		return
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, exists := s.uris[trackURI]; exists {
		return
	}

	s.uris[trackURI] = struct{}{}
	s.bloom.AddString(trackURI)
	s.lru.Add(trackURI, struct{}{})
}

// Size is the number of URIs currently remembered.
func (s *SavedTracks) Size() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return len(s.uris)
}
