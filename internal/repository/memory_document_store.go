package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// MemoryDocumentStore guarda documentos JSON en memoria. Útil para desarrollo y tests.
type MemoryDocumentStore struct {
	mu          sync.RWMutex
	collections map[string]map[string][]byte
}

func NewMemoryDocumentStore() *MemoryDocumentStore {
	return &MemoryDocumentStore{
		collections: make(map[string]map[string][]byte),
	}
}

func (s *MemoryDocumentStore) Get(_ context.Context, collection, key string, out any) error {
	s.mu.RLock()
	raw, ok := s.collections[collection][key]
	s.mu.RUnlock()
	if !ok {
		return ErrNotFound
	}
	return json.Unmarshal(raw, out)
}

func (s *MemoryDocumentStore) Put(_ context.Context, collection, key string, doc any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bucket(collection)[key] = raw
	return nil
}

func (s *MemoryDocumentStore) Create(_ context.Context, collection, key string, doc any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	bucket := s.bucket(collection)
	if _, ok := bucket[key]; ok {
		return ErrAlreadyExists
	}
	bucket[key] = raw
	return nil
}

func (s *MemoryDocumentStore) Update(_ context.Context, collection, key string, fields map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, ok := s.collections[collection][key]
	if !ok {
		return ErrNotFound
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return err
	}
	for k, v := range fields {
		doc[k] = v
	}
	merged, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	s.collections[collection][key] = merged
	return nil
}

func (s *MemoryDocumentStore) Delete(_ context.Context, collection, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.collections[collection], key)
	return nil
}

func (s *MemoryDocumentStore) DeleteIf(_ context.Context, collection, key, field, value string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, ok := s.collections[collection][key]
	if !ok {
		return false, nil
	}
	match, err := fieldEquals(raw, field, value)
	if err != nil || !match {
		return false, err
	}
	delete(s.collections[collection], key)
	return true, nil
}

func (s *MemoryDocumentStore) ExistsByField(_ context.Context, collection, field, value string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, raw := range s.collections[collection] {
		match, err := fieldEquals(raw, field, value)
		if err != nil {
			return false, err
		}
		if match {
			return true, nil
		}
	}
	return false, nil
}

func fieldEquals(raw []byte, field, value string) (bool, error) {
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return false, err
	}
	v, ok := doc[field]
	return ok && fmt.Sprint(v) == value, nil
}

func (s *MemoryDocumentStore) Ping(_ context.Context) error {
	return nil
}

func (s *MemoryDocumentStore) bucket(collection string) map[string][]byte {
	bucket, ok := s.collections[collection]
	if !ok {
		bucket = make(map[string][]byte)
		s.collections[collection] = bucket
	}
	return bucket
}
