package plagiarism

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/RishiKendai/plagscan/internal/metrics"
	"golang.org/x/sync/singleflight"
)

// Source reads the raw text of a document.
type Source interface {
	ReadDocument(ctx context.Context, path string) (string, error)
}

// Document is one file of the corpus. ID is the final path segment and is
// what the result tables show.
type Document struct {
	Path string
	ID   string
}

func NewDocument(path string) Document {
	return Document{Path: path, ID: filepath.Base(path)}
}

type cacheEntry struct {
	sig Signature
	err error
}

// signatureCache builds each document's signature at most once per run and
// shares it read-only with every sweep. Concurrent requests for the same
// document wait on a single build. Read failures are cached too: the same
// file fails the same way on a second read.
//
// With a build timeout set, a caller that waits longer than the timeout for
// a document marks that document as failed for the rest of the run; the
// first recorded outcome of a document wins.
type signatureCache struct {
	source       Source
	canon        *Canonicalizer
	hasher       *MinHasher
	metrics      *metrics.Metrics
	buildTimeout time.Duration

	group   singleflight.Group
	mu      sync.RWMutex
	entries map[string]cacheEntry
}

func newSignatureCache(source Source, canon *Canonicalizer, hasher *MinHasher, m *metrics.Metrics, buildTimeout time.Duration) *signatureCache {
	return &signatureCache{
		source:       source,
		canon:        canon,
		hasher:       hasher,
		metrics:      m,
		buildTimeout: buildTimeout,
		entries:      make(map[string]cacheEntry),
	}
}

// Get returns the signature of doc, building it on first use. A canceled ctx
// abandons the wait but not the build, which other callers may still need.
func (c *signatureCache) Get(ctx context.Context, doc Document) (Signature, error) {
	if entry, ok := c.lookup(doc.Path); ok {
		return entry.sig, entry.err
	}

	ch := c.group.DoChan(doc.Path, func() (interface{}, error) {
		// A build may have finished between lookup and DoChan.
		if entry, ok := c.lookup(doc.Path); ok {
			return entry, nil
		}
		entry := c.build(context.WithoutCancel(ctx), doc)
		return c.store(doc.Path, entry), nil
	})

	wait := ctx
	if c.buildTimeout > 0 {
		var cancel context.CancelFunc
		wait, cancel = context.WithTimeout(ctx, c.buildTimeout)
		defer cancel()
	}

	select {
	case res := <-ch:
		entry := res.Val.(cacheEntry)
		return entry.sig, entry.err
	case <-wait.Done():
		if err := ctx.Err(); err != nil {
			return Signature{}, err
		}
		entry := c.store(doc.Path, cacheEntry{err: &DocumentReadError{
			Path: doc.Path,
			Err:  fmt.Errorf("signature not ready after %s: %w", c.buildTimeout, context.DeadlineExceeded),
		}})
		return entry.sig, entry.err
	}
}

func (c *signatureCache) lookup(path string) (cacheEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[path]
	return entry, ok
}

// store records entry unless the document already has an outcome, and
// returns the outcome that stands.
func (c *signatureCache) store(path string, entry cacheEntry) cacheEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.entries[path]; ok {
		return existing
	}
	c.entries[path] = entry
	return entry
}

func (c *signatureCache) build(ctx context.Context, doc Document) cacheEntry {
	if c.buildTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.buildTimeout)
		defer cancel()
	}

	raw, err := c.source.ReadDocument(ctx, doc.Path)
	if err != nil {
		return cacheEntry{err: &DocumentReadError{Path: doc.Path, Err: err}}
	}
	sig := c.hasher.Build(c.canon.Canonicalize(raw))
	c.metrics.SignatureBuilt()
	return cacheEntry{sig: sig}
}

// Len returns the number of documents with a recorded outcome.
func (c *signatureCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
