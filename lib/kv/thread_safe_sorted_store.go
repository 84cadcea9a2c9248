package kv

import (
	"bytes"
	"errors"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/benz9527/xmap/lib/infra"
	"github.com/benz9527/xmap/lib/tree"
	"github.com/benz9527/xmap/xlog"
)

var ErrSortedStorePurged = errors.New("[sorted-store] already purged")

const defaultEvictWorkers = 4

type threadSafeSortedStore struct {
	m       tree.SortedMap
	compare infra.BytesComparator
	evictCb EvictionCallback
	pool    *ants.Pool
	logger  xlog.XLogger
	purged  bool
}

func (s *threadSafeSortedStore) AddOrUpdate(key, val []byte) error {
	s.m.Lock()
	defer s.m.Unlock()

	if s.purged {
		return infra.WrapErrorStack(ErrSortedStorePurged)
	}
	return s.m.Put(key, val)
}

func (s *threadSafeSortedStore) Delete(key []byte) error {
	s.m.Lock()
	defer s.m.Unlock()

	if s.purged {
		return infra.WrapErrorStack(ErrSortedStorePurged)
	}
	removed, err := s.m.Remove(key)
	if err != nil {
		return err
	}
	s.dispatchEviction(removed.Key(), removed.Val())
	return nil
}

func (s *threadSafeSortedStore) dispatchEviction(key, val []byte) {
	if s.evictCb == nil || s.pool == nil {
		return
	}
	cb := s.evictCb
	if err := s.pool.Submit(func() {
		cb(key, val)
	}); err != nil && s.logger != nil {
		s.logger.Warn("[sorted-store] eviction callback dropped",
			zap.ByteString("key", key), zap.String("error", err.Error()))
	}
}

func (s *threadSafeSortedStore) Get(key []byte) ([]byte, bool) {
	val, err := s.m.Get(key)
	if err != nil {
		return nil, false
	}
	return val, true
}

func (s *threadSafeSortedStore) Nearest(key []byte) ([]byte, []byte, bool) {
	entry, err := s.m.Nearest(key)
	if err != nil {
		return nil, nil, false
	}
	return entry.Key(), entry.Val(), true
}

func (s *threadSafeSortedStore) ListKeys(filters ...SafeStoreKeyFilterFunc) [][]byte {
	realFilters := make([]SafeStoreKeyFilterFunc, 0, len(filters))
	for _, filter := range filters {
		if filter != nil {
			realFilters = append(realFilters, filter)
		}
	}
	if len(realFilters) == 0 {
		realFilters = append(realFilters, defaultAllKeysFilter)
	}

	keys := make([][]byte, 0, s.m.Len())
	s.m.Foreach(func(idx int64, color tree.RBColor, key, val []byte) bool {
		for _, filter := range realFilters {
			if filter(key) {
				keys = append(keys, bytes.Clone(key))
				break
			}
		}
		return true
	})
	return keys
}

func (s *threadSafeSortedStore) ListValues(keys ...[]byte) [][]byte {
	contains := func(key []byte) bool {
		for _, k := range keys {
			if s.compare(k, key) == 0 {
				return true
			}
		}
		return false
	}

	values := make([][]byte, 0, s.m.Len())
	s.m.Foreach(func(idx int64, color tree.RBColor, key, val []byte) bool {
		if len(keys) == 0 || contains(key) {
			values = append(values, bytes.Clone(val))
		}
		return true
	})
	return values
}

func (s *threadSafeSortedStore) Range(from, to []byte, action func(key, val []byte) bool) error {
	s.m.Lock()
	defer s.m.Unlock()

	if s.purged {
		return infra.WrapErrorStack(ErrSortedStorePurged)
	}

	it := s.m.Iter()
	ok := false
	if len(from) == 0 {
		ok = it.Next()
	} else {
		ok = it.Seek(from)
	}
	for ; ok; ok = it.Next() {
		if to != nil && s.compare(it.Key(), to) >= 0 {
			return nil
		}
		if !action(it.Key(), it.Val()) {
			return nil
		}
	}
	return nil
}

func (s *threadSafeSortedStore) Len() int64 {
	return s.m.Len()
}

func (s *threadSafeSortedStore) Purge() error {
	s.m.Lock()
	if s.purged {
		s.m.Unlock()
		return infra.WrapErrorStack(ErrSortedStorePurged)
	}
	s.purged = true

	s.m.Foreach(func(idx int64, color tree.RBColor, key, val []byte) bool {
		s.dispatchEviction(bytes.Clone(key), bytes.Clone(val))
		return true
	})
	s.m.Purge()
	s.m.Unlock()

	var merr error
	if s.pool != nil {
		if err := s.pool.ReleaseTimeout(5 * time.Second); err != nil {
			merr = multierr.Append(merr, err)
		}
	}
	if merr != nil {
		return infra.WrapErrorStackWithMessage(merr, "[sorted-store] purge")
	}
	return nil
}

type SortedStoreOpt func(*threadSafeSortedStore)

func WithSortedStoreComparator(cmp infra.BytesComparator) SortedStoreOpt {
	return func(s *threadSafeSortedStore) {
		s.compare = cmp
	}
}

func WithSortedStoreEvictionCallback(cb EvictionCallback) SortedStoreOpt {
	return func(s *threadSafeSortedStore) {
		s.evictCb = cb
	}
}

func WithSortedStoreLogger(logger xlog.XLogger) SortedStoreOpt {
	return func(s *threadSafeSortedStore) {
		s.logger = logger
	}
}

func NewThreadSafeSortedStore(opts ...SortedStoreOpt) (ThreadSafeSortedStorer, error) {
	s := &threadSafeSortedStore{
		compare: infra.DefaultBytesComparator(),
	}
	for _, o := range opts {
		o(s)
	}
	s.m = tree.NewLLRBSortedMap(
		tree.WithSortedMapComparator(s.compare),
		tree.WithSortedMapThreadSafe(),
	)

	if s.evictCb != nil {
		poolOpts := []ants.Option{ants.WithPreAlloc(true)}
		if s.logger != nil {
			poolOpts = append(poolOpts, ants.WithLogger(xlog.NewAntsXLogger(s.logger)))
		}
		pool, err := ants.NewPool(defaultEvictWorkers, poolOpts...)
		if err != nil {
			return nil, infra.WrapErrorStackWithMessage(err, "[sorted-store] worker pool")
		}
		s.pool = pool
	}
	return s, nil
}
