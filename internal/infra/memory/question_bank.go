package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"livequiz-service/internal/domain"
)

// QuestionLoader fetches a question set from a backing store.
type QuestionLoader interface {
	LoadQuestionSet(ctx context.Context, setID string) (domain.QuestionSet, error)
}

// QuestionBank caches question sets with TTL to avoid repeated backing-store
// hits when the host re-imports or multiple callers race the same set.
type QuestionBank struct {
	loader QuestionLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu    sync.RWMutex
	cache map[string]cachedSet
}

type cachedSet struct {
	set       domain.QuestionSet
	expiresAt time.Time
}

func NewQuestionBank(loader QuestionLoader, ttl time.Duration) *QuestionBank {
	return &QuestionBank{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedSet),
	}
}

func (b *QuestionBank) LoadQuestionSet(ctx context.Context, setID string) (domain.QuestionSet, error) {
	now := b.clock()

	b.mu.RLock()
	if entry, ok := b.cache[setID]; ok && entry.expiresAt.After(now) {
		b.mu.RUnlock()
		return entry.set, nil
	}
	b.mu.RUnlock()

	result, err, _ := b.sf.Do(setID, func() (interface{}, error) {
		now := b.clock()
		b.mu.RLock()
		if entry, ok := b.cache[setID]; ok && entry.expiresAt.After(now) {
			b.mu.RUnlock()
			return entry.set, nil
		}
		b.mu.RUnlock()

		set, err := b.loader.LoadQuestionSet(ctx, setID)
		if err != nil {
			return domain.QuestionSet{}, err
		}

		b.mu.Lock()
		b.cache[setID] = cachedSet{
			set:       set,
			expiresAt: now.Add(b.ttlWithJitter()),
		}
		b.mu.Unlock()
		return set, nil
	})
	if err != nil {
		return domain.QuestionSet{}, err
	}
	return result.(domain.QuestionSet), nil
}

func (b *QuestionBank) ttlWithJitter() time.Duration {
	if b.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(b.ttl) / 10
	return b.ttl + time.Duration(b.rnd.Int63n(jitterMax+1))
}

// StaticQuestionLoader serves question sets from an in-memory map, for tests
// and demo setups without a database.
type StaticQuestionLoader struct {
	sets map[string]domain.QuestionSet
}

func NewStaticQuestionLoader(sets map[string]domain.QuestionSet) *StaticQuestionLoader {
	return &StaticQuestionLoader{sets: sets}
}

func (l *StaticQuestionLoader) LoadQuestionSet(_ context.Context, setID string) (domain.QuestionSet, error) {
	if set, ok := l.sets[setID]; ok {
		return set, nil
	}
	return domain.QuestionSet{}, domain.ErrQuestionNotFound
}
