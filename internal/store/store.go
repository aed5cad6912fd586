// Package store is the tiered security state store: one record per
// identifier, persisted through a fallback chain of storage tiers, with
// change notification to other contexts sharing the durable tier.
//
// The store never surfaces storage or encryption failures to callers. Every
// tier operation runs inside an error boundary that logs, counts, and falls
// through; the in-memory tier at the end of the chain cannot fail.
package store

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"loginguard/internal/bus"
)

// Boxer is the seal boundary in front of durable payloads.
type Boxer interface {
	Seal(plaintext []byte) ([]byte, error)
	Open(box []byte) ([]byte, error)
}

// Listener observes mutations of one identifier's record. A nil record
// means the state was removed.
type Listener func(identifier string, rec *Record)

// Hooks let the owner count degradation without the store importing its
// metrics. All fields are optional.
type Hooks struct {
	// OnFallback fires when a write falls past a tier.
	OnFallback func(tier string)
	// OnCorrupt fires when a stored payload is discarded as untrusted.
	OnCorrupt func(tier string)
	// OnSealFailure fires when a payload cannot be sealed and the write
	// degrades to memory-only plaintext.
	OnSealFailure func()
	// OnCleanupRemoved fires once per sweep with the removal count.
	OnCleanupRemoved func(n int)
}

// Options configures a Store. Durable and Session tiers are optional; the
// memory tier always exists and always terminates the chain.
type Options struct {
	Durable          Tier
	Session          Tier
	KeyPrefix        string
	StalenessHorizon time.Duration
	Sealer           Boxer
	Bus              bus.Bus
	Logger           *zap.Logger
	Hooks            Hooks
	Now              func() time.Time
}

type tierRef struct {
	tier   Tier
	sealed bool
}

// Store is the tiered state store. Safe for concurrent use.
type Store struct {
	chain   []tierRef
	memory  *MemoryTier
	session Tier
	prefix  string
	horizon time.Duration
	sealer  Boxer
	bus     bus.Bus
	origin  string
	log     *zap.Logger
	hooks   Hooks
	now     func() time.Time

	mu          sync.RWMutex
	listeners   map[string]map[int64]Listener
	nextID      int64
	unsubscribe func()
}

// New builds a Store. A bus subscription failure degrades to local-only
// notification rather than failing construction.
func New(opts Options) *Store {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.StalenessHorizon <= 0 {
		opts.StalenessHorizon = 24 * time.Hour
	}

	s := &Store{
		memory:    NewMemoryTier(),
		session:   opts.Session,
		prefix:    opts.KeyPrefix,
		horizon:   opts.StalenessHorizon,
		sealer:    opts.Sealer,
		bus:       opts.Bus,
		origin:    uuid.NewString(),
		log:       opts.Logger,
		hooks:     opts.Hooks,
		now:       opts.Now,
		listeners: make(map[string]map[int64]Listener),
	}

	if opts.Durable != nil {
		s.chain = append(s.chain, tierRef{tier: opts.Durable, sealed: opts.Sealer != nil})
	}
	if opts.Session != nil {
		s.chain = append(s.chain, tierRef{tier: opts.Session, sealed: opts.Sealer != nil})
	}
	s.chain = append(s.chain, tierRef{tier: s.memory})

	if s.bus != nil {
		unsubscribe, err := s.bus.Subscribe(s.onBusMessage)
		if err != nil {
			s.log.Warn("change bus subscription failed, continuing local-only", zap.Error(err))
		} else {
			s.unsubscribe = unsubscribe
		}
	}

	return s
}

func (s *Store) key(identifier string) string {
	return s.prefix + ":" + identifier
}

func (s *Store) identifierFromKey(key string) (string, bool) {
	identifier := strings.TrimPrefix(key, s.prefix+":")
	if identifier == key || identifier == "" {
		return "", false
	}
	return identifier, true
}

// Get returns the record for identifier, or nil when no tier holds a
// trustworthy one. It never fails: unreadable tiers and corrupt payloads are
// logged and skipped.
func (s *Store) Get(ctx context.Context, identifier string) *Record {
	key := s.key(identifier)
	for _, ref := range s.chain {
		rec, err := s.loadTier(ctx, ref, key)
		if err != nil {
			continue
		}
		if rec != nil {
			return rec
		}
	}
	return nil
}

// loadTier reads one tier. It returns (nil, nil) for a clean miss, an error
// for a transport failure, and (nil, nil) after logging for a corrupt
// payload. Corrupt state is indistinguishable from no state to callers, but
// the distinction matters to the cleanup sweep.
func (s *Store) loadTier(ctx context.Context, ref tierRef, key string) (*Record, error) {
	data, err := ref.tier.Get(ctx, key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		s.log.Warn("state tier unreadable", zap.String("tier", ref.tier.Name()), zap.Error(err))
		return nil, err
	}

	if ref.sealed {
		opened, err := s.sealer.Open(data)
		if err != nil {
			s.log.Warn("sealed state payload rejected", zap.String("tier", ref.tier.Name()), zap.Error(err))
			s.corrupt(ref.tier)
			return nil, nil
		}
		data = opened
	}

	rec, err := DecodeRecord(data)
	if err != nil {
		s.log.Warn("stored state payload rejected", zap.String("tier", ref.tier.Name()), zap.Error(err))
		s.corrupt(ref.tier)
		return nil, nil
	}
	return rec, nil
}

// Set persists rec for identifier. The write lands on the first tier in the
// chain that accepts it; each failure is logged and counted before falling
// through, and the memory tier always accepts. Listeners are notified either
// way.
func (s *Store) Set(ctx context.Context, identifier string, rec *Record) {
	key := s.key(identifier)

	data, err := EncodeRecord(rec)
	if err != nil {
		s.log.Error("state record encode failed", zap.Error(err))
		return
	}

	payload := data
	sealedOK := true
	if s.sealer != nil {
		sealed, err := s.sealer.Seal(data)
		if err != nil {
			s.log.Error("state payload seal failed, degrading to memory-only", zap.Error(err))
			if s.hooks.OnSealFailure != nil {
				s.hooks.OnSealFailure()
			}
			sealedOK = false
		} else {
			payload = sealed
		}
	}

	wrote := false
	for _, ref := range s.chain {
		if ref.tier == Tier(s.memory) {
			// The last-resort tier is handled below so a failed write
			// on every configured tier still leaves a readable copy.
			break
		}
		if ref.sealed && !sealedOK {
			continue
		}
		value := data
		if ref.sealed {
			value = payload
		}
		if err := ref.tier.Set(ctx, key, value); err != nil {
			s.log.Warn("state tier write failed, falling through",
				zap.String("tier", ref.tier.Name()), zap.Error(err))
			if s.hooks.OnFallback != nil {
				s.hooks.OnFallback(ref.tier.Name())
			}
			continue
		}
		wrote = true
		if ref.tier != s.session {
			s.publish(ctx, key, payload)
		}
		break
	}

	if !wrote {
		// Last line of defense; plaintext, in-process, cannot fail.
		_ = s.memory.Set(ctx, key, data)
	}

	s.notify(identifier, rec)
}

// Remove deletes identifier's record from every tier unconditionally and
// announces the removal. Unreadable tiers cannot make removal fail.
func (s *Store) Remove(ctx context.Context, identifier string) {
	key := s.key(identifier)
	for _, ref := range s.chain {
		if err := ref.tier.Remove(ctx, key); err != nil {
			s.log.Warn("state tier remove failed", zap.String("tier", ref.tier.Name()), zap.Error(err))
		}
	}

	s.publish(ctx, key, nil)
	s.notify(identifier, nil)
}

// Cleanup sweeps every tier and removes records whose UpdatedAt exceeds the
// staleness horizon, whose lockout has been expired for longer than the
// horizon, or whose payload is corrupt. Safe to call redundantly and
// concurrently. Returns the number of identifiers touched.
func (s *Store) Cleanup(ctx context.Context) int {
	nowMs := s.now().UnixMilli()
	horizonMs := s.horizon.Milliseconds()
	removed := make(map[string]struct{})

	for _, ref := range s.chain {
		keys, err := ref.tier.ListKeys(ctx)
		if err != nil {
			s.log.Warn("state tier unlistable during cleanup",
				zap.String("tier", ref.tier.Name()), zap.Error(err))
			continue
		}

		for _, key := range keys {
			identifier, ok := s.identifierFromKey(key)
			if !ok {
				continue
			}
			rec, err := s.loadTier(ctx, ref, key)
			if err != nil {
				// Transport failure, not evidence of staleness.
				continue
			}

			stale := rec == nil ||
				nowMs-rec.UpdatedAt > horizonMs ||
				(rec.LockoutUntil > 0 && nowMs-rec.LockoutUntil > horizonMs)
			if !stale {
				continue
			}

			if err := ref.tier.Remove(ctx, key); err != nil {
				s.log.Warn("stale state remove failed",
					zap.String("tier", ref.tier.Name()), zap.Error(err))
				continue
			}
			removed[identifier] = struct{}{}
		}
	}

	if len(removed) > 0 && s.hooks.OnCleanupRemoved != nil {
		s.hooks.OnCleanupRemoved(len(removed))
	}
	return len(removed)
}

// AddListener registers fn for one identifier's changes, local and remote.
func (s *Store) AddListener(identifier string, fn Listener) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	id := s.nextID
	if s.listeners[identifier] == nil {
		s.listeners[identifier] = make(map[int64]Listener)
	}
	s.listeners[identifier][id] = fn
	return id
}

// RemoveListener deregisters a listener. Unknown IDs are ignored.
func (s *Store) RemoveListener(identifier string, id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if m := s.listeners[identifier]; m != nil {
		delete(m, id)
		if len(m) == 0 {
			delete(s.listeners, identifier)
		}
	}
}

// Close detaches the bus subscription. The store remains usable local-only.
func (s *Store) Close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
}

func (s *Store) notify(identifier string, rec *Record) {
	s.mu.RLock()
	registered := s.listeners[identifier]
	fns := make([]Listener, 0, len(registered))
	for _, fn := range registered {
		fns = append(fns, fn)
	}
	s.mu.RUnlock()

	for _, fn := range fns {
		fn(identifier, rec.Clone())
	}
}

func (s *Store) publish(ctx context.Context, key string, payload []byte) {
	if s.bus == nil {
		return
	}
	msg := bus.Message{Origin: s.origin, Key: key, Payload: payload}
	if err := s.bus.Publish(ctx, msg); err != nil {
		s.log.Warn("state change publish failed", zap.Error(err))
	}
}

func (s *Store) onBusMessage(msg bus.Message) {
	if msg.Origin == s.origin {
		return
	}
	identifier, ok := s.identifierFromKey(msg.Key)
	if !ok {
		return
	}

	ctx := context.Background()
	if msg.Payload == nil {
		// A remote reset: drop local fallback copies so they cannot
		// resurface once the durable tier reads empty.
		if s.session != nil {
			_ = s.session.Remove(ctx, msg.Key)
		}
		_ = s.memory.Remove(ctx, msg.Key)
		s.notify(identifier, nil)
		return
	}

	data := msg.Payload
	if s.sealer != nil {
		opened, err := s.sealer.Open(data)
		if err != nil {
			s.log.Warn("remote state payload rejected", zap.Error(err))
			return
		}
		data = opened
	}
	rec, err := DecodeRecord(data)
	if err != nil {
		s.log.Warn("remote state payload rejected", zap.Error(err))
		return
	}
	s.notify(identifier, rec)
}

func (s *Store) corrupt(t Tier) {
	if s.hooks.OnCorrupt != nil {
		s.hooks.OnCorrupt(t.Name())
	}
}
