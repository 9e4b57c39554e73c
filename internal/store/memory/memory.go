// Package memory provides map-backed repository implementations. They honor
// the same scope and dedup semantics as the postgres repositories and back
// unit tests plus the standalone CLI paths that run without a database.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/quantfeed/marketpulse/internal/contracts"
)

// SignalStore is an in-memory contracts.SignalRepository.
type SignalStore struct {
	mu      sync.RWMutex
	signals map[string]*contracts.Signal
	hashes  map[string]string // "<scope>|<hash>" -> signal id
}

// NewSignalStore creates an empty signal store.
func NewSignalStore() *SignalStore {
	return &SignalStore{
		signals: make(map[string]*contracts.Signal),
		hashes:  make(map[string]string),
	}
}

func hashKey(scope contracts.Scope, hash string) string {
	return string(scope) + "|" + hash
}

func (s *SignalStore) Insert(ctx context.Context, sig *contracts.Signal) (bool, error) {
	if err := sig.Scope.Validate(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := hashKey(sig.Scope, sig.ContentHash)
	if _, dup := s.hashes[key]; dup {
		return false, nil
	}
	cp := *sig
	s.signals[sig.ID] = &cp
	s.hashes[key] = sig.ID
	return true, nil
}

func (s *SignalStore) SeenHash(ctx context.Context, scope contracts.Scope, hash string) (bool, error) {
	if err := scope.Validate(); err != nil {
		return false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.hashes[hashKey(scope, hash)]
	return ok, nil
}

func (s *SignalStore) Supersede(ctx context.Context, scope contracts.Scope, targetSymbol string, targetType contracts.TargetType, newID string) error {
	if err := scope.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sig := range s.signals {
		if sig.Scope == scope &&
			sig.TargetSymbol == targetSymbol &&
			sig.TargetType == targetType &&
			sig.ID != newID &&
			sig.SupersededBy == "" {
			sig.SupersededBy = newID
		}
	}
	return nil
}

func (s *SignalStore) GetByIDs(ctx context.Context, scope contracts.Scope, ids []string) ([]contracts.Signal, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]contracts.Signal, 0, len(ids))
	for _, id := range ids {
		if sig, ok := s.signals[id]; ok && sig.Scope == scope {
			out = append(out, *sig)
		}
	}
	return out, nil
}

func (s *SignalStore) List(ctx context.Context, scope contracts.Scope, filter contracts.SignalFilter) ([]contracts.Signal, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []contracts.Signal
	for _, sig := range s.signals {
		if sig.Scope != scope {
			continue
		}
		if filter.TargetSymbol != "" && !strings.EqualFold(sig.TargetSymbol, filter.TargetSymbol) {
			continue
		}
		if filter.Direction != "" && sig.Direction != filter.Direction {
			continue
		}
		out = append(out, *sig)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return paginate(out, filter.Offset, filter.Limit), nil
}

func (s *SignalStore) DeleteByScope(ctx context.Context, scope contracts.Scope) (int64, error) {
	if err := scope.Validate(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, sig := range s.signals {
		if sig.Scope == scope {
			delete(s.signals, id)
			delete(s.hashes, hashKey(scope, sig.ContentHash))
			n++
		}
	}
	return n, nil
}

// PredictorStore is an in-memory contracts.PredictorRepository.
type PredictorStore struct {
	mu         sync.RWMutex
	predictors map[string]*contracts.Predictor
}

// NewPredictorStore creates an empty predictor store.
func NewPredictorStore() *PredictorStore {
	return &PredictorStore{predictors: make(map[string]*contracts.Predictor)}
}

func (s *PredictorStore) Insert(ctx context.Context, p *contracts.Predictor) error {
	if err := p.Scope.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *p
	cp.SourceSignals = append([]string(nil), p.SourceSignals...)
	s.predictors[p.ID] = &cp
	return nil
}

func (s *PredictorStore) Update(ctx context.Context, p *contracts.Predictor) error {
	if err := p.Scope.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.predictors[p.ID]
	if !ok {
		return contracts.ErrNotFound
	}
	cur.Strength = p.Strength
	cur.SourceSignals = append([]string(nil), p.SourceSignals...)
	cur.ExpiresAt = p.ExpiresAt
	cur.Expired = p.Expired
	return nil
}

func (s *PredictorStore) FindLive(ctx context.Context, scope contracts.Scope, targetSymbol string, direction contracts.Direction, now time.Time) (*contracts.Predictor, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.predictors {
		if p.Scope == scope && p.TargetSymbol == targetSymbol && p.Direction == direction && p.Live(now) {
			cp := *p
			cp.SourceSignals = append([]string(nil), p.SourceSignals...)
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *PredictorStore) LivePool(ctx context.Context, scope contracts.Scope, targetSymbol string, now time.Time) ([]contracts.Predictor, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []contracts.Predictor
	for _, p := range s.predictors {
		if p.Scope == scope && p.TargetSymbol == targetSymbol && p.Live(now) {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *PredictorStore) LiveTargets(ctx context.Context, scope contracts.Scope, now time.Time) ([]string, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]bool)
	var out []string
	for _, p := range s.predictors {
		if p.Scope == scope && p.Live(now) && !seen[p.TargetSymbol] {
			seen[p.TargetSymbol] = true
			out = append(out, p.TargetSymbol)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s *PredictorStore) ExpireDue(ctx context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, p := range s.predictors {
		if !p.Expired && !now.Before(p.ExpiresAt) {
			p.Expired = true
			n++
		}
	}
	return n, nil
}

func (s *PredictorStore) DeleteByScope(ctx context.Context, scope contracts.Scope) (int64, error) {
	if err := scope.Validate(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, p := range s.predictors {
		if p.Scope == scope {
			delete(s.predictors, id)
			n++
		}
	}
	return n, nil
}

// PredictionStore is an in-memory contracts.PredictionRepository.
type PredictionStore struct {
	mu          sync.RWMutex
	predictions map[string]*contracts.Prediction
}

// NewPredictionStore creates an empty prediction store.
func NewPredictionStore() *PredictionStore {
	return &PredictionStore{predictions: make(map[string]*contracts.Prediction)}
}

func (s *PredictionStore) ActiveForTarget(ctx context.Context, scope contracts.Scope, targetSymbol string, now time.Time) (*contracts.Prediction, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.predictions {
		if p.Scope == scope && p.TargetSymbol == targetSymbol && p.Live(now) {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *PredictionStore) Upsert(ctx context.Context, p *contracts.Prediction) error {
	if err := p.Scope.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *p
	cp.SourcePredictors = append([]string(nil), p.SourcePredictors...)
	s.predictions[p.ID] = &cp
	return nil
}

func (s *PredictionStore) Get(ctx context.Context, scope contracts.Scope, id string) (*contracts.Prediction, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.predictions[id]
	if !ok || p.Scope != scope {
		return nil, contracts.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *PredictionStore) List(ctx context.Context, scope contracts.Scope, filter contracts.PredictionFilter) ([]contracts.Prediction, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	now := time.Now()
	var out []contracts.Prediction
	for _, p := range s.predictions {
		if p.Scope != scope {
			continue
		}
		if filter.TargetSymbol != "" && !strings.EqualFold(p.TargetSymbol, filter.TargetSymbol) {
			continue
		}
		if filter.ActiveOnly && !p.Live(now) {
			continue
		}
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GeneratedAt.After(out[j].GeneratedAt) })
	return paginate(out, filter.Offset, filter.Limit), nil
}

func (s *PredictionStore) ExpireDue(ctx context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, p := range s.predictions {
		if !p.Expired && !now.Before(p.ExpiresAt) {
			p.Expired = true
			n++
		}
	}
	return n, nil
}

func (s *PredictionStore) DeleteByScope(ctx context.Context, scope contracts.Scope) (int64, error) {
	if err := scope.Validate(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, p := range s.predictions {
		if p.Scope == scope {
			delete(s.predictions, id)
			n++
		}
	}
	return n, nil
}

// ScenarioStore is an in-memory contracts.ScenarioRepository.
type ScenarioStore struct {
	mu        sync.RWMutex
	scenarios map[string]*contracts.TestScenario
	sources   map[string][]contracts.Source
}

// NewScenarioStore creates an empty scenario store.
func NewScenarioStore() *ScenarioStore {
	return &ScenarioStore{
		scenarios: make(map[string]*contracts.TestScenario),
		sources:   make(map[string][]contracts.Source),
	}
}

func (s *ScenarioStore) Create(ctx context.Context, sc *contracts.TestScenario) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *sc
	s.scenarios[sc.ID] = &cp
	return nil
}

func (s *ScenarioStore) Get(ctx context.Context, id string) (*contracts.TestScenario, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sc, ok := s.scenarios[id]
	if !ok {
		return nil, contracts.ErrNotFound
	}
	cp := *sc
	return &cp, nil
}

func (s *ScenarioStore) Update(ctx context.Context, sc *contracts.TestScenario) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.scenarios[sc.ID]; !ok {
		return contracts.ErrNotFound
	}
	cp := *sc
	s.scenarios[sc.ID] = &cp
	return nil
}

func (s *ScenarioStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.scenarios[id]; !ok {
		return contracts.ErrNotFound
	}
	delete(s.scenarios, id)
	delete(s.sources, id)
	return nil
}

func (s *ScenarioStore) List(ctx context.Context) ([]contracts.TestScenario, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]contracts.TestScenario, 0, len(s.scenarios))
	for _, sc := range s.scenarios {
		out = append(out, *sc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *ScenarioStore) SaveSources(ctx context.Context, scenarioID string, sources []contracts.Source) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sources[scenarioID] = append(s.sources[scenarioID], sources...)
	return nil
}

func (s *ScenarioStore) GetSources(ctx context.Context, scenarioID string) ([]contracts.Source, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]contracts.Source(nil), s.sources[scenarioID]...), nil
}

func (s *ScenarioStore) DeleteSources(ctx context.Context, scenarioID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := int64(len(s.sources[scenarioID]))
	delete(s.sources, scenarioID)
	return n, nil
}

func paginate[T any](in []T, offset, limit int) []T {
	if offset >= len(in) {
		return nil
	}
	in = in[offset:]
	if limit > 0 && limit < len(in) {
		in = in[:limit]
	}
	return in
}
