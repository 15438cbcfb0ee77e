package field

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/geomag/geomagd/internal/geodesy"
	"github.com/geomag/geomagd/internal/igrf"
	"github.com/geomag/geomagd/internal/metrics"
)

// ErrNoModelSet reports evaluation against a store with nothing loaded.
var ErrNoModelSet = errors.New("no model set loaded")

// synthCache holds the synthesized model for one (set, epoch) pair.
// Immutable after construction; safe for concurrent reads.
type synthCache struct {
	set   *igrf.ModelSet
	epoch float64
	model igrf.Model
}

// Evaluator computes field vectors against the model set held by a Store.
// The synthesized per-epoch model is memoized behind an atomic pointer with
// a mutex-serialized rebuild, so repeated queries at one instant (grids,
// tracks) synthesize once. The cache is invalidated when the store swaps
// in a new set.
type Evaluator struct {
	store *igrf.Store
	cache atomic.Pointer[synthCache]
	mu    sync.Mutex // serializes cache rebuilds
}

// NewEvaluator creates an Evaluator reading model sets from store.
func NewEvaluator(store *igrf.Store) *Evaluator {
	return &Evaluator{store: store}
}

// synthesized returns the model for the epoch, rebuilding the cache if the
// epoch or the underlying set changed (double-checked locking).
func (e *Evaluator) synthesized(set *igrf.ModelSet, epoch float64) (*igrf.Model, error) {
	if c := e.cache.Load(); c != nil && c.set == set && c.epoch == epoch {
		return &c.model, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if c := e.cache.Load(); c != nil && c.set == set && c.epoch == epoch {
		return &c.model, nil
	}

	model, err := set.SynthesizeAt(epoch)
	if err != nil {
		return nil, err
	}
	c := &synthCache{set: set, epoch: epoch, model: model}
	e.cache.Store(c)
	return &c.model, nil
}

// Field computes the NED field vector in nanotesla.
func (e *Evaluator) Field(t time.Time, pos geodesy.Position) (Vector, error) {
	set := e.store.Get()
	if set == nil {
		return Vector{}, ErrNoModelSet
	}

	start := time.Now()
	model, err := e.synthesized(set, geodesy.FractionalYears(t))
	if err != nil {
		metrics.RecordEvaluation(time.Since(start), false)
		return Vector{}, err
	}
	geom, err := pos.LocalGeometry()
	if err != nil {
		metrics.RecordEvaluation(time.Since(start), false)
		return Vector{}, err
	}

	v := evaluate(model, geom)
	metrics.RecordEvaluation(time.Since(start), true)
	return v, nil
}

// FieldScaled computes the field vector in the requested unit.
func (e *Evaluator) FieldScaled(t time.Time, pos geodesy.Position, u Unit) (Vector, error) {
	v, err := e.Field(t, pos)
	if err != nil {
		return Vector{}, err
	}
	return v.Scaled(u), nil
}
