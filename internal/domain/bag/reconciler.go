// Package bag is the draft reconciler: it routes bag operations to the
// device-local or the remote draft store depending on who the shopper is,
// keeps an optimistic in-memory view for scopes whose count is being
// watched, and moves anonymous drafts into the user's scope once after
// sign-in.
package bag

import (
	"context"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/xenking/stitchbag/internal/domain/draft"
	"github.com/xenking/stitchbag/internal/domain/identity"
	"github.com/xenking/stitchbag/internal/domain/persist"
	"github.com/xenking/stitchbag/internal/domain/pricing"
	"github.com/xenking/stitchbag/internal/optimistic"
)

const instrumentationName = "github.com/xenking/stitchbag/internal/domain/bag"

// Stores pairs the device-local store for anonymous scopes with the remote
// store for user scopes.
type Stores struct {
	Local  draft.Store
	Remote draft.Store
}

// For returns the store that holds scope.
func (s Stores) For(scope identity.Scope) (draft.Store, error) {
	switch {
	case !scope.Valid():
		return nil, identity.ErrMissingDevice
	case scope.IsUser():
		return s.Remote, nil
	default:
		return s.Local, nil
	}
}

// Line is a bag entry annotated with a freshly computed price.
type Line struct {
	Draft     draft.Draft       `json:"draft"`
	Price     pricing.Breakdown `json:"price"`
	LineTotal decimal.Decimal   `json:"lineTotal"`
	// Unpriced is set when the draft references catalog entries that no
	// longer exist; Draft.EstimatedPrice then holds the last cached total.
	Unpriced bool `json:"unpriced,omitempty"`
}

// AddRequest describes a new bag line.
type AddRequest struct {
	ServiceType draft.ServiceType `json:"serviceType"`
	DesignID    string            `json:"designId"`
	Selections  draft.Selections  `json:"selections"`
	// Quantity defaults to 1 when zero.
	Quantity int `json:"quantity"`
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) { r.now = now }
}

// WithIDGenerator overrides the draft id generator.
func WithIDGenerator(gen func() string) Option {
	return func(r *Reconciler) { r.newID = gen }
}

// WithTelemetry sets the tracer and meter providers.
func WithTelemetry(tp trace.TracerProvider, mp metric.MeterProvider) Option {
	return func(r *Reconciler) {
		if tp != nil {
			r.tp = tp
		}
		if mp != nil {
			r.mp = mp
		}
	}
}

// Reconciler orchestrates draft reads and writes for every scope.
type Reconciler struct {
	stores  Stores
	quoter  *pricing.Quoter
	markers identity.MarkerStore
	runner  *optimistic.Runner
	locks   optimistic.Locks

	now   func() time.Time
	newID func() string

	tp       trace.TracerProvider
	mp       metric.MeterProvider
	tracer   trace.Tracer
	migrated metric.Int64Counter

	mu    sync.Mutex
	views map[identity.Scope]*view
}

// NewReconciler creates a Reconciler.
func NewReconciler(
	stores Stores,
	quoter *pricing.Quoter,
	markers identity.MarkerStore,
	opts ...Option,
) (*Reconciler, error) {
	r := &Reconciler{
		stores:  stores,
		quoter:  quoter,
		markers: markers,
		now:     time.Now,
		newID:   uuid.NewString,
		tp:      tracenoop.NewTracerProvider(),
		mp:      metricnoop.NewMeterProvider(),
		views:   make(map[identity.Scope]*view),
	}
	for _, o := range opts {
		o(r)
	}

	runner, err := optimistic.NewRunner(r.tp, r.mp)
	if err != nil {
		return nil, err
	}
	r.runner = runner
	r.tracer = r.tp.Tracer(instrumentationName)

	r.migrated, err = r.mp.Meter(instrumentationName).Int64Counter("bag.migrated_drafts",
		metric.WithDescription("Anonymous drafts copied into a user scope"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create migration counter")
	}
	return r, nil
}

// view is the in-memory bag of one scope. It holds only editable drafts
// and lives only while somebody is subscribed to the scope's count.
type view struct {
	drafts  map[string]draft.Draft
	subs    map[int]chan int
	nextSub int
}

func newView(list []draft.Draft) *view {
	v := &view{subs: make(map[int]chan int)}
	v.install(list)
	return v
}

func (v *view) install(list []draft.Draft) {
	v.drafts = make(map[string]draft.Draft, len(list))
	for _, d := range list {
		if d.Editable() {
			v.drafts[d.ID] = d.Clone()
		}
	}
}

// replaceView makes the store contents the new view, if the scope has one.
func (r *Reconciler) replaceView(scope identity.Scope, list []draft.Draft) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.views[scope]
	if !ok {
		return
	}
	v.install(list)
	v.publishLocked()
}

func (r *Reconciler) setInView(scope identity.Scope, d draft.Draft) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.views[scope]
	if !ok {
		return
	}
	v.drafts[d.ID] = d.Clone()
	v.publishLocked()
}

func (r *Reconciler) removeFromView(scope identity.Scope, id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.views[scope]
	if !ok {
		return
	}
	if _, ok := v.drafts[id]; !ok {
		return
	}
	delete(v.drafts, id)
	v.publishLocked()
}

func (r *Reconciler) fromView(scope identity.Scope, id string) (draft.Draft, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.views[scope]
	if !ok {
		return draft.Draft{}, false
	}
	d, ok := v.drafts[id]
	if !ok {
		return draft.Draft{}, false
	}
	return d.Clone(), true
}

// viewCount returns the number of scopes with a live view.
func (r *Reconciler) viewCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.views)
}

// lockDraft serializes mutations of one draft id within a scope.
func (r *Reconciler) lockDraft(ctx context.Context, scope identity.Scope, id string) (func(), error) {
	return r.locks.Lock(ctx, scope.String()+"/"+id)
}

// current reads the draft from the store, the source of truth, and keeps
// the view in line with what it finds.
func (r *Reconciler) current(ctx context.Context, scope identity.Scope, store draft.Store, id string) (*draft.Draft, error) {
	d, err := store.Get(ctx, scope, id)
	if err != nil {
		if errors.Is(err, persist.ErrNotFound) {
			r.removeFromView(scope, id)
		}
		return nil, err
	}
	return d, nil
}
