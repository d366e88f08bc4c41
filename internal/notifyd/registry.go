// Copyright 2026 New Relic Corporation. All rights reserved.
// SPDX-License-Identifier: Apache-2.0
package notifyd

import (
	"fmt"
	"sort"
	"sync"

	"github.com/golang/groupcache/lru"
	"go.uber.org/multierr"

	"github.com/amratab/xctool/pkg/log"
	"github.com/amratab/xctool/pkg/notification"
	"github.com/amratab/xctool/pkg/notify/wire"
)

type registration struct {
	token     wire.Token
	owner     string
	name      notification.Name
	mechanism notification.Mechanism
	target    Target

	// posted since the last check, starts true so the first check reports true
	posted    bool
	suspended bool
	// a post arrived while suspended, delivered once on resume
	pending bool
}

type nameEntry struct {
	regs  map[wire.Token]*registration
	state uint64
	posts uint64
}

type delivery struct {
	token     wire.Token
	name      notification.Name
	mechanism notification.Mechanism
	target    Target
}

// NameInfo describes a name with live registrations.
type NameInfo struct {
	Name          notification.Name `json:"name"`
	Registrations int               `json:"registrations"`
	State         uint64            `json:"state"`
	Posts         uint64            `json:"posts"`
}

// Stats is a point in time summary of the registry.
type Stats struct {
	Names         int            `json:"names"`
	Registrations int            `json:"registrations"`
	ByMechanism   map[string]int `json:"by_mechanism"`
	Posts         uint64         `json:"posts"`
	Retained      int            `json:"retained_states"`
}

// Registry keeps every registration of the daemon, keyed by token and by name.
// Tokens are scoped to the owner that created them: any other owner gets
// wire.ErrInvalidToken.
type Registry struct {
	mu        sync.Mutex
	nextToken wire.Token
	byToken   map[wire.Token]*registration
	byName    map[notification.Name]*nameEntry
	// states of names nobody is registered for anymore
	retained *lru.Cache
	posts    uint64

	maxNameLength int
	metrics       *Metrics
	logger        log.Entry
}

// NewRegistry creates a registry. retention bounds how many states of
// unregistered names are kept, 0 disables retention.
func NewRegistry(maxNameLength, retention int, metrics *Metrics) *Registry {
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	r := &Registry{
		byToken:       make(map[wire.Token]*registration),
		byName:        make(map[notification.Name]*nameEntry),
		maxNameLength: maxNameLength,
		metrics:       metrics,
		logger:        log.WithComponent("Registry"),
	}
	if retention > 0 {
		r.retained = lru.New(retention)
	}
	return r
}

func (r *Registry) validate(name notification.Name) error {
	if err := name.Validate(r.maxNameLength); err != nil {
		return fmt.Errorf("%w: %v", wire.ErrInvalidName, err)
	}
	return nil
}

// Register adds a registration for name and returns its token. The registry
// owns target from now on, also when an error is returned.
func (r *Registry) Register(owner string, name notification.Name, mechanism notification.Mechanism, target Target) (wire.Token, error) {
	if err := r.validate(name); err != nil {
		_ = target.Close()
		return 0, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextToken++
	reg := &registration{
		token:     r.nextToken,
		owner:     owner,
		name:      name,
		mechanism: mechanism,
		target:    target,
		posted:    true,
	}

	entry, ok := r.byName[name]
	if !ok {
		entry = &nameEntry{regs: make(map[wire.Token]*registration)}
		if r.retained != nil {
			if state, found := r.retained.Get(name); found {
				entry.state = state.(uint64)
				r.retained.Remove(name)
			}
		}
		r.byName[name] = entry
	}
	entry.regs[reg.token] = reg
	r.byToken[reg.token] = reg
	r.metrics.Registrations.WithLabelValues(mechanism.String()).Inc()

	r.logger.
		WithNotification(string(name)).
		WithToken(int32(reg.token)).
		WithSession(owner).
		WithField("mechanism", mechanism.String()).
		Debug("Registered.")
	return reg.token, nil
}

// Post delivers name to every registration of it and returns how many
// deliveries were attempted. Posting a name nobody registered is not an error.
func (r *Registry) Post(name notification.Name) (int, error) {
	if err := r.validate(name); err != nil {
		return 0, err
	}

	r.mu.Lock()
	r.posts++
	r.metrics.Posts.Inc()
	var deliveries []delivery
	if entry, ok := r.byName[name]; ok {
		entry.posts++
		for _, reg := range entry.regs {
			reg.posted = true
			if reg.suspended {
				reg.pending = true
				continue
			}
			deliveries = append(deliveries, reg.delivery())
		}
	}
	r.mu.Unlock()

	r.deliver(deliveries)
	return len(deliveries), nil
}

func (reg *registration) delivery() delivery {
	return delivery{token: reg.token, name: reg.name, mechanism: reg.mechanism, target: reg.target}
}

// deliver runs outside the registry lock, targets may block up to their timeout.
func (r *Registry) deliver(deliveries []delivery) {
	sort.Slice(deliveries, func(i, j int) bool { return deliveries[i].token < deliveries[j].token })

	for _, d := range deliveries {
		mechanism := d.mechanism.String()
		err := d.target.Deliver(d.token, d.name)
		if err == nil {
			r.metrics.Deliveries.WithLabelValues(mechanism).Inc()
			continue
		}

		r.metrics.DeliveryFailures.WithLabelValues(mechanism).Inc()
		dlog := r.logger.WithNotification(string(d.name)).WithToken(int32(d.token)).WithError(err)
		if consumerGone(err) {
			dlog.Info("Consumer gone, dropping registration.")
			r.drop(d.token)
		} else {
			dlog.Warn("Delivery failed.")
		}
	}
}

// Cancel removes a registration. The token cannot be used afterwards.
func (r *Registry) Cancel(owner string, token wire.Token) error {
	r.mu.Lock()
	reg, err := r.lookup(owner, token)
	if err != nil {
		r.mu.Unlock()
		return err
	}
	r.remove(reg)
	r.mu.Unlock()

	return reg.target.Close()
}

// CancelOwner removes every registration owned by owner, used when a client goes away.
func (r *Registry) CancelOwner(owner string) error {
	r.mu.Lock()
	var owned []*registration
	for _, reg := range r.byToken {
		if reg.owner == owner {
			owned = append(owned, reg)
		}
	}
	for _, reg := range owned {
		r.remove(reg)
	}
	r.mu.Unlock()

	var err error
	for _, reg := range owned {
		err = multierr.Append(err, reg.target.Close())
	}
	if len(owned) > 0 {
		r.logger.WithSession(owner).WithField("registrations", len(owned)).Debug("Cancelled client registrations.")
	}
	return err
}

func (r *Registry) drop(token wire.Token) {
	r.mu.Lock()
	reg, ok := r.byToken[token]
	if ok {
		r.remove(reg)
	}
	r.mu.Unlock()

	if ok {
		_ = reg.target.Close()
	}
}

// remove must be called with the lock held.
func (r *Registry) remove(reg *registration) {
	delete(r.byToken, reg.token)
	r.metrics.Registrations.WithLabelValues(reg.mechanism.String()).Dec()

	entry, ok := r.byName[reg.name]
	if !ok {
		return
	}
	delete(entry.regs, reg.token)
	if len(entry.regs) > 0 {
		return
	}
	delete(r.byName, reg.name)
	if r.retained != nil && entry.state != 0 {
		r.retained.Add(reg.name, entry.state)
	}
}

// lookup must be called with the lock held.
func (r *Registry) lookup(owner string, token wire.Token) (*registration, error) {
	reg, ok := r.byToken[token]
	if !ok || reg.owner != owner {
		return nil, fmt.Errorf("%w: %d", wire.ErrInvalidToken, token)
	}
	return reg, nil
}

// Check reports whether name was posted since the last check of token.
func (r *Registry) Check(owner string, token wire.Token) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	reg, err := r.lookup(owner, token)
	if err != nil {
		return false, err
	}
	posted := reg.posted
	reg.posted = false
	return posted, nil
}

// Suspend holds deliveries for token until Resume. Posts meanwhile coalesce.
func (r *Registry) Suspend(owner string, token wire.Token) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	reg, err := r.lookup(owner, token)
	if err != nil {
		return err
	}
	reg.suspended = true
	return nil
}

// Resume releases a suspended token, delivering once if anything was posted.
func (r *Registry) Resume(owner string, token wire.Token) error {
	r.mu.Lock()
	reg, err := r.lookup(owner, token)
	if err != nil {
		r.mu.Unlock()
		return err
	}
	var deliveries []delivery
	if reg.suspended && reg.pending {
		deliveries = append(deliveries, reg.delivery())
	}
	reg.suspended = false
	reg.pending = false
	r.mu.Unlock()

	r.deliver(deliveries)
	return nil
}

// SetState sets the state of the name token is registered for.
func (r *Registry) SetState(owner string, token wire.Token, state uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	reg, err := r.lookup(owner, token)
	if err != nil {
		return err
	}
	r.byName[reg.name].state = state
	return nil
}

// GetState returns the state of the name token is registered for.
func (r *Registry) GetState(owner string, token wire.Token) (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	reg, err := r.lookup(owner, token)
	if err != nil {
		return 0, err
	}
	return r.byName[reg.name].state, nil
}

// Names lists names with live registrations, sorted by name.
func (r *Registry) Names() []NameInfo {
	r.mu.Lock()
	defer r.mu.Unlock()

	infos := make([]NameInfo, 0, len(r.byName))
	for name, entry := range r.byName {
		infos = append(infos, NameInfo{
			Name:          name,
			Registrations: len(entry.regs),
			State:         entry.state,
			Posts:         entry.posts,
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

func (r *Registry) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	stats := Stats{
		Names:         len(r.byName),
		Registrations: len(r.byToken),
		ByMechanism:   make(map[string]int),
		Posts:         r.posts,
	}
	for _, reg := range r.byToken {
		stats.ByMechanism[reg.mechanism.String()]++
	}
	if r.retained != nil {
		stats.Retained = r.retained.Len()
	}
	return stats
}
