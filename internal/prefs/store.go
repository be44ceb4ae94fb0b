package prefs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"
)

const (
	subscriptionsPrefix = "subscriptions_"
	agentsPrefix        = "agents_"
	ethosPrefix         = "ethos_"
)

// ErrNoIdentity is returned by ethos operations without a connected identity.
var ErrNoIdentity = errors.New("no connected identity")

// Subscription marks a followed DAO.
type Subscription struct {
	DAO          string    `json:"dao"`
	SubscribedAt time.Time `json:"subscribedAt"`
}

// Agent marks a DAO with automated participation enabled. AddedSubscription
// records that starting the agent also subscribed the identity.
type Agent struct {
	DAO               string    `json:"dao"`
	StartedAt         time.Time `json:"startedAt"`
	AddedSubscription bool      `json:"addedSubscription"`
}

// Store owns the KV backend and serialises read-modify-write cycles across
// every identity.
type Store struct {
	kv  KV
	mu  sync.Mutex
	now func() time.Time
}

func NewStore(kv KV) *Store {
	return &Store{kv: kv, now: time.Now}
}

// View is the slice of preferences belonging to one identity.
type View struct {
	Identity      string
	Subscriptions Subscriptions
	Agents        Agents
	Ethos         Ethos
}

// For returns the stores scoped to identity. An empty identity yields the
// anonymous view: empty reads, no-op writes, ErrNoIdentity for ethos.
func (s *Store) For(identity string) View {
	return View{
		Identity:      identity,
		Subscriptions: Subscriptions{store: s, identity: identity},
		Agents:        Agents{store: s, identity: identity},
		Ethos:         Ethos{store: s, identity: identity},
	}
}

func (s *Store) Ping(ctx context.Context) error { return s.kv.Ping(ctx) }
func (s *Store) Close() error                   { return s.kv.Close() }

func (s *Store) readJSON(ctx context.Context, key string, out any) error {
	raw, ok, err := s.kv.Get(ctx, key)
	if err != nil {
		return err
	}
	if !ok || raw == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

func (s *Store) writeJSON(ctx context.Context, key string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.kv.Set(ctx, key, string(payload))
}

type Subscriptions struct {
	store    *Store
	identity string
}

func (s Subscriptions) key() string { return subscriptionsPrefix + s.identity }

func (s Subscriptions) load(ctx context.Context) ([]Subscription, error) {
	out := []Subscription{}
	if s.identity == "" {
		return out, nil
	}
	if err := s.store.readJSON(ctx, s.key(), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s Subscriptions) List(ctx context.Context) ([]Subscription, error) {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	return s.load(ctx)
}

func (s Subscriptions) Has(ctx context.Context, dao string) (bool, error) {
	subs, err := s.List(ctx)
	if err != nil {
		return false, err
	}
	return indexSubscription(subs, dao) >= 0, nil
}

// Add subscribes to dao. Adding an existing subscription is a no-op.
func (s Subscriptions) Add(ctx context.Context, dao string) error {
	if s.identity == "" {
		return nil
	}
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	_, err := s.add(ctx, dao)
	return err
}

func (s Subscriptions) add(ctx context.Context, dao string) (bool, error) {
	subs, err := s.load(ctx)
	if err != nil {
		return false, err
	}
	if indexSubscription(subs, dao) >= 0 {
		return false, nil
	}
	subs = append(subs, Subscription{DAO: dao, SubscribedAt: s.store.now().UTC()})
	return true, s.store.writeJSON(ctx, s.key(), subs)
}

// Remove unsubscribes from dao; removing an absent subscription is a no-op.
func (s Subscriptions) Remove(ctx context.Context, dao string) error {
	if s.identity == "" {
		return nil
	}
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	return s.remove(ctx, dao)
}

func (s Subscriptions) remove(ctx context.Context, dao string) error {
	subs, err := s.load(ctx)
	if err != nil {
		return err
	}
	i := indexSubscription(subs, dao)
	if i < 0 {
		return nil
	}
	return s.store.writeJSON(ctx, s.key(), slices.Delete(subs, i, i+1))
}

func indexSubscription(subs []Subscription, dao string) int {
	return slices.IndexFunc(subs, func(sub Subscription) bool { return sub.DAO == dao })
}

type Agents struct {
	store    *Store
	identity string
}

func (a Agents) key() string { return agentsPrefix + a.identity }

func (a Agents) subscriptions() Subscriptions {
	return Subscriptions{store: a.store, identity: a.identity}
}

func (a Agents) load(ctx context.Context) ([]Agent, error) {
	out := []Agent{}
	if a.identity == "" {
		return out, nil
	}
	if err := a.store.readJSON(ctx, a.key(), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (a Agents) List(ctx context.Context) ([]Agent, error) {
	a.store.mu.Lock()
	defer a.store.mu.Unlock()
	return a.load(ctx)
}

func (a Agents) Has(ctx context.Context, dao string) (bool, error) {
	agents, err := a.List(ctx)
	if err != nil {
		return false, err
	}
	return indexAgent(agents, dao) >= 0, nil
}

// Start activates the agent for dao and subscribes to it if needed. Starting
// an active agent returns it unchanged.
func (a Agents) Start(ctx context.Context, dao string) (Agent, error) {
	if a.identity == "" {
		return Agent{}, nil
	}
	a.store.mu.Lock()
	defer a.store.mu.Unlock()

	agents, err := a.load(ctx)
	if err != nil {
		return Agent{}, err
	}
	if i := indexAgent(agents, dao); i >= 0 {
		return agents[i], nil
	}

	added, err := a.subscriptions().add(ctx, dao)
	if err != nil {
		return Agent{}, err
	}
	agent := Agent{DAO: dao, StartedAt: a.store.now().UTC(), AddedSubscription: added}
	if err := a.store.writeJSON(ctx, a.key(), append(agents, agent)); err != nil {
		if added {
			if rbErr := a.subscriptions().remove(ctx, dao); rbErr != nil {
				return Agent{}, errors.Join(err, rbErr)
			}
		}
		return Agent{}, err
	}
	return agent, nil
}

// Stop deactivates the agent for dao and drops the subscription Start added.
// Stopping an absent agent is a no-op.
func (a Agents) Stop(ctx context.Context, dao string) error {
	if a.identity == "" {
		return nil
	}
	a.store.mu.Lock()
	defer a.store.mu.Unlock()

	agents, err := a.load(ctx)
	if err != nil {
		return err
	}
	i := indexAgent(agents, dao)
	if i < 0 {
		return nil
	}
	agent := agents[i]
	if agent.AddedSubscription {
		if err := a.subscriptions().remove(ctx, dao); err != nil {
			return err
		}
	}
	if err := a.store.writeJSON(ctx, a.key(), slices.Delete(agents, i, i+1)); err != nil {
		if agent.AddedSubscription {
			if _, rbErr := a.subscriptions().add(ctx, dao); rbErr != nil {
				return errors.Join(err, rbErr)
			}
		}
		return err
	}
	return nil
}

func indexAgent(agents []Agent, dao string) int {
	return slices.IndexFunc(agents, func(ag Agent) bool { return ag.DAO == dao })
}

type Ethos struct {
	store    *Store
	identity string
}

func (e Ethos) key() string { return ethosPrefix + e.identity }

// Get returns the saved ethos, or "" when none was saved.
func (e Ethos) Get(ctx context.Context) (string, error) {
	if e.identity == "" {
		return "", ErrNoIdentity
	}
	v, _, err := e.store.kv.Get(ctx, e.key())
	if err != nil {
		return "", err
	}
	return v, nil
}

// Set overwrites the ethos.
func (e Ethos) Set(ctx context.Context, text string) error {
	if e.identity == "" {
		return ErrNoIdentity
	}
	e.store.mu.Lock()
	defer e.store.mu.Unlock()
	return e.store.kv.Set(ctx, e.key(), text)
}

// Profile is every preference of one identity.
type Profile struct {
	Identity      string         `json:"identity"`
	Subscriptions []Subscription `json:"subscriptions"`
	Agents        []Agent        `json:"agents"`
	Ethos         string         `json:"ethos"`
}

// Load reads the whole view. The anonymous view has an empty ethos.
func (v View) Load(ctx context.Context) (Profile, error) {
	p := Profile{Identity: v.Identity}
	var err error
	if p.Subscriptions, err = v.Subscriptions.List(ctx); err != nil {
		return Profile{}, err
	}
	if p.Agents, err = v.Agents.List(ctx); err != nil {
		return Profile{}, err
	}
	if v.Identity != "" {
		if p.Ethos, err = v.Ethos.Get(ctx); err != nil {
			return Profile{}, err
		}
	}
	return p, nil
}
