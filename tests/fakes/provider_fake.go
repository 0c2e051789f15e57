package fakes

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/systmms/awsmenv/pkg/provider"
)

type fetchKey struct {
	kind provider.Kind
	name string
}

// FakeFetcher is an in-memory provider.Fetcher.
//
// Names without a configured secret or error yield provider.NotFoundError.
// Delays honour context cancellation.
type FakeFetcher struct {
	mu        sync.Mutex
	secrets   map[fetchKey]string
	failOn    map[fetchKey]error
	delays    map[fetchKey]time.Duration
	callCount map[fetchKey]int
	calls     []string
	inFlight  int
	maxFlight int
}

// NewFakeFetcher creates an empty FakeFetcher.
func NewFakeFetcher() *FakeFetcher {
	return &FakeFetcher{
		secrets:   make(map[fetchKey]string),
		failOn:    make(map[fetchKey]error),
		delays:    make(map[fetchKey]time.Duration),
		callCount: make(map[fetchKey]int),
	}
}

// WithSecret stores a secret value.
func (f *FakeFetcher) WithSecret(kind provider.Kind, name, value string) *FakeFetcher {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.secrets[fetchKey{kind, name}] = value
	return f
}

// WithError makes fetching name fail with err.
func (f *FakeFetcher) WithError(kind provider.Kind, name string, err error) *FakeFetcher {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failOn[fetchKey{kind, name}] = err
	return f
}

// WithDelay adds latency to fetches of name.
func (f *FakeFetcher) WithDelay(kind provider.Kind, name string, d time.Duration) *FakeFetcher {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delays[fetchKey{kind, name}] = d
	return f
}

// Fetch implements provider.Fetcher.
func (f *FakeFetcher) Fetch(ctx context.Context, kind provider.Kind, name string) (string, error) {
	key := fetchKey{kind, name}

	f.mu.Lock()
	f.callCount[key]++
	f.calls = append(f.calls, fmt.Sprintf("%s:%s", kind.Tag(), name))
	f.inFlight++
	if f.inFlight > f.maxFlight {
		f.maxFlight = f.inFlight
	}
	delay := f.delays[key]
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.inFlight--
		f.mu.Unlock()
	}()

	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-timer.C:
		}
	} else if err := ctx.Err(); err != nil {
		return "", err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if err, ok := f.failOn[key]; ok {
		return "", err
	}
	if v, ok := f.secrets[key]; ok {
		return v, nil
	}
	return "", provider.NotFoundError{Provider: kind.String(), Key: name}
}

// CallCount returns how many times name was fetched.
func (f *FakeFetcher) CallCount(kind provider.Kind, name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.callCount[fetchKey{kind, name}]
}

// TotalCalls returns the number of fetches across all names.
func (f *FakeFetcher) TotalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// Calls returns "tag:name" for every fetch in call order.
func (f *FakeFetcher) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}

// MaxConcurrent returns the highest number of simultaneous fetches observed.
func (f *FakeFetcher) MaxConcurrent() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxFlight
}

// FakeProvider is a provider.Provider backed by a FakeFetcher for one kind.
type FakeProvider struct {
	name        string
	kind        provider.Kind
	fetcher     *FakeFetcher
	validateErr error
}

// NewFakeProvider creates a FakeProvider serving kind.
func NewFakeProvider(name string, kind provider.Kind) *FakeProvider {
	return &FakeProvider{name: name, kind: kind, fetcher: NewFakeFetcher()}
}

// WithSecret stores a secret value.
func (p *FakeProvider) WithSecret(name, value string) *FakeProvider {
	p.fetcher.WithSecret(p.kind, name, value)
	return p
}

// WithError makes fetching name fail with err.
func (p *FakeProvider) WithError(name string, err error) *FakeProvider {
	p.fetcher.WithError(p.kind, name, err)
	return p
}

// WithValidateError makes Validate fail.
func (p *FakeProvider) WithValidateError(err error) *FakeProvider {
	p.validateErr = err
	return p
}

// Name implements provider.Provider.
func (p *FakeProvider) Name() string { return p.name }

// Kind implements provider.Provider.
func (p *FakeProvider) Kind() provider.Kind { return p.kind }

// Fetch implements provider.Provider.
func (p *FakeProvider) Fetch(ctx context.Context, name string) (string, error) {
	return p.fetcher.Fetch(ctx, p.kind, name)
}

// Validate implements provider.Provider.
func (p *FakeProvider) Validate(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.validateErr
}

// CallCount returns how many times name was fetched.
func (p *FakeProvider) CallCount(name string) int {
	return p.fetcher.CallCount(p.kind, name)
}
