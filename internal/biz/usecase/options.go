package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"sync"

	"github.com/anthropics/feishu-voice-summary/internal/biz/domain"
	"github.com/anthropics/feishu-voice-summary/internal/biz/repo"
)

// Option set errors
var (
	ErrUnknownOption = errors.New("unknown option")
	ErrInvalidNumber = errors.New("invalid number")
)

// OutOfRangeError reports a value outside an option's inclusive bounds.
type OutOfRangeError struct {
	Key string
	Min int
	Max int
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("out of range: %d..%d", e.Min, e.Max)
}

// OptionDefaults are the compiled defaults for the runtime options.
// Several of them are seeded from environment configuration at startup.
type OptionDefaults struct {
	DailyLimitSeconds        int
	SummaryCooldownSeconds   int
	SummaryDailyLimitPerUser int
	SummaryReuseWindowMin    int
	MessageBufferMaxPerChat  int
	SummaryHistoryMaxPerChat int
}

// Options is the runtime option registry: a fixed set of named integer
// limits, each with a default and inclusive bounds, plus a sparse override
// overlay persisted through a snapshot store. Every mutation rewrites the
// whole overlay.
type Options struct {
	store repo.SnapshotStore

	mu        sync.Mutex
	specs     []domain.OptionSpec
	specByKey map[string]domain.OptionSpec
	overrides map[string]int
}

// NewOptions creates the registry and loads the persisted override overlay.
// An unreadable overlay is logged and treated as empty.
func NewOptions(ctx context.Context, store repo.SnapshotStore, defaults OptionDefaults) *Options {
	specs := []domain.OptionSpec{
		{Key: domain.OptDailyLimitSeconds, Default: defaults.DailyLimitSeconds, Min: 60, Max: 24 * 60 * 60},
		{Key: domain.OptMaxSummaryMessages, Default: 400, Min: 5, Max: 400},
		{Key: domain.OptSummaryCooldownSeconds, Default: defaults.SummaryCooldownSeconds, Min: 0, Max: 600},
		{Key: domain.OptSummaryDailyLimitPerUser, Default: defaults.SummaryDailyLimitPerUser, Min: 1, Max: 500},
		{Key: domain.OptSummaryReuseWindowMin, Default: defaults.SummaryReuseWindowMin, Min: 1, Max: 24 * 60},
		{Key: domain.OptMessageBufferMaxPerChat, Default: defaults.MessageBufferMaxPerChat, Min: 20, Max: 5000},
		{Key: domain.OptSummaryHistoryMaxPerChat, Default: defaults.SummaryHistoryMaxPerChat, Min: 1, Max: 100},
	}

	o := &Options{
		store:     store,
		specs:     specs,
		specByKey: make(map[string]domain.OptionSpec, len(specs)),
		overrides: make(map[string]int),
	}
	for _, spec := range specs {
		o.specByKey[spec.Key] = spec
	}

	overrides := make(map[string]int)
	if _, err := store.Load(ctx, &overrides); err != nil {
		fmt.Printf("[Options] Could not read settings overlay, using defaults: %v\n", err)
		overrides = make(map[string]int)
	}
	// Drop overrides for keys that no longer exist
	for key := range overrides {
		if _, ok := o.specByKey[key]; !ok {
			delete(overrides, key)
		}
	}
	o.overrides = overrides

	return o
}

// Get returns the effective value: the override if present, else the default.
func (o *Options) Get(key string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.effective(key)
}

func (o *Options) effective(key string) int {
	if v, ok := o.overrides[key]; ok {
		return v
	}
	return o.specByKey[key].Default
}

// List returns every option with its effective value, in declaration order.
func (o *Options) List() []domain.OptionView {
	o.mu.Lock()
	defer o.mu.Unlock()

	out := make([]domain.OptionView, 0, len(o.specs))
	for _, spec := range o.specs {
		_, overridden := o.overrides[spec.Key]
		out = append(out, domain.OptionView{
			Key:        spec.Key,
			Value:      o.effective(spec.Key),
			Default:    spec.Default,
			Overridden: overridden,
		})
	}
	return out
}

// Has reports whether key names a known option.
func (o *Options) Has(key string) bool {
	_, ok := o.specByKey[key]
	return ok
}

// Set validates rawValue and stores it as an override. The value is parsed
// as a number, truncated to an integer and checked against the option's
// inclusive bounds. Returns the stored value.
func (o *Options) Set(ctx context.Context, key, rawValue string) (int, error) {
	spec, ok := o.specByKey[key]
	if !ok {
		return 0, ErrUnknownOption
	}

	f, err := strconv.ParseFloat(rawValue, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, ErrInvalidNumber
	}

	value := int(math.Trunc(f))
	if value < spec.Min || value > spec.Max {
		return 0, &OutOfRangeError{Key: key, Min: spec.Min, Max: spec.Max}
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	o.overrides[key] = value
	if err := o.store.Save(ctx, o.overrides); err != nil {
		return 0, fmt.Errorf("save options: %w", err)
	}
	return value, nil
}

// Reset removes the override for one option, reverting to its default.
func (o *Options) Reset(ctx context.Context, key string) error {
	if _, ok := o.specByKey[key]; !ok {
		return ErrUnknownOption
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.overrides, key)
	if err := o.store.Save(ctx, o.overrides); err != nil {
		return fmt.Errorf("save options: %w", err)
	}
	return nil
}

// ResetAll clears every override.
func (o *Options) ResetAll(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.overrides = make(map[string]int)
	if err := o.store.Save(ctx, o.overrides); err != nil {
		return fmt.Errorf("save options: %w", err)
	}
	return nil
}
