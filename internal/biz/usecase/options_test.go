package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/anthropics/feishu-voice-summary/internal/biz/domain"
)

// memStore is an in-memory SnapshotStore used across the package tests.
type memStore struct {
	data     []byte
	saves    int
	loadErr  error
	saveErr  error
}

func (m *memStore) Load(ctx context.Context, v any) (bool, error) {
	if m.loadErr != nil {
		return false, m.loadErr
	}
	if m.data == nil {
		return false, nil
	}
	return true, json.Unmarshal(m.data, v)
}

func (m *memStore) Save(ctx context.Context, v any) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	m.data = data
	m.saves++
	return nil
}

func testDefaults() OptionDefaults {
	return OptionDefaults{
		DailyLimitSeconds:        3600,
		SummaryCooldownSeconds:   20,
		SummaryDailyLimitPerUser: 30,
		SummaryReuseWindowMin:    30,
		MessageBufferMaxPerChat:  500,
		SummaryHistoryMaxPerChat: 12,
	}
}

func newTestOptions(store *memStore) *Options {
	return NewOptions(context.Background(), store, testDefaults())
}

func TestOptionsGetDefaults(t *testing.T) {
	opts := newTestOptions(&memStore{})

	if got := opts.Get(domain.OptDailyLimitSeconds); got != 3600 {
		t.Errorf("dailyLimitSeconds = %d, want 3600", got)
	}
	if got := opts.Get(domain.OptMaxSummaryMessages); got != 400 {
		t.Errorf("maxSummaryMessages = %d, want 400", got)
	}
}

func TestOptionsSetBelowMin(t *testing.T) {
	opts := newTestOptions(&memStore{})

	_, err := opts.Set(context.Background(), domain.OptDailyLimitSeconds, "30")
	var oor *OutOfRangeError
	if !errors.As(err, &oor) {
		t.Fatalf("Set(30) error = %v, want OutOfRangeError", err)
	}
	if oor.Min != 60 || oor.Max != 86400 {
		t.Errorf("bounds = %d..%d, want 60..86400", oor.Min, oor.Max)
	}
	if got := opts.Get(domain.OptDailyLimitSeconds); got != 3600 {
		t.Errorf("value changed after failed set: %d", got)
	}
}

func TestOptionsSetAndReset(t *testing.T) {
	store := &memStore{}
	opts := newTestOptions(store)
	ctx := context.Background()

	value, err := opts.Set(ctx, domain.OptDailyLimitSeconds, "7200")
	if err != nil {
		t.Fatalf("Set: %v", err)
	}
	if value != 7200 {
		t.Errorf("stored value = %d, want 7200", value)
	}
	if got := opts.Get(domain.OptDailyLimitSeconds); got != 7200 {
		t.Errorf("Get after Set = %d, want 7200", got)
	}
	if store.saves != 1 {
		t.Errorf("saves = %d, want 1", store.saves)
	}

	if err := opts.Reset(ctx, domain.OptDailyLimitSeconds); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if got := opts.Get(domain.OptDailyLimitSeconds); got != 3600 {
		t.Errorf("Get after Reset = %d, want default 3600", got)
	}
}

func TestOptionsSetInvalidNumber(t *testing.T) {
	opts := newTestOptions(&memStore{})

	for _, raw := range []string{"abc", "", "NaN", "Inf"} {
		if _, err := opts.Set(context.Background(), domain.OptDailyLimitSeconds, raw); !errors.Is(err, ErrInvalidNumber) {
			t.Errorf("Set(%q) error = %v, want ErrInvalidNumber", raw, err)
		}
	}
}

func TestOptionsSetTruncates(t *testing.T) {
	opts := newTestOptions(&memStore{})

	value, err := opts.Set(context.Background(), domain.OptSummaryHistoryMaxPerChat, "15.9")
	if err != nil {
		t.Fatalf("Set: %v", err)
	}
	if value != 15 {
		t.Errorf("stored value = %d, want truncated 15", value)
	}
}

func TestOptionsSetUnknownKey(t *testing.T) {
	opts := newTestOptions(&memStore{})

	if _, err := opts.Set(context.Background(), "noSuchOption", "1"); !errors.Is(err, ErrUnknownOption) {
		t.Errorf("Set unknown key error = %v, want ErrUnknownOption", err)
	}
}

func TestOptionsList(t *testing.T) {
	opts := newTestOptions(&memStore{})
	ctx := context.Background()

	if _, err := opts.Set(ctx, domain.OptSummaryCooldownSeconds, "60"); err != nil {
		t.Fatalf("Set: %v", err)
	}

	views := opts.List()
	if len(views) != 7 {
		t.Fatalf("List returned %d options, want 7", len(views))
	}
	byKey := make(map[string]domain.OptionView)
	for _, v := range views {
		byKey[v.Key] = v
	}

	cooldown := byKey[domain.OptSummaryCooldownSeconds]
	if !cooldown.Overridden || cooldown.Value != 60 || cooldown.Default != 20 {
		t.Errorf("cooldown view = %+v", cooldown)
	}
	limit := byKey[domain.OptDailyLimitSeconds]
	if limit.Overridden || limit.Value != 3600 {
		t.Errorf("dailyLimit view = %+v", limit)
	}
}

func TestOptionsResetAll(t *testing.T) {
	store := &memStore{}
	opts := newTestOptions(store)
	ctx := context.Background()

	if _, err := opts.Set(ctx, domain.OptSummaryCooldownSeconds, "60"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if _, err := opts.Set(ctx, domain.OptSummaryDailyLimitPerUser, "5"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := opts.ResetAll(ctx); err != nil {
		t.Fatalf("ResetAll: %v", err)
	}

	for _, v := range opts.List() {
		if v.Overridden {
			t.Errorf("option %s still overridden after ResetAll", v.Key)
		}
	}
}

func TestOptionsOverridesSurviveReload(t *testing.T) {
	store := &memStore{}
	opts := newTestOptions(store)

	if _, err := opts.Set(context.Background(), domain.OptDailyLimitSeconds, "7200"); err != nil {
		t.Fatalf("Set: %v", err)
	}

	reloaded := newTestOptions(store)
	if got := reloaded.Get(domain.OptDailyLimitSeconds); got != 7200 {
		t.Errorf("reloaded value = %d, want 7200", got)
	}
}

func TestOptionsCorruptOverlayFallsBack(t *testing.T) {
	store := &memStore{loadErr: errors.New("corrupt file")}
	opts := newTestOptions(store)

	if got := opts.Get(domain.OptDailyLimitSeconds); got != 3600 {
		t.Errorf("value after corrupt overlay = %d, want default 3600", got)
	}
}
