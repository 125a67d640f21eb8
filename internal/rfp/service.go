package rfp

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"rfphub.org/internal/auth"
	"rfphub.org/internal/ids"
)

const monthlyWindow = 12

// Service defines RFP pipeline operations.
type Service interface {
	Create(ctx context.Context, r *RFP) (RFP, error)
	Get(ctx context.Context, id string) (RFP, error)
	List(ctx context.Context, f Filter) ([]RFP, error)
	Update(ctx context.Context, id string, upd Update) (RFP, error)
	Delete(ctx context.Context, id string) error
	Summary(ctx context.Context) (Summary, error)
}

// InMemory implements Service with in-process concurrency safety. Used
// by tests and by local runs without a configured database.
type InMemory struct {
	mu   sync.RWMutex
	recs map[string]*RFP
	now  func() time.Time
}

// NewInMemory creates an empty pipeline.
func NewInMemory() *InMemory {
	return &InMemory{
		recs: make(map[string]*RFP),
		now:  time.Now,
	}
}

// WithClock overrides the time source (useful for tests).
func (s *InMemory) WithClock(fn func() time.Time) *InMemory {
	if fn != nil {
		s.now = fn
	}
	return s
}

func validateNew(r *RFP) error {
	if strings.TrimSpace(r.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	if !auth.ValidRole(r.Department) {
		return fmt.Errorf("%w: unknown department %q", ErrInvalidInput, r.Department)
	}
	if r.Status == "" {
		r.Status = StatusDraft
	}
	if !ValidStatus(r.Status) {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, r.Status)
	}
	if r.Value < 0 {
		return fmt.Errorf("%w: value must be >= 0", ErrInvalidInput)
	}
	if r.Currency == "" {
		r.Currency = "USD"
	}
	r.Currency = strings.ToUpper(r.Currency)
	if len(r.Currency) > 8 {
		return fmt.Errorf("%w: currency code too long", ErrInvalidInput)
	}
	return nil
}

func (s *InMemory) Create(ctx context.Context, r *RFP) (RFP, error) {
	if err := validateNew(r); err != nil {
		return RFP{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	rec := *r
	rec.ID = ids.New()
	rec.CreatedAt = now
	rec.UpdatedAt = now
	s.recs[rec.ID] = &rec
	return rec, nil
}

func (s *InMemory) Get(ctx context.Context, id string) (RFP, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.recs[id]
	if !ok {
		return RFP{}, ErrNotFound
	}
	return *rec, nil
}

func (s *InMemory) List(ctx context.Context, f Filter) ([]RFP, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]RFP, 0, len(s.recs))
	for _, rec := range s.recs {
		if f.Department != "" && rec.Department != f.Department {
			continue
		}
		if f.Status != "" && rec.Status != f.Status {
			continue
		}
		out = append(out, *rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *InMemory) Update(ctx context.Context, id string, upd Update) (RFP, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.recs[id]
	if !ok {
		return RFP{}, ErrNotFound
	}
	if err := applyUpdate(rec, upd); err != nil {
		return RFP{}, err
	}
	rec.UpdatedAt = s.now().UTC()
	return *rec, nil
}

// applyUpdate merges non-nil fields of upd into rec, validating as it
// goes. Shared by the in-memory and Postgres implementations.
func applyUpdate(rec *RFP, upd Update) error {
	if upd.Title != nil {
		if strings.TrimSpace(*upd.Title) == "" {
			return fmt.Errorf("%w: title is required", ErrInvalidInput)
		}
		rec.Title = strings.TrimSpace(*upd.Title)
	}
	if upd.Client != nil {
		rec.Client = strings.TrimSpace(*upd.Client)
	}
	if upd.Department != nil {
		if !auth.ValidRole(*upd.Department) {
			return fmt.Errorf("%w: unknown department %q", ErrInvalidInput, *upd.Department)
		}
		rec.Department = *upd.Department
	}
	if upd.Status != nil {
		if !ValidStatus(*upd.Status) {
			return fmt.Errorf("%w: %q", ErrInvalidStatus, *upd.Status)
		}
		rec.Status = *upd.Status
	}
	if upd.Value != nil {
		if *upd.Value < 0 {
			return fmt.Errorf("%w: value must be >= 0", ErrInvalidInput)
		}
		rec.Value = *upd.Value
	}
	if upd.Currency != nil {
		rec.Currency = strings.ToUpper(strings.TrimSpace(*upd.Currency))
	}
	return nil
}

func (s *InMemory) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.recs[id]; !ok {
		return ErrNotFound
	}
	delete(s.recs, id)
	return nil
}

func (s *InMemory) Summary(ctx context.Context) (Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.now().UTC()
	sum := newSummary(now)
	for _, rec := range s.recs {
		sum.TotalCount++
		sum.PipelineValue[rec.Currency] += rec.Value
		sum.ByStatus[rec.Status]++
		sum.ByDepartment[rec.Department]++

		month := rec.CreatedAt.UTC().Format("2006-01")
		for i := range sum.Monthly {
			if sum.Monthly[i].Month == month {
				sum.Monthly[i].Count++
				sum.Monthly[i].Value += rec.Value
			}
		}
	}
	return sum, nil
}

// newSummary seeds the last-12-months series, newest last.
func newSummary(now time.Time) Summary {
	monthly := make([]MonthlyBucket, 0, monthlyWindow)
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -(monthlyWindow - 1), 0)
	for i := 0; i < monthlyWindow; i++ {
		monthly = append(monthly, MonthlyBucket{Month: first.AddDate(0, i, 0).Format("2006-01")})
	}
	return Summary{
		PipelineValue: make(map[string]int64),
		ByStatus:      make(map[Status]int),
		ByDepartment:  make(map[auth.Role]int),
		Monthly:       monthly,
		AsOf:          now,
	}
}
