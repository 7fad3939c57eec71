package reconcile

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/go-shop-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- testify mock, for error-path tests ---

type mockOrderStore struct{ mock.Mock }

func (m *mockOrderStore) FindEligible(ctx context.Context, status domain.OrderStatus, olderThan time.Time) ([]domain.Order, error) {
	args := m.Called(ctx, status, olderThan)
	if o, _ := args.Get(0).([]domain.Order); o != nil {
		return o, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockOrderStore) TransitionIfStatus(ctx context.Context, orderID string, from, to domain.OrderStatus) (bool, error) {
	args := m.Called(ctx, orderID, from, to)
	return args.Bool(0), args.Error(1)
}
func (m *mockOrderStore) AppendHistory(ctx context.Context, orderID string, entry domain.OrderTransition) error {
	return m.Called(ctx, orderID, entry).Error(0)
}

// --- in-memory fake, for fixture and race tests ---

type memOrderStore struct {
	mu     sync.Mutex
	orders map[string]*domain.Order
}

func newMemOrderStore(orders ...*domain.Order) *memOrderStore {
	m := &memOrderStore{orders: make(map[string]*domain.Order)}
	for _, o := range orders {
		m.orders[o.OrderID] = o
	}
	return m
}

func (m *memOrderStore) FindEligible(_ context.Context, status domain.OrderStatus, olderThan time.Time) ([]domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Order
	for _, o := range m.orders {
		if o.Status == status && o.CreatedTime().Before(olderThan) {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (m *memOrderStore) TransitionIfStatus(_ context.Context, orderID string, from, to domain.OrderStatus) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok || o.Status != from {
		return false, nil
	}
	o.Status = to
	o.ConfirmedAt = time.Now().UnixNano()
	return true, nil
}

func (m *memOrderStore) AppendHistory(_ context.Context, orderID string, entry domain.OrderTransition) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o, ok := m.orders[orderID]; ok {
		o.History = append(o.History, entry)
	}
	return nil
}

func (m *memOrderStore) status(orderID string) domain.OrderStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.orders[orderID].Status
}

func pendingOrder(id string, age time.Duration) *domain.Order {
	return &domain.Order{
		OrderID:   id,
		Status:    domain.OrderStatusPendingConfirmation,
		CreatedAt: time.Now().Add(-age).UnixNano(),
	}
}

// --- RunPass ---

func TestRunPass_ConfirmsOnlyEligibleOrders(t *testing.T) {
	confirmed := pendingOrder("o5", 2*time.Hour)
	confirmed.Status = domain.OrderStatusConfirmed

	store := newMemOrderStore(
		pendingOrder("o1", 2*time.Hour),
		pendingOrder("o2", 3*time.Hour),
		pendingOrder("o3", 90*time.Minute),
		pendingOrder("o4", 10*time.Minute), // too recent
		confirmed,                          // already confirmed
	)

	svc := NewService(store, time.Hour)
	outcomes, err := svc.RunPass(context.Background())

	require.NoError(t, err)
	require.Len(t, outcomes, 3)
	for _, oc := range outcomes {
		assert.Equal(t, ResultConfirmed, oc.Result)
	}
	assert.Equal(t, domain.OrderStatusConfirmed, store.status("o1"))
	assert.Equal(t, domain.OrderStatusConfirmed, store.status("o2"))
	assert.Equal(t, domain.OrderStatusConfirmed, store.status("o3"))
	assert.Equal(t, domain.OrderStatusPendingConfirmation, store.status("o4"))
	assert.Equal(t, domain.OrderStatusConfirmed, store.status("o5"))
}

func TestRunPass_WritesHistoryEntries(t *testing.T) {
	store := newMemOrderStore(pendingOrder("o1", 2*time.Hour))

	svc := NewService(store, time.Hour)
	_, err := svc.RunPass(context.Background())
	require.NoError(t, err)

	o := store.orders["o1"]
	require.Len(t, o.History, 1)
	assert.Equal(t, domain.OrderStatusPendingConfirmation, o.History[0].From)
	assert.Equal(t, domain.OrderStatusConfirmed, o.History[0].To)
	assert.Equal(t, "auto-confirm", o.History[0].Actor)
}

func TestRunPass_SkipsConcurrentlyTransitionedOrder(t *testing.T) {
	st := &mockOrderStore{}
	st.On("FindEligible", mock.Anything, domain.OrderStatusPendingConfirmation, mock.Anything).
		Return([]domain.Order{{OrderID: "o1"}}, nil)
	// Zero rows matched the conditional update: someone else moved the order.
	st.On("TransitionIfStatus", mock.Anything, "o1", domain.OrderStatusPendingConfirmation, domain.OrderStatusConfirmed).
		Return(false, nil)

	svc := NewService(st, time.Hour)
	outcomes, err := svc.RunPass(context.Background())

	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.Equal(t, ResultSkipped, outcomes[0].Result)
	assert.Empty(t, outcomes[0].Error)
	st.AssertNotCalled(t, "AppendHistory", mock.Anything, mock.Anything, mock.Anything)
}

func TestRunPass_OneFailureDoesNotAbortSweep(t *testing.T) {
	st := &mockOrderStore{}
	st.On("FindEligible", mock.Anything, domain.OrderStatusPendingConfirmation, mock.Anything).
		Return([]domain.Order{{OrderID: "o1"}, {OrderID: "o2"}, {OrderID: "o3"}}, nil)
	st.On("TransitionIfStatus", mock.Anything, "o1", mock.Anything, mock.Anything).Return(true, nil)
	st.On("TransitionIfStatus", mock.Anything, "o2", mock.Anything, mock.Anything).Return(false, errors.New("throughput exceeded"))
	st.On("TransitionIfStatus", mock.Anything, "o3", mock.Anything, mock.Anything).Return(true, nil)
	st.On("AppendHistory", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	svc := NewService(st, time.Hour)
	outcomes, err := svc.RunPass(context.Background())

	require.NoError(t, err)
	require.Len(t, outcomes, 3)
	assert.Equal(t, ResultConfirmed, outcomes[0].Result)
	assert.Equal(t, ResultFailed, outcomes[1].Result)
	assert.Contains(t, outcomes[1].Error, "throughput exceeded")
	assert.Equal(t, ResultConfirmed, outcomes[2].Result)
}

func TestRunPass_HistoryFailureStillCountsConfirmed(t *testing.T) {
	st := &mockOrderStore{}
	st.On("FindEligible", mock.Anything, domain.OrderStatusPendingConfirmation, mock.Anything).
		Return([]domain.Order{{OrderID: "o1"}}, nil)
	st.On("TransitionIfStatus", mock.Anything, "o1", mock.Anything, mock.Anything).Return(true, nil)
	st.On("AppendHistory", mock.Anything, "o1", mock.Anything).Return(errors.New("list too long"))

	svc := NewService(st, time.Hour)
	outcomes, err := svc.RunPass(context.Background())

	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.Equal(t, ResultConfirmed, outcomes[0].Result)
}

func TestRunPass_EligibilityQueryFault_FailsPass(t *testing.T) {
	st := &mockOrderStore{}
	boom := errors.New("connection refused")
	st.On("FindEligible", mock.Anything, domain.OrderStatusPendingConfirmation, mock.Anything).Return(nil, boom)

	svc := NewService(st, time.Hour)
	_, err := svc.RunPass(context.Background())

	require.ErrorIs(t, err, boom)
}

// barrierOrderStore delays FindEligible until both passes have queried, so
// both sweeps observe the same pending order before either transitions it.
type barrierOrderStore struct {
	*memOrderStore
	barrier *sync.WaitGroup
}

func (b *barrierOrderStore) FindEligible(ctx context.Context, status domain.OrderStatus, olderThan time.Time) ([]domain.Order, error) {
	out, err := b.memOrderStore.FindEligible(ctx, status, olderThan)
	b.barrier.Done()
	b.barrier.Wait()
	return out, err
}

func TestRunPass_ConcurrentPasses_ExactlyOneConfirms(t *testing.T) {
	var barrier sync.WaitGroup
	barrier.Add(2)
	store := &barrierOrderStore{
		memOrderStore: newMemOrderStore(pendingOrder("o1", 2*time.Hour)),
		barrier:       &barrier,
	}

	svcA := NewService(store, time.Hour)
	svcB := NewService(store, time.Hour)

	results := make(chan []Outcome, 2)
	for _, svc := range []*Service{svcA, svcB} {
		go func(s *Service) {
			outcomes, err := s.RunPass(context.Background())
			require.NoError(t, err)
			results <- outcomes
		}(svc)
	}

	confirmed, skipped := 0, 0
	for i := 0; i < 2; i++ {
		for _, oc := range <-results {
			switch oc.Result {
			case ResultConfirmed:
				confirmed++
			case ResultSkipped:
				skipped++
			default:
				t.Fatalf("unexpected outcome %q", oc.Result)
			}
		}
	}

	assert.Equal(t, 1, confirmed, "exactly one pass must win the conditional update")
	assert.Equal(t, 1, skipped, "the losing pass must record a non-error skip")
	assert.Equal(t, domain.OrderStatusConfirmed, store.status("o1"))
}
