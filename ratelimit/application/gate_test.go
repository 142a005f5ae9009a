package application

import (
	"context"
	"errors"
	"testing"

	"resource-ratelimit/ratelimit/domain"
)

type fakeConsumer struct {
	usage    domain.Usage
	err      error
	consumed []int
	deleted  []string
	getUsage domain.Usage
	getOK    bool
	getErr   error
}

func (f *fakeConsumer) Consume(_ context.Context, _ string, points int) (domain.Usage, error) {
	f.consumed = append(f.consumed, points)
	return f.usage, f.err
}

func (f *fakeConsumer) Get(context.Context, string) (domain.Usage, bool, error) {
	return f.getUsage, f.getOK, f.getErr
}

func (f *fakeConsumer) Delete(_ context.Context, key string) error {
	f.deleted = append(f.deleted, key)
	return nil
}

func TestGate_Check_AllowsWhenNoConsumer(t *testing.T) {
	gate := Gate{}
	if _, err := gate.Check(context.Background(), "k"); err != nil {
		t.Fatalf("expected allow, got %v", err)
	}
}

func TestGate_Check_DefaultsToOnePoint(t *testing.T) {
	c := &fakeConsumer{usage: domain.Usage{RemainingPoints: 4}}
	gate := Gate{Consumer: c}

	usage, err := gate.Check(context.Background(), "k")
	if err != nil {
		t.Fatalf("expected allow, got %v", err)
	}
	if usage.RemainingPoints != 4 {
		t.Fatalf("expected usage to pass through, got %+v", usage)
	}
	if len(c.consumed) != 1 || c.consumed[0] != 1 {
		t.Fatalf("expected a single consume of 1 point, got %v", c.consumed)
	}
}

func TestGate_Check_MapsRejectionTo429(t *testing.T) {
	c := &fakeConsumer{err: &domain.RejectedError{Usage: domain.Usage{MsBeforeNext: 1500}}}
	gate := Gate{Consumer: c}

	_, err := gate.Check(context.Background(), "k")

	var exceeded *domain.LimitExceededError
	if !errors.As(err, &exceeded) {
		t.Fatalf("expected LimitExceededError, got %v", err)
	}
	if exceeded.StatusCode != 429 {
		t.Fatalf("expected statusCode 429, got %d", exceeded.StatusCode)
	}
	// ceil(1500/1000) == 2
	if exceeded.RetryAfter != 2 {
		t.Fatalf("expected retryAfter 2, got %d", exceeded.RetryAfter)
	}
	if exceeded.Message != domain.TooManyRequestsMessage {
		t.Fatalf("unexpected message %q", exceeded.Message)
	}
}

func TestGate_Check_RetryAfterAtLeastOneSecond(t *testing.T) {
	c := &fakeConsumer{err: &domain.RejectedError{Usage: domain.Usage{MsBeforeNext: 1}}}
	gate := Gate{Consumer: c}

	_, err := gate.Check(context.Background(), "k")

	var exceeded *domain.LimitExceededError
	if !errors.As(err, &exceeded) {
		t.Fatalf("expected LimitExceededError, got %v", err)
	}
	if exceeded.RetryAfter < 1 {
		t.Fatalf("expected retryAfter >= 1 when msBeforeNext > 0, got %d", exceeded.RetryAfter)
	}
}

func TestGate_Check_BackendErrorIsNotExhaustion(t *testing.T) {
	backendErr := errors.New("storage unavailable")
	c := &fakeConsumer{err: backendErr}
	gate := Gate{Consumer: c}

	_, err := gate.Check(context.Background(), "k")
	if !errors.Is(err, backendErr) {
		t.Fatalf("expected backend error to pass through, got %v", err)
	}

	var exceeded *domain.LimitExceededError
	if errors.As(err, &exceeded) {
		t.Fatalf("backend error must not be mapped to 429")
	}
}

func TestGate_Peek_PropagatesBackendError(t *testing.T) {
	getErr := errors.New("storage unavailable")
	c := &fakeConsumer{getErr: getErr}
	gate := Gate{Consumer: c}

	_, _, err := gate.Peek(context.Background(), "k")
	if !errors.Is(err, getErr) {
		t.Fatalf("expected backend error, got %v", err)
	}
}

func TestGate_Peek_AbsentUsage(t *testing.T) {
	gate := Gate{Consumer: &fakeConsumer{}}

	_, ok, err := gate.Peek(context.Background(), "k")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatalf("expected ok=false for absent usage")
	}
}

func TestGate_Reset_DelegatesDelete(t *testing.T) {
	c := &fakeConsumer{}
	gate := Gate{Consumer: c}

	if err := gate.Reset(context.Background(), "ip:1.2.3.4"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(c.deleted) != 1 || c.deleted[0] != "ip:1.2.3.4" {
		t.Fatalf("expected delete of derived key, got %v", c.deleted)
	}
}
