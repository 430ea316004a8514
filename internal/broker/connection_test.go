package broker

import (
	"errors"
	"testing"
	"time"
)

func TestRetryDialStopsSleepingAfterLastAttempt(t *testing.T) {
	dials, sleeps := 0, 0
	err := retryDial(3, func(time.Duration) { sleeps++ }, func() error {
		dials++
		return errors.New("connection refused")
	})
	if err == nil {
		t.Fatal("want error after exhausted attempts")
	}
	if dials != 3 {
		t.Errorf("dials = %d, want 3", dials)
	}
	if sleeps != 2 {
		t.Errorf("sleeps = %d, want 2", sleeps)
	}
}

func TestRetryDialReturnsOnFirstSuccess(t *testing.T) {
	dials, sleeps := 0, 0
	err := retryDial(5, func(time.Duration) { sleeps++ }, func() error {
		dials++
		if dials < 2 {
			return errors.New("not yet")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if dials != 2 || sleeps != 1 {
		t.Errorf("dials = %d, sleeps = %d, want 2 and 1", dials, sleeps)
	}
}
