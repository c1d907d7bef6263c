package redisslot

import (
	"testing"

	"github.com/ggoodman/insight-stream-go/correlator"
	"github.com/ggoodman/insight-stream-go/correlator/slottest"
	"github.com/google/uuid"
)

func TestRedisSlot(t *testing.T) {
	// Quick availability check to allow graceful skip in environments without Redis
	s, err := NewFromEnv("probe")
	if err != nil {
		t.Skipf("skipping redis slot tests: %v", err)
		return
	}
	_ = s.Close()

	slottest.RunSlotTests(t, func(t *testing.T) correlator.Slot {
		ss, err := NewFromEnv("test-" + uuid.NewString())
		if err != nil {
			t.Fatalf("NewFromEnv: %v", err)
		}
		t.Cleanup(func() { _ = ss.Close() })
		return ss
	})
}

func TestNewRequiresScope(t *testing.T) {
	if _, err := New(Config{}, ""); err == nil {
		t.Fatalf("expected error for empty scope")
	}
}
