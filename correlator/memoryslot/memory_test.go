package memoryslot_test

import (
	"testing"

	"github.com/ggoodman/insight-stream-go/correlator"
	"github.com/ggoodman/insight-stream-go/correlator/memoryslot"
	"github.com/ggoodman/insight-stream-go/correlator/slottest"
)

func TestMemorySlot(t *testing.T) {
	slottest.RunSlotTests(t, func(t *testing.T) correlator.Slot {
		return memoryslot.New()
	})
}
