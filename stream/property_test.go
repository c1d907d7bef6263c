package stream_test

import (
	"context"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/ggoodman/insight-stream-go/stream"
	"github.com/ggoodman/insight-stream-go/transport/pipe"
	"github.com/ggoodman/insight-stream-go/wire"
)

// TestLastStartWinsProperty checks that for any number of Start calls, with
// stale frames from earlier sessions arriving in between, the slot ends up
// holding the id returned by the last call and only that session's handlers
// ever run.
func TestLastStartWinsProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("last start owns the slot", prop.ForAll(
		func(starts int, lazy bool, staleBetween []int) bool {
			op := pipe.New()
			opts := []stream.Option{stream.WithTransport(op), stream.WithIDGenerator(sequentialIDs())}
			if lazy {
				opts = append(opts, stream.WithLazySupersession())
			}
			c, err := stream.New(context.Background(), testEndpoint, opts...)
			if err != nil {
				return false
			}
			defer c.Close()

			recorders := make([]*recorder, starts)
			ids := make([]string, starts)
			for i := 0; i < starts; i++ {
				recorders[i] = &recorder{}
				id, err := c.Start("q", recorders[i].handlers())
				if err != nil {
					return false
				}
				ids[i] = id

				// Replay frames of an earlier session, if any.
				if i > 0 && len(staleBetween) > 0 {
					j := staleBetween[i%len(staleBetween)] % i
					conn := op.Conns()[j]
					conn.Inject(wire.Meta{ClientMessageID: ids[j]})
					conn.Inject(wire.Delta{ClientMessageID: ids[j], Text: "stale"})
					conn.Inject(wire.Done{ClientMessageID: ids[j]})
				}
			}

			st, err := c.State(context.Background())
			if err != nil || st.ActiveID != ids[starts-1] || !st.Connecting {
				return false
			}
			for i := 0; i < starts; i++ {
				if len(recorders[i].Calls()) != 0 {
					return false
				}
			}

			last := op.Last()
			last.Send(wire.Delta{ClientMessageID: ids[starts-1], Text: "fresh"})
			last.Send(wire.Done{ClientMessageID: ids[starts-1]})
			return len(recorders[starts-1].Calls()) == 2
		},
		gen.IntRange(1, 20),
		gen.Bool(),
		gen.SliceOf(gen.IntRange(0, 1000)),
	))

	properties.TestingRun(t)
}
