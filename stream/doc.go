// Package stream delivers incrementally generated answers from an insight
// endpoint to a caller, one session at a time.
//
// A session is started with Controller.Start, which returns the session id
// immediately. The server answers on a text/event-stream connection with a
// meta frame, any number of delta frames carrying text, and a terminal done
// or error frame, each tagged with the id:
//
//	c, err := stream.New(ctx, "https://api.example.com/insights/stream")
//	if err != nil {
//		return err
//	}
//	defer c.Close()
//
//	id, err := c.Start("What's my budget status?", stream.Handlers{
//		OnDelta: func(id, text string) { fmt.Print(text) },
//		OnDone:  func(id string) { fmt.Println() },
//		OnError: func(id string, err error) { log.Println(err) },
//	}, stream.WithUserID("u-42"))
//
// There is no cancel operation. Calling Start again supersedes the current
// session: from that moment its frames are discarded without any callback,
// including its terminal frame. A caller that needs a deadline starts a timer
// of its own and either calls Start again or gives up on the session.
//
// Which session is current is held in a correlator.Slot. Each controller has
// its own in-memory slot unless WithSlot supplies one, such as a
// redisslot.Slot shared by every device of a user.
//
// Failures are never retried. A connection failure, malformed frame or server
// error frame reaches OnError exactly once, and only if the session is still
// current.
package stream
