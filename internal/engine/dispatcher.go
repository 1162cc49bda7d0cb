package engine

import (
	"context"
	"sync"

	"taskpulse/internal/logging"
	"taskpulse/internal/types"
)

// dispatcher serializes message processing per conversation. Each
// conversation key owns one FIFO channel drained by one goroutine, so
// messages in the same conversation never race while different
// conversations proceed in parallel.
type dispatcher struct {
	ctx     context.Context
	handler func(context.Context, types.Message)

	mu    sync.Mutex
	lanes map[types.ConversationKey]chan types.Message
	wg    sync.WaitGroup
}

const laneBuffer = 128

func newDispatcher(ctx context.Context, handler func(context.Context, types.Message)) *dispatcher {
	return &dispatcher{
		ctx:     ctx,
		handler: handler,
		lanes:   make(map[types.ConversationKey]chan types.Message),
	}
}

// submit enqueues a message on its conversation's lane, creating the lane
// on first use. Blocks when the lane is full; returns early if ctx ends.
func (d *dispatcher) submit(ctx context.Context, msg types.Message) {
	key := msg.Conversation()

	d.mu.Lock()
	lane, ok := d.lanes[key]
	if !ok {
		lane = make(chan types.Message, laneBuffer)
		d.lanes[key] = lane
		d.wg.Add(1)
		go d.drain(key, lane)
	}
	d.mu.Unlock()

	select {
	case lane <- msg:
	case <-ctx.Done():
	}
}

func (d *dispatcher) drain(key types.ConversationKey, lane chan types.Message) {
	defer d.wg.Done()
	for {
		select {
		case <-d.ctx.Done():
			return
		case msg, ok := <-lane:
			if !ok {
				return
			}
			d.handler(d.ctx, msg)
		}
	}
}

// close shuts all lanes and waits for in-flight handlers to finish.
func (d *dispatcher) close() {
	d.mu.Lock()
	for key, lane := range d.lanes {
		close(lane)
		delete(d.lanes, key)
	}
	d.mu.Unlock()
	d.wg.Wait()
	logging.EngineDebug("Dispatcher drained")
}
