package supervisor

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/gpii/win-service/internal/eventbus"
	"github.com/gpii/win-service/internal/ipc"
)

// heartbeatInterval is the "hello" heartbeat frequency sent to a running
// child.
const heartbeatInterval = time.Second

// messagePump reads framed messages from a running child's endpoint,
// answers ping with pong directly, republishes every other message type as
// "<product>.message.<type>" on the bus, and writes a 1Hz "hello" heartbeat.
type messagePump struct {
	log      logr.Logger
	bus      *eventbus.Bus
	endpoint *ipc.Endpoint
	product  string
	now      func() time.Time

	writeMu sync.Mutex
	done    chan struct{}
	stopped sync.Once
}

func newMessagePump(log logr.Logger, bus *eventbus.Bus, endpoint *ipc.Endpoint, product string, now func() time.Time) *messagePump {
	return &messagePump{
		log:      log.WithName("pump"),
		bus:      bus,
		endpoint: endpoint,
		product:  product,
		now:      now,
		done:     make(chan struct{}),
	}
}

func (p *messagePump) start() {
	go p.readLoop()
	go p.heartbeatLoop()
}

// stop closes the pump's done channel; the caller closes the parent side of
// the endpoint right after stop (when the child has exited or the
// supervisor is stopping), which is what actually unblocks a pending
// ReadMessage.
func (p *messagePump) stop() {
	p.stopped.Do(func() { close(p.done) })
}

func (p *messagePump) readLoop() {
	reader := p.endpoint.Reader()
	for {
		msg, err := reader.ReadMessage()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				p.log.Error(err, "reading child frame")
			}
			return
		}

		switch msg.Type {
		case ipc.TypePing:
			p.reply(ipc.Message{Type: ipc.TypePong, Payload: msg.Payload})
		default:
			p.bus.Publish(eventbus.Event{Name: fmt.Sprintf("%s.message.%s", p.product, msg.Type), Payload: msg.Payload})
		}

		select {
		case <-p.done:
			return
		default:
		}
	}
}

func (p *messagePump) heartbeatLoop() {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.done:
			return
		case <-ticker.C:
			p.reply(ipc.Message{Type: ipc.TypeHello, Payload: p.now().Unix()})
		}
	}
}

func (p *messagePump) reply(msg ipc.Message) {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	if err := p.endpoint.Writer().WriteMessage(msg); err != nil {
		p.log.Error(err, "writing frame to child", "type", msg.Type)
	}
}
