package ui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/fluxfuzzer/fluxscan/pkg/types"
)

// Sender delivers messages to a running program
type Sender interface {
	Send(msg tea.Msg)
}

// Bridge forwards scanner events to a bubbletea program. It implements
// queue.Notifier and issues.Sink; calls never block. When the buffer is
// full, events are dropped except terminal status updates, which are held
// and delivered once everything queued before them has been sent.
type Bridge struct {
	msgs   chan tea.Msg
	wake   chan struct{}
	mu     sync.RWMutex
	closed bool
	done   chan struct{}

	pendingMu sync.Mutex
	pending   []tea.Msg
}

// NewBridge starts forwarding to program
func NewBridge(program Sender) *Bridge {
	b := &Bridge{
		msgs: make(chan tea.Msg, 1024),
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	go b.forward(program)
	return b
}

// Notify forwards a status update
func (b *Bridge) Notify(update types.StatusUpdate) {
	b.push(StatusMsg(update))
}

// Create forwards an issue
func (b *Bridge) Create(issue types.Issue) {
	b.push(IssueMsg(issue))
}

// Close forwards DoneMsg, then stops after everything queued is delivered
func (b *Bridge) Close() {
	b.mu.Lock()
	if !b.closed {
		b.closed = true
		b.msgs <- DoneMsg{}
		close(b.msgs)
	}
	b.mu.Unlock()
	<-b.done
}

func (b *Bridge) push(msg tea.Msg) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	select {
	case b.msgs <- msg:
	default:
		if s, ok := msg.(StatusMsg); ok && s.Status.Terminal() {
			b.pendingMu.Lock()
			b.pending = append(b.pending, msg)
			b.pendingMu.Unlock()
			select {
			case b.wake <- struct{}{}:
			default:
			}
		}
	}
}

func (b *Bridge) forward(program Sender) {
	defer close(b.done)
	for {
		select {
		case msg, ok := <-b.msgs:
			if !ok {
				b.flush(program)
				return
			}
			if _, last := msg.(DoneMsg); last {
				b.flush(program)
			}
			program.Send(msg)
		case <-b.wake:
		}
		if len(b.msgs) == 0 {
			b.flush(program)
		}
	}
}

// flush delivers held terminal updates
func (b *Bridge) flush(program Sender) {
	b.pendingMu.Lock()
	held := b.pending
	b.pending = nil
	b.pendingMu.Unlock()
	for _, msg := range held {
		program.Send(msg)
	}
}
