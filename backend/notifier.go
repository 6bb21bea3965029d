package backend

import (
	"sync"

	"github.com/google/uuid"
)

// Notifier fans auth events out to registered listeners in registration order.
type Notifier struct {
	lock      sync.RWMutex
	order     []string
	listeners map[string]AuthListener
}

func NewNotifier() *Notifier {
	return &Notifier{listeners: make(map[string]AuthListener)}
}

// Subscribe adds listener and returns an idempotent unsubscribe func.
func (n *Notifier) Subscribe(listener AuthListener) func() {
	id := uuid.NewString()

	n.lock.Lock()
	n.listeners[id] = listener
	n.order = append(n.order, id)
	n.lock.Unlock()

	return func() {
		n.lock.Lock()
		defer n.lock.Unlock()
		if _, ok := n.listeners[id]; !ok {
			return
		}
		delete(n.listeners, id)
		for i, v := range n.order {
			if v == id {
				n.order = append(n.order[:i], n.order[i+1:]...)
				break
			}
		}
	}
}

// Emit delivers event synchronously to every listener.
func (n *Notifier) Emit(event AuthEvent, session *Session) {
	n.lock.RLock()
	listeners := make([]AuthListener, 0, len(n.order))
	for _, id := range n.order {
		listeners = append(listeners, n.listeners[id])
	}
	n.lock.RUnlock()

	for _, l := range listeners {
		l(event, session.Clone())
	}
}

// Len returns the number of registered listeners.
func (n *Notifier) Len() int {
	n.lock.RLock()
	defer n.lock.RUnlock()
	return len(n.listeners)
}
