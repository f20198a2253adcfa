package session

// State is the derived, observable session state the UI layer gates on.
// EmailVerified implies Authenticated; Loading is true only until the first
// bootstrap completes and never again afterward.
type State struct {
	Loading       bool
	Authenticated bool
	EmailVerified bool
}

// State returns a snapshot of the current session state. Safe to call from
// any goroutine.
func (m *Manager) State() State {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.state
}

// Subscribe registers an observer for state changes. The returned channel
// receives every change published after registration; slow subscribers have
// updates dropped rather than blocking the session. The cancel function
// unregisters and closes the channel.
func (m *Manager) Subscribe() (<-chan State, func()) {
	ch := make(chan State, subscriberBuffer)

	m.subLock.Lock()
	id := m.nextSubID
	m.nextSubID++
	m.subscribers[id] = ch
	m.subLock.Unlock()

	cancel := func() {
		m.subLock.Lock()
		defer m.subLock.Unlock()
		if _, ok := m.subscribers[id]; ok {
			delete(m.subscribers, id)
			close(ch)
		}
	}
	return ch, cancel
}

const subscriberBuffer = 8

func (m *Manager) notify(state State) {
	m.subLock.Lock()
	defer m.subLock.Unlock()
	for id, ch := range m.subscribers {
		select {
		case ch <- state:
		default:
			m.log.Warn().Int("subscriber", id).Msg("dropping state update for slow subscriber")
		}
	}
}
