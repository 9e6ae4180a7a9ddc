package backplane

import "sync"

// Memory is an in-process backplane for single-node deployments and
// tests. Delivery is synchronous, so per-subject ordering is trivially
// preserved.
type Memory struct {
	mu   sync.RWMutex
	subs map[string]map[int]func([]byte)
	next int
}

// NewMemory creates an empty in-process backplane.
func NewMemory() *Memory {
	return &Memory{subs: make(map[string]map[int]func([]byte))}
}

func (m *Memory) Publish(subject string, data []byte) error {
	m.mu.RLock()
	handlers := make([]func([]byte), 0, len(m.subs[subject]))
	for _, h := range m.subs[subject] {
		handlers = append(handlers, h)
	}
	m.mu.RUnlock()

	for _, h := range handlers {
		h(data)
	}
	return nil
}

func (m *Memory) Subscribe(subject string, handler func(data []byte)) (Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.subs[subject] == nil {
		m.subs[subject] = make(map[int]func([]byte))
	}
	id := m.next
	m.next++
	m.subs[subject][id] = handler

	return &memorySub{parent: m, subject: subject, id: id}, nil
}

func (m *Memory) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs = make(map[string]map[int]func([]byte))
}

type memorySub struct {
	parent  *Memory
	subject string
	id      int
}

func (s *memorySub) Unsubscribe() error {
	s.parent.mu.Lock()
	defer s.parent.mu.Unlock()

	if handlers, ok := s.parent.subs[s.subject]; ok {
		delete(handlers, s.id)
		if len(handlers) == 0 {
			delete(s.parent.subs, s.subject)
		}
	}
	return nil
}
