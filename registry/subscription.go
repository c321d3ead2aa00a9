package registry

import "github.com/nikiz24/monitor/v2/sink"

// Subscription is the handle returned by Subscribe.
type Subscription struct {
	registry *Registry
	sink     sink.Sink
}

// Subscribe adds s to the sinks receiving every batch.
func (r *Registry) Subscribe(s sink.Sink) (*Subscription, error) {
	if s == nil {
		return nil, errNilSink
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return nil, ErrStopped
	}
	sub := &Subscription{registry: r, sink: s}
	r.subs = append(r.subs, sub)
	return sub, nil
}

// Unsubscribe removes the sink. It is safe to call more than once and after
// the registry was stopped.
func (s *Subscription) Unsubscribe() {
	if s == nil {
		return
	}
	r := s.registry
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, sub := range r.subs {
		if sub == s {
			r.subs = append(r.subs[:i], r.subs[i+1:]...)
			return
		}
	}
}
