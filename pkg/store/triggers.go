package store

import (
	"dmfeed/pkg/logger"
	"dmfeed/pkg/models"
)

// OnMessageCreated registers fn to run after every message create. Triggers
// run on their own goroutine and never affect the writer.
func (s *Store) OnMessageCreated(fn MessageTrigger) {
	s.trigMu.Lock()
	s.triggers = append(s.triggers, fn)
	s.trigMu.Unlock()
}

func (s *Store) fireCreated(convID string, m models.Message) {
	if !s.Ready() {
		return
	}
	s.trigMu.RLock()
	fns := append([]MessageTrigger(nil), s.triggers...)
	s.trigMu.RUnlock()
	for _, fn := range fns {
		s.trigWG.Add(1)
		go func(fn MessageTrigger) {
			defer s.trigWG.Done()
			defer func() {
				if r := recover(); r != nil {
					logger.Error("message_trigger_panic", "conversation", convID, "id", m.ID, "panic", r)
				}
			}()
			fn(convID, m)
		}(fn)
	}
}

// WaitTriggers blocks until every running trigger has returned.
func (s *Store) WaitTriggers() {
	s.trigWG.Wait()
}
