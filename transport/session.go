package transport

import "sync/atomic"

// Session holds the bearer credential shared by every outbound call.
// Reads are lock-free; replacement is last-write-wins.
type Session struct {
	token  atomic.Pointer[string]
	clears atomic.Int64
}

// NewSession returns a session seeded with token (may be empty).
func NewSession(token string) *Session {
	s := &Session{}
	s.Set(token)
	return s
}

// Set replaces the credential. An empty token clears it.
func (s *Session) Set(token string) {
	if token == "" {
		s.token.Store(nil)
		return
	}
	s.token.Store(&token)
}

// Token returns the current credential or "".
func (s *Session) Token() string {
	if s == nil {
		return ""
	}
	if p := s.token.Load(); p != nil {
		return *p
	}
	return ""
}

// ClearIf drops the credential only if it is still the one a failed request
// used. Concurrent 401s for the same credential clear it once; a credential
// set in the meantime survives.
func (s *Session) ClearIf(stale string) bool {
	if s == nil || stale == "" {
		return false
	}
	p := s.token.Load()
	if p == nil || *p != stale {
		return false
	}
	if s.token.CompareAndSwap(p, nil) {
		s.clears.Add(1)
		return true
	}
	return false
}

// Clears counts how many times a 401 removed the credential.
func (s *Session) Clears() int64 {
	return s.clears.Load()
}
