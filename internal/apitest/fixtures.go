package apitest

import "time"

// AddBulletin appends b to the listing (listing order is newest first, so
// add the most recent bulletin first). Attachment contents are registered
// separately with AddAttachment.
func (s *Server) AddBulletin(b Bulletin) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.bulletins[b.ID]; !exists {
		s.order = append(s.order, b.ID)
	}
	s.bulletins[b.ID] = b
}

// PrependBulletin publishes b as the newest bulletin.
func (s *Server) PrependBulletin(b Bulletin) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.order = append([]string{b.ID}, s.order...)
	s.bulletins[b.ID] = b
}

// AddAttachment registers the content served by attachments/{id}/download.
func (s *Server) AddAttachment(id string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attachments[id] = data
}

// SetTotal overrides the total reported by the bulletin listing.
func (s *Server) SetTotal(total int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.total = total
}

// SetFeed registers a feed type with its status and CSV content.
func (s *Server) SetFeed(feedType, uploaded string, version int, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.feeds[feedType] = feed{UploadDatetime: uploaded, Type: feedType, Version: version, data: data}
}

// Script makes the next len(codes) requests to method path answer with
// codes, in order, before the route is served normally. path is relative
// to the API root and starts with a slash, e.g. "/bulletins/A".
func (s *Server) Script(method, path string, codes ...int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := method + " " + path
	s.scripts[key] = append(s.scripts[key], codes...)
}

// Requests returns how many requests reached method path.
func (s *Server) Requests(method, path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[method+" "+path]
}

// TotalRequests returns the number of requests received on every route.
func (s *Server) TotalRequests() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

// SendTimes returns the arrival time of every request.
func (s *Server) SendTimes() []time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]time.Time, len(s.sent))
	copy(out, s.sent)
	return out
}

// Token returns the currently valid bearer token ("" after logout).
func (s *Server) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// LastLoginBody returns the raw body of the last account/login request.
func (s *Server) LastLoginBody() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.lastLogin...)
}

// LastUserAgent returns the User-Agent of the last request.
func (s *Server) LastUserAgent() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastAgent
}

// ResetCounts forgets all recorded requests.
func (s *Server) ResetCounts() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts = make(map[string]int)
	s.sent = nil
}
