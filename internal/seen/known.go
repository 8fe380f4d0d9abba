package seen

// KnownSet tracks the external URLs already ingested for one source. It is
// built at the start of a run and owned by that run only.
type KnownSet struct {
	urls map[string]struct{}
}

// NewKnownSet seeds the set with previously persisted URLs.
func NewKnownSet(urls []string) *KnownSet {
	set := &KnownSet{urls: make(map[string]struct{}, len(urls))}
	for _, raw := range urls {
		set.Add(raw)
	}
	return set
}

// Contains reports whether url, in canonical form, is already known. An
// empty URL is never known.
func (s *KnownSet) Contains(url string) bool {
	key := CanonicalURL(url)
	if key == "" {
		return false
	}
	_, ok := s.urls[key]
	return ok
}

// Add records url and reports whether it was new.
func (s *KnownSet) Add(url string) bool {
	key := CanonicalURL(url)
	if key == "" {
		return false
	}
	if _, ok := s.urls[key]; ok {
		return false
	}
	s.urls[key] = struct{}{}
	return true
}

func (s *KnownSet) Len() int {
	return len(s.urls)
}
