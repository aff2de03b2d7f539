package cache

// ScopedKeyer wraps a Keyer with a prefix for tenant isolation, so that
// several workspaces or deployments can share one redis instance.
//
//	keyer := NewScopedKeyer(NewDefaultKeyer(), "ws:library:")
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer with a prefix.
// The prefix is prepended to all generated keys.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{inner: inner, prefix: prefix}
}

// TutorKey generates a prefixed tutor key.
func (k *ScopedKeyer) TutorKey(op string, payload any) string {
	return k.prefix + k.inner.TutorKey(op, payload)
}

// ExportKey generates a prefixed export key.
func (k *ScopedKeyer) ExportKey(modelHash, format string) string {
	return k.prefix + k.inner.ExportKey(modelHash, format)
}
