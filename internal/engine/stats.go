package engine

// Stats reports a snapshot of engine state for the admin HTTP surface
// (internal/protocol.Admin). Not part of the Store interface: only the
// log-structured engine has segments to report.
func (e *Engine) Stats() map[string]any {
	return map[string]any{
		"dir":            e.dir,
		"keys":           e.index.Len(),
		"segments":       len(e.store.SegmentNumbers()),
		"active_segment": e.store.ActiveSegment(),
	}
}
