package socketout

// Connection is the connection-supervisor contract. Abort is idempotent
// and triggers supervised teardown of the surrounding connection; it is
// called, at most once per latched error, after a write failure. The
// supervisor itself lives outside this package; Connection exists only to
// name its contract.
type Connection interface {
	Abort(err error)
}

// NoopConnection implements Connection by discarding Abort calls. Useful in
// tests and for callers that have no supervisor to notify.
type NoopConnection struct{}

func (NoopConnection) Abort(error) {}
