package realtime

// Recorder receives dispatcher lifecycle counters. The prometheus-backed
// implementation lives in internal/metrics; tests pass nil and get a no-op.
type Recorder interface {
	ConnectionRegistered()
	ConnectionAuthenticated()
	ConnectionClosed(authenticated bool)
	AuthenticationFailed()
	EventEmitted(event EventName)
	Delivered()
	DeliveryFailed()
	Invalidated(reason string)
}

type nopRecorder struct{}

func (nopRecorder) ConnectionRegistered()    {}
func (nopRecorder) ConnectionAuthenticated() {}
func (nopRecorder) ConnectionClosed(bool)    {}
func (nopRecorder) AuthenticationFailed()    {}
func (nopRecorder) EventEmitted(EventName)   {}
func (nopRecorder) Delivered()               {}
func (nopRecorder) DeliveryFailed()          {}
func (nopRecorder) Invalidated(string)       {}
