package device

// Device is a fan controller attached to the host, real or emulated.
type Device interface {
	Connect() error
	Close() error
	Samples() <-chan Sample
	RequestStatus() error
	EnterBootloader() error
	IsConnected() bool
}

var _ Device = (*Serial)(nil)
