package broker

import "errors"

// Client is the gateway connection. Implementations deliver callbacks as
// Events; requests are asynchronous and correlated by request id. The wire
// protocol itself (framing, handshake) lives behind this interface.
type Client interface {
	RequestMarketData(reqID int64, c Contract, tickList string) error
	CancelMarketData(reqID int64) error
	RequestCurrentTime() error
	RequestContractDetails(reqID int64, c Contract) error
	RequestHistoricalData(reqID int64, c Contract, duration, barSize string) error
	RequestPositions() error
	CancelPositions() error
	Events() <-chan Event
	Close() error
}

var (
	// ErrTimeout is returned when the gateway does not answer in time.
	ErrTimeout = errors.New("broker: request timed out")
	// ErrNotReady is returned for requests issued before the handshake.
	ErrNotReady = errors.New("broker: connection not ready")
)

// advisoryCodes are routine gateway notices (data-farm connectivity and
// similar) that would otherwise flood the log at warning level.
var advisoryCodes = map[int]bool{
	2104: true,
	2106: true,
	2158: true,
	321:  true,
}

// IsAdvisory reports whether an error code is a routine notice rather than
// a real failure.
func IsAdvisory(code int) bool { return advisoryCodes[code] }
