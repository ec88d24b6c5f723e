package broker

import "time"

// Event is a tagged callback message from the gateway connection. The
// transport publishes events onto a single channel; the Dispatcher routes
// them to whoever is waiting.
type Event interface{ isEvent() }

// NextValidID signals a completed handshake and seeds request-id allocation.
type NextValidID struct {
	ID int64
}

// TickPrice carries one price-like field update for a subscription.
type TickPrice struct {
	ReqID int64
	Field int
	Price float64
}

// TickSize carries one size/volume field update.
type TickSize struct {
	ReqID int64
	Field int
	Size  float64
}

// TickGeneric carries a generic numeric tick (e.g. option IV ticks).
type TickGeneric struct {
	ReqID int64
	Field int
	Value float64
}

// Greeks is one option-computation callback. The gateway reports -1 for
// values it cannot compute yet; callers must treat those as unavailable.
type Greeks struct {
	IV       float64
	Delta    float64
	Gamma    float64
	Vega     float64
	Theta    float64
	UndPrice float64
}

// TickOptionComp carries greeks tagged by the computing quote side through
// Field (10-13 live, 80-83 delayed).
type TickOptionComp struct {
	ReqID  int64
	Field  int
	Greeks Greeks
}

// ContractDetailsData is one contract-details record.
type ContractDetailsData struct {
	ReqID        int64
	Contract     Contract
	TradingHours string
	TimeZoneID   string
}

// ContractDetailsEnd marks the end of a contract-details batch.
type ContractDetailsEnd struct {
	ReqID int64
}

// CurrentTime is the gateway's answer to a current-time request, UTC.
type CurrentTime struct {
	Time time.Time
}

// Bar is one historical bar record.
type Bar struct {
	ReqID  int64
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// HistoricalDataEnd marks the end of a historical-bar batch.
type HistoricalDataEnd struct {
	ReqID int64
}

// PositionData is one account position record.
type PositionData struct {
	Account  string
	Contract Contract
	Quantity float64
	AvgCost  float64
}

// PositionEnd marks the end of a positions batch.
type PositionEnd struct{}

// ErrorEvent is a gateway error or advisory notice.
type ErrorEvent struct {
	ReqID   int64
	Code    int
	Message string
}

func (NextValidID) isEvent()         {}
func (TickPrice) isEvent()           {}
func (TickSize) isEvent()            {}
func (TickGeneric) isEvent()         {}
func (TickOptionComp) isEvent()      {}
func (ContractDetailsData) isEvent() {}
func (ContractDetailsEnd) isEvent()  {}
func (CurrentTime) isEvent()         {}
func (Bar) isEvent()                 {}
func (HistoricalDataEnd) isEvent()   {}
func (PositionData) isEvent()        {}
func (PositionEnd) isEvent()         {}
func (ErrorEvent) isEvent()          {}
