package broker

import "fmt"

// Security types understood by the gateway.
const (
	SecTypeStock  = "STK"
	SecTypeOption = "OPT"
)

// Option rights.
const (
	RightPut  = "PUT"
	RightCall = "CALL"
)

// Contract identifies a tradable instrument on the gateway. The zero value
// is not valid; use Stock or Option.
type Contract struct {
	Symbol       string
	SecType      string
	Expiry       string // YYYYMMDD, options only
	Strike       float64
	Right        string // PUT or CALL, options only
	Exchange     string
	Currency     string
	ConID        int64
	TradingClass string
	Multiplier   float64
}

// Stock returns a SMART-routed USD stock contract.
func Stock(symbol string) Contract {
	return Contract{
		Symbol:   symbol,
		SecType:  SecTypeStock,
		Exchange: "SMART",
		Currency: "USD",
	}
}

// Option returns a SMART-routed USD option contract.
func Option(symbol, expiry string, strike float64, right string) Contract {
	return Contract{
		Symbol:   symbol,
		SecType:  SecTypeOption,
		Expiry:   expiry,
		Strike:   strike,
		Right:    right,
		Exchange: "SMART",
		Currency: "USD",
	}
}

// IsOption reports whether the contract is an option.
func (c Contract) IsOption() bool { return c.SecType == SecTypeOption }

func (c Contract) String() string {
	if c.IsOption() {
		return fmt.Sprintf("%s %s %g %s", c.Symbol, c.Right, c.Strike, c.Expiry)
	}
	return fmt.Sprintf("%s %s", c.Symbol, c.SecType)
}
