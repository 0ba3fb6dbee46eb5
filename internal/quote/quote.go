package quote

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Currency is the quote currency for every lookup.
const Currency = "usd"

// User-facing texts for non-numeric outcomes.
const (
	MsgNotFound    = "Coin not found"
	MsgUnavailable = "Price not available"
	failurePrefix  = "Failed to retrieve price: "
)

// Status tags the outcome of one lookup.
type Status int

const (
	StatusPriced Status = iota
	StatusNotFound
	StatusUnavailable
	StatusTransportError
)

func (s Status) String() string {
	switch s {
	case StatusPriced:
		return "priced"
	case StatusNotFound:
		return "not_found"
	case StatusUnavailable:
		return "unavailable"
	case StatusTransportError:
		return "transport_error"
	default:
		return "unknown"
	}
}

// Quote is the result for one user-entered name.
type Quote struct {
	Input  string // name as entered, trimmed
	CoinID string // empty when unresolved
	Status Status
	Price  decimal.Decimal // set for StatusPriced
	Err    error           // set for StatusTransportError
}

// Display renders the quote value: a price with two decimals or a message.
func (q Quote) Display() string {
	switch q.Status {
	case StatusPriced:
		return q.Price.StringFixed(2)
	case StatusNotFound:
		return MsgNotFound
	case StatusUnavailable:
		return MsgUnavailable
	default:
		if q.Err == nil {
			return strings.TrimSuffix(failurePrefix, ": ")
		}
		return failurePrefix + q.Err.Error()
	}
}

// ParseNames splits comma-separated input into trimmed names, dropping blank
// entries. Duplicates and order are kept.
func ParseNames(input string) []string {
	parts := strings.Split(input, ",")
	names := make([]string, 0, len(parts))
	for _, p := range parts {
		if name := strings.TrimSpace(p); name != "" {
			names = append(names, name)
		}
	}
	return names
}
