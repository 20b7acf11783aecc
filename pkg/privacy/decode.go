package privacy

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"wave-swap/pkg/types"
)

// DecodeBalanceValue normalizes every known shape of a confidential balance
// value into the canonical types.Balance. The endpoint has historically
// returned JSON numbers, numeric strings, and the two sentinel strings, so
// all four are accepted. Anything else is a decode error, not a best-effort
// guess.
func DecodeBalanceValue(raw json.RawMessage) (types.Balance, error) {
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		switch asString {
		case types.SentinelAuthRequired:
			return types.Balance{Kind: types.BalanceAuthRequired}, nil
		case types.SentinelDeposited:
			return types.Balance{Kind: types.BalanceDeposited}, nil
		}
		amount, err := decimal.NewFromString(asString)
		if err != nil {
			return types.Balance{}, fmt.Errorf("unknown balance value %q", asString)
		}
		return types.Numeric(amount), nil
	}

	var asNumber json.Number
	if err := json.Unmarshal(raw, &asNumber); err == nil {
		amount, err := decimal.NewFromString(asNumber.String())
		if err != nil {
			return types.Balance{}, fmt.Errorf("unknown balance number %q", asNumber.String())
		}
		return types.Numeric(amount), nil
	}

	return types.Balance{}, fmt.Errorf("undecodable balance value: %s", string(raw))
}
