package validation

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"loyalty-points/internal/domain"
	"loyalty-points/internal/errors"
)

// The validation layer turns a raw JSON object into a normalized, typed map
// according to a per-operation rule table. Rules are immutable data resolved
// per call; there is no shared mutable state.
//
// Two presence modes mirror the API contract:
//   - required: the key must exist, the value must be non-null and well-typed
//   - present:  the key must exist, but the value may be null
//
// A missing key is always a validation failure, distinct from an explicit null.

type fieldKind int

const (
	kindAccountType fieldKind = iota
	kindPositiveInt
	kindString
	kindDecimal2
	kindDate
)

type fieldRule struct {
	name     string
	kind     fieldKind
	nullable bool // "present" in the rule table: key required, value may be null
	minLen   int  // for kindString
}

const (
	OpDeposit  = "deposit"
	OpWithdraw = "withdraw"
	OpCancel   = "cancel"
)

var ruleTable = map[string][]fieldRule{
	OpDeposit: {
		{name: "account_type", kind: kindAccountType},
		{name: "account_id", kind: kindPositiveInt},
		{name: "loyalty_points_rule", kind: kindString, minLen: 3},
		{name: "description", kind: kindString, minLen: 3},
		{name: "payment_id", kind: kindString, nullable: true},
		{name: "payment_amount", kind: kindDecimal2, nullable: true},
		{name: "payment_time", kind: kindDate, nullable: true},
	},
	OpWithdraw: {
		{name: "account_type", kind: kindAccountType},
		{name: "account_id", kind: kindPositiveInt},
		{name: "points_amount", kind: kindDecimal2},
		{name: "description", kind: kindString, minLen: 3},
	},
	OpCancel: {
		{name: "transaction_id", kind: kindPositiveInt},
		{name: "cancellation_reason", kind: kindString, nullable: true},
	},
}

var failureMessage = map[string]string{
	OpDeposit:  "Wrong account parameters",
	OpWithdraw: "Wrong account parameters",
	OpCancel:   "check request parameters",
}

// Validate checks input against the rule table for the named operation and
// returns the normalized values. Normalized types: string, int64,
// decimal.Decimal, time.Time; nullable fields that were null map to nil.
func Validate(op string, input map[string]any) (map[string]any, error) {
	rules, ok := ruleTable[op]
	if !ok {
		return nil, errors.NewAppError(errors.ValidationError, "no validation rules found")
	}

	out := make(map[string]any, len(rules))
	for _, rule := range rules {
		raw, exists := input[rule.name]
		if !exists {
			return nil, fail(op, fmt.Sprintf("field %q is missing", rule.name))
		}
		if raw == nil {
			if !rule.nullable {
				return nil, fail(op, fmt.Sprintf("field %q must not be null", rule.name))
			}
			out[rule.name] = nil
			continue
		}

		value, err := normalize(rule, raw)
		if err != nil {
			return nil, fail(op, fmt.Sprintf("field %q: %s", rule.name, err))
		}
		out[rule.name] = value
	}
	return out, nil
}

func fail(op, detail string) *errors.AppError {
	return errors.NewAppError(errors.ValidationError, failureMessage[op]).WithDetails(detail)
}

func normalize(rule fieldRule, raw any) (any, error) {
	switch rule.kind {
	case kindAccountType:
		s, ok := raw.(string)
		if !ok || !domain.ValidIdentifierType(s) {
			return nil, fmt.Errorf("must be one of phone, card, email")
		}
		return s, nil

	case kindPositiveInt:
		n, err := toInt64(raw)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("must be a positive integer")
		}
		return n, nil

	case kindString:
		s, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("must be a string")
		}
		if len(s) < rule.minLen {
			return nil, fmt.Errorf("must be at least %d characters", rule.minLen)
		}
		return s, nil

	case kindDecimal2:
		d, err := toDecimal(raw)
		if err != nil {
			return nil, fmt.Errorf("must be a decimal number")
		}
		if d.Exponent() < -2 {
			return nil, fmt.Errorf("must have at most 2 decimal places")
		}
		return d, nil

	case kindDate:
		s, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("must be a date string")
		}
		t, err := parseDate(s)
		if err != nil {
			return nil, fmt.Errorf("must be a valid date")
		}
		return t, nil
	}
	return nil, fmt.Errorf("unsupported rule kind")
}

func toInt64(raw any) (int64, error) {
	switch v := raw.(type) {
	case json.Number:
		return v.Int64()
	case float64:
		n := int64(v)
		if float64(n) != v {
			return 0, fmt.Errorf("not an integer")
		}
		return n, nil
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case string:
		return strconv.ParseInt(v, 10, 64)
	}
	return 0, fmt.Errorf("not an integer")
}

func toDecimal(raw any) (decimal.Decimal, error) {
	switch v := raw.(type) {
	case json.Number:
		return decimal.NewFromString(v.String())
	case float64:
		return decimal.NewFromFloat(v), nil
	case string:
		if strings.TrimSpace(v) == "" {
			return decimal.Decimal{}, fmt.Errorf("empty")
		}
		return decimal.NewFromString(v)
	case decimal.Decimal:
		return v, nil
	}
	return decimal.Decimal{}, fmt.Errorf("not a decimal")
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

// DepositInput is the typed form of a validated deposit request.
type DepositInput struct {
	AccountType       domain.IdentifierType
	AccountID         int64
	LoyaltyPointsRule string
	Description       string
	PaymentID         *string
	PaymentAmount     *decimal.Decimal
	PaymentTime       *time.Time
}

// WithdrawInput is the typed form of a validated withdraw request. The amount
// is the requested (positive) redemption; the recorded transaction negates it.
type WithdrawInput struct {
	AccountType  domain.IdentifierType
	AccountID    int64
	PointsAmount decimal.Decimal
	Description  string
}

// CancelInput is the typed form of a validated cancel request. A null reason
// passes validation and arrives here as ""; requiring a non-empty reason is a
// business rule, not a shape rule.
type CancelInput struct {
	TransactionID      int64
	CancellationReason string
}

func Deposit(input map[string]any) (*DepositInput, error) {
	v, err := Validate(OpDeposit, input)
	if err != nil {
		return nil, err
	}
	out := &DepositInput{
		AccountType:       domain.IdentifierType(v["account_type"].(string)),
		AccountID:         v["account_id"].(int64),
		LoyaltyPointsRule: v["loyalty_points_rule"].(string),
		Description:       v["description"].(string),
	}
	if s, ok := v["payment_id"].(string); ok {
		out.PaymentID = &s
	}
	if d, ok := v["payment_amount"].(decimal.Decimal); ok {
		out.PaymentAmount = &d
	}
	if t, ok := v["payment_time"].(time.Time); ok {
		out.PaymentTime = &t
	}
	return out, nil
}

func Withdraw(input map[string]any) (*WithdrawInput, error) {
	v, err := Validate(OpWithdraw, input)
	if err != nil {
		return nil, err
	}
	return &WithdrawInput{
		AccountType:  domain.IdentifierType(v["account_type"].(string)),
		AccountID:    v["account_id"].(int64),
		PointsAmount: v["points_amount"].(decimal.Decimal),
		Description:  v["description"].(string),
	}, nil
}

func Cancel(input map[string]any) (*CancelInput, error) {
	v, err := Validate(OpCancel, input)
	if err != nil {
		return nil, err
	}
	out := &CancelInput{TransactionID: v["transaction_id"].(int64)}
	if s, ok := v["cancellation_reason"].(string); ok {
		out.CancellationReason = s
	}
	return out, nil
}
