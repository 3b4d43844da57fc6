package backend

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Outcome is the single tagged status every poll response is reduced to
// before any business logic sees it.
type Outcome int

const (
	OutcomePending Outcome = iota
	OutcomeCompleted
	OutcomeCancelled
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomePending:
		return "pending"
	case OutcomeCompleted:
		return "completed"
	case OutcomeCancelled:
		return "cancelled"
	default:
		return "failed"
	}
}

// PollResult is a normalized payment/transaction status response.
type PollResult struct {
	Outcome     Outcome
	Description string
}

// Terminal reports whether the result ends polling.
func (r PollResult) Terminal() bool {
	return r.Outcome != OutcomePending
}

// resultCode tolerates the gateway sending the daraja result code either as
// a JSON number (0) or a string ("0").
type resultCode string

func (c *resultCode) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*c = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*c = resultCode(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("resultCode is neither string nor number: %w", err)
	}
	*c = resultCode(n.String())
	return nil
}

type statusEnvelope struct {
	Success bool       `json:"success"`
	Data    statusData `json:"data"`
}

type statusData struct {
	Status     string     `json:"status"`
	ResultCode resultCode `json:"resultCode"`
	ResultDesc string     `json:"resultDesc"`
}

// Daraja result codes the gateway relays verbatim.
const (
	codeCompleted       = "0"
	codeCancelledByUser = "1032"
	codeUnreachable     = "1037"
)

// normalizeStatus folds the two backend response conventions (a status
// string, or a raw daraja resultCode) into one PollResult. The status field
// wins when it carries a known value; otherwise the result code decides;
// neither present means the payment is still pending.
func normalizeStatus(d statusData) PollResult {
	desc := d.ResultDesc

	switch strings.ToUpper(strings.TrimSpace(d.Status)) {
	case "COMPLETED", "SUCCESS":
		return PollResult{Outcome: OutcomeCompleted, Description: desc}
	case "CANCELLED":
		return PollResult{Outcome: OutcomeCancelled, Description: desc}
	case "FAILED":
		return PollResult{Outcome: OutcomeFailed, Description: desc}
	case "PENDING", "PROCESSING":
		return PollResult{Outcome: OutcomePending, Description: desc}
	}

	switch string(d.ResultCode) {
	case "":
		return PollResult{Outcome: OutcomePending, Description: desc}
	case codeCompleted:
		return PollResult{Outcome: OutcomeCompleted, Description: desc}
	case codeCancelledByUser:
		if desc == "" {
			desc = "request cancelled by user"
		}
		return PollResult{Outcome: OutcomeCancelled, Description: desc}
	case codeUnreachable:
		if desc == "" {
			desc = "phone unreachable or request timed out"
		}
		return PollResult{Outcome: OutcomeFailed, Description: desc}
	default:
		if desc == "" {
			desc = fmt.Sprintf("payment failed with code %s", d.ResultCode)
		}
		return PollResult{Outcome: OutcomeFailed, Description: desc}
	}
}
