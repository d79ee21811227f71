package dispatch

import (
	"strconv"

	"github.com/usil/eventhos-relay/internal/contracts"
)

// EventContract aliases the resolver's joined row; the orchestrator
// consumes exactly what the contract resolver produces.
type EventContract = contracts.EventContract

// CallTemplate is the decrypted shape of an action's HTTP call (or of an
// oauth2_client token request). Header, param, and data values may
// contain ${...} template expressions.
type CallTemplate struct {
	URL     string         `json:"url"`
	Method  string         `json:"method"`
	Headers map[string]any `json:"headers"`
	Params  map[string]any `json:"params"`
	Data    any            `json:"data"`
}

// RequestSnapshot is the immutable inbound request an event arrived
// with. It is the template resolution context and, encrypted, the
// ReceivedEvent audit payload.
type RequestSnapshot struct {
	Headers map[string]any `json:"headers"`
	Query   map[string]any `json:"query"`
	Body    any            `json:"body"`
	Method  string         `json:"method"`
	URL     string         `json:"url"`
}

// Result is the outcome of one contract execution. Failures travel as
// values; nothing escapes the per-contract unit. Request is the
// resolved outbound call, populated once template resolution succeeded;
// notification consumers must obfuscate it before it leaves the
// process.
type Result struct {
	ContractID   int64
	ContractName string
	Message      string
	Request      *CallRequest
	Err          error
}

// ResultSink receives terminal per-contract outcomes after every tier
// has completed, in dispatch order.
type ResultSink interface {
	OnResult(Result)
}

// ValidationError is a dispatch input refusal, surfaced as a 400.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

const (
	MsgMissingInput      = "Event Id or Event Contract List was not send."
	MsgEventIDNotNumber  = "Event Id is not a number."
	MsgContractsNotArray = "Event Contract is not an array."
)

// Validate checks the dispatch inputs before acceptance. Each violation
// yields its own message; contractList must be a non-empty contract
// slice and eventID a numeric string.
func Validate(eventID string, contractList any) *ValidationError {
	if eventID == "" || contractList == nil {
		return &ValidationError{Message: MsgMissingInput}
	}
	if _, err := strconv.ParseInt(eventID, 10, 64); err != nil {
		return &ValidationError{Message: MsgEventIDNotNumber}
	}
	list, ok := contractList.([]EventContract)
	if !ok {
		return &ValidationError{Message: MsgContractsNotArray}
	}
	if len(list) == 0 {
		return &ValidationError{Message: MsgMissingInput}
	}
	return nil
}
