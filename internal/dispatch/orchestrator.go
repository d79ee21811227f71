package dispatch

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/usil/eventhos-relay/internal/config"
	"github.com/usil/eventhos-relay/internal/crypto"
	applog "github.com/usil/eventhos-relay/internal/logger"
	"github.com/usil/eventhos-relay/internal/models"
	"github.com/usil/eventhos-relay/internal/templating"
)

// Orchestrator executes the contracts bound to a received event: tiers
// run sequentially in ascending order, contracts within a tier run
// concurrently, and every attempt is audited with encrypted request and
// response snapshots. Dispatch is fire-and-forget relative to the
// inbound HTTP response.
type Orchestrator struct {
	db      *gorm.DB
	codec   *crypto.Codec
	sink    ResultSink
	logger  *zap.Logger
	client  *http.Client
	maxBody int
}

func NewOrchestrator(db *gorm.DB, codec *crypto.Codec, sink ResultSink, cfg *config.DispatchConfig, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		db:      db,
		codec:   codec,
		sink:    sink,
		logger:  logger,
		client:  &http.Client{Timeout: time.Duration(cfg.HTTPTimeoutSeconds) * time.Second},
		maxBody: cfg.MaxResponseBodySize,
	}
}

// RecordReceivedEvent persists the encrypted inbound request snapshot.
// It is called for every authenticated event, including events with
// zero bound contracts.
func (o *Orchestrator) RecordReceivedEvent(eventID int64, snapshot RequestSnapshot) (*models.ReceivedEvent, error) {
	raw, err := json.Marshal(snapshot)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal inbound request snapshot: %w", err)
	}
	encrypted, err := o.codec.Encrypt(string(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt inbound request snapshot: %w", err)
	}

	received := &models.ReceivedEvent{
		EventID:         eventID,
		CorrelationID:   uuid.New(),
		ReceivedRequest: encrypted,
		ReceivedAt:      time.Now().UTC(),
	}
	if err := o.db.Create(received).Error; err != nil {
		return nil, fmt.Errorf("failed to persist received event: %w", err)
	}
	return received, nil
}

// Dispatch launches the tiered execution and returns immediately. The
// returned correlation id lets the caller reference the run in logs.
func (o *Orchestrator) Dispatch(eventID int64, contracts []EventContract, snapshot RequestSnapshot) uuid.UUID {
	correlationID := uuid.New()
	go o.run(correlationID, eventID, contracts, snapshot)
	return correlationID
}

func (o *Orchestrator) run(correlationID uuid.UUID, eventID int64, contracts []EventContract, snapshot RequestSnapshot) {
	var receivedEventID int64
	received, err := o.RecordReceivedEvent(eventID, snapshot)
	if err != nil {
		// Audit storage failures never abort execution.
		o.logger.Error("Failed to record received event",
			applog.EventID(eventID),
			applog.CorrelationID(correlationID.String()),
			zap.Error(err),
		)
	} else {
		receivedEventID = received.ID
	}

	results := make([]Result, 0, len(contracts))
	for _, tier := range partition(contracts) {
		tierResults := make([]Result, len(tier))
		var wg sync.WaitGroup
		for i, ec := range tier {
			wg.Add(1)
			go func(i int, ec EventContract) {
				defer wg.Done()
				defer func() {
					if r := recover(); r != nil {
						tierResults[i] = Result{
							ContractID:   ec.Contract.ID,
							ContractName: ec.Contract.Name,
							Message:      fmt.Sprintf("Contract %s execution panicked", ec.Contract.Identifier),
							Err:          fmt.Errorf("panic: %v", r),
						}
					}
				}()
				tierResults[i] = o.executeContract(receivedEventID, ec, snapshot)
			}(i, ec)
		}
		// The whole tier resolves, success or failure, before the next
		// tier starts.
		wg.Wait()
		results = append(results, tierResults...)
	}

	for _, result := range results {
		o.sink.OnResult(result)
	}
}

// partition groups contracts into tiers keyed by order, ascending.
// Membership order within a tier is the resolver's row order; contracts
// in a tier are independent, so it carries no guarantee.
func partition(contracts []EventContract) [][]EventContract {
	byOrder := make(map[int][]EventContract)
	orders := make([]int, 0)
	for _, ec := range contracts {
		if _, seen := byOrder[ec.Contract.Order]; !seen {
			orders = append(orders, ec.Contract.Order)
		}
		byOrder[ec.Contract.Order] = append(byOrder[ec.Contract.Order], ec)
	}
	sort.Ints(orders)

	tiers := make([][]EventContract, 0, len(orders))
	for _, order := range orders {
		tiers = append(tiers, byOrder[order])
	}
	return tiers
}

// executeContract runs one contract end to end: optional oauth2 token
// pre-step, template resolution, the outbound call, and the audit
// writes. It always returns a Result value.
func (o *Orchestrator) executeContract(receivedEventID int64, ec EventContract, snapshot RequestSnapshot) Result {
	result := Result{
		ContractID:   ec.Contract.ID,
		ContractName: ec.Contract.Name,
	}

	var oauthResponse any
	if ec.Security.Type == models.SecurityOAuth2 && ec.Security.HTTPConfiguration != "" {
		response, err := o.acquireToken(receivedEventID, ec, snapshot)
		if err != nil {
			result.Message = fmt.Sprintf("Contract %s failed acquiring its access token", ec.Contract.Identifier)
			result.Err = err
			return result
		}
		oauthResponse = response
	}

	template, err := o.decryptTemplate(ec.Action.HTTPConfiguration)
	if err != nil {
		o.audit(receivedEventID, ec, CallRequest{}, &CallResult{
			StartedAt:  time.Now().UTC(),
			FinishedAt: time.Now().UTC(),
			Err:        err,
		})
		result.Message = fmt.Sprintf("Contract %s has an unreadable action template", ec.Contract.Identifier)
		result.Err = err
		return result
	}

	resolver, err := templating.NewResolver(templating.Context{
		Headers:       snapshot.Headers,
		Query:         snapshot.Query,
		Body:          snapshot.Body,
		OAuthResponse: oauthResponse,
	})
	if err != nil {
		result.Message = fmt.Sprintf("Contract %s context could not be built", ec.Contract.Identifier)
		result.Err = err
		return result
	}

	callReq := o.resolveCall(template, resolver, snapshot)
	result.Request = &callReq
	callResult := o.call(callReq)
	o.audit(receivedEventID, ec, callReq, callResult)

	if callResult.Err != nil {
		result.Message = fmt.Sprintf("Contract %s (%s) failed", ec.Contract.Name, ec.Contract.Identifier)
		result.Err = callResult.Err
		return result
	}

	result.Message = fmt.Sprintf("Contract %s (%s) processed", ec.Contract.Name, ec.Contract.Identifier)
	return result
}

// acquireToken runs the oauth2_client pre-step: the decrypted token
// request template is resolved against the inbound context and issued;
// its {headers, body} become the oauthResponse context for this
// contract only.
func (o *Orchestrator) acquireToken(receivedEventID int64, ec EventContract, snapshot RequestSnapshot) (any, error) {
	template, err := o.decryptTemplate(ec.Security.HTTPConfiguration)
	if err != nil {
		return nil, fmt.Errorf("unreadable token request template: %w", err)
	}

	resolver, err := templating.NewResolver(templating.Context{
		Headers: snapshot.Headers,
		Query:   snapshot.Query,
		Body:    snapshot.Body,
	})
	if err != nil {
		return nil, err
	}

	callReq := o.resolveCall(template, resolver, snapshot)
	callResult := o.call(callReq)
	if callResult.Err != nil {
		o.audit(receivedEventID, ec, callReq, callResult)
		return nil, fmt.Errorf("token request failed: %w", callResult.Err)
	}

	body := callResult.BodyParsed
	if body == nil {
		body = callResult.Body
	}
	return map[string]any{
		"headers": callResult.Headers,
		"body":    body,
	}, nil
}

// resolveCall renders the call template: headers and params with their
// field kinds, the body deep with data semantics. A body template that
// is the literal empty object passes the inbound body through.
func (o *Orchestrator) resolveCall(template CallTemplate, resolver *templating.Resolver, snapshot RequestSnapshot) CallRequest {
	headers := resolver.ResolveObject(template.Headers, templating.FieldHeader)
	params := resolver.ResolveObject(template.Params, templating.FieldParam)

	var body any
	if isEmptyBodyTemplate(template.Data) {
		body = snapshot.Body
	} else {
		body = resolver.ResolveBody(template.Data)
	}

	url, _ := resolver.Resolve(template.URL, templating.FieldParam).(string)
	return CallRequest{
		URL:     url,
		Method:  template.Method,
		Headers: flatten(headers),
		Query:   flatten(params),
		Body:    body,
	}
}

// isEmptyBodyTemplate reports whether the action declares no body shape,
// which means the inbound request body passes through unmodified.
func isEmptyBodyTemplate(data any) bool {
	if data == nil {
		return true
	}
	if m, ok := data.(map[string]any); ok {
		return len(m) == 0
	}
	return false
}

func (o *Orchestrator) decryptTemplate(encrypted string) (CallTemplate, error) {
	var template CallTemplate
	plain, err := o.codec.Decrypt(encrypted)
	if err != nil {
		return template, fmt.Errorf("failed to decrypt call template: %w", err)
	}
	if err := json.Unmarshal([]byte(plain), &template); err != nil {
		return template, fmt.Errorf("failed to parse call template: %w", err)
	}
	return template, nil
}
