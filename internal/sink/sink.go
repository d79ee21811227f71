package sink

import (
	"bytes"
	"encoding/json"
	"html/template"
	"time"

	"go.uber.org/zap"

	"github.com/usil/eventhos-relay/internal/dispatch"
	applog "github.com/usil/eventhos-relay/internal/logger"
)

// Mailer delivers an already-rendered, already-obfuscated HTML body.
type Mailer interface {
	Send(subject, htmlBody string) error
}

// Sink receives terminal per-contract outcomes. Failures are logged at
// error level twice (message, then detail) and rendered into a failure
// mail with sensitive fields obfuscated; successes are logged once at
// info level. The sink never blocks or mutates a result.
type Sink struct {
	logger       *zap.Logger
	mailer       Mailer
	subject      string
	maskedFields string
}

func NewSink(logger *zap.Logger, mailer Mailer, subject, maskedFields string) *Sink {
	return &Sink{
		logger:       logger,
		mailer:       mailer,
		subject:      subject,
		maskedFields: maskedFields,
	}
}

var failureMail = template.Must(template.New("failure").Parse(`<html>
<body>
  <h2>Contract execution failed</h2>
  <table>
    <tr><td><b>Contract</b></td><td>{{.ContractName}}</td></tr>
    <tr><td><b>Contract Id</b></td><td>{{.ContractID}}</td></tr>
    <tr><td><b>Message</b></td><td>{{.Message}}</td></tr>
    <tr><td><b>Error</b></td><td>{{.Error}}</td></tr>
    {{if .Request}}<tr><td><b>Request</b></td><td>{{.Request}}</td></tr>
    {{end}}<tr><td><b>Time</b></td><td>{{.Time}}</td></tr>
  </table>
</body>
</html>`))

type failureMailData struct {
	ContractName string
	ContractID   int64
	Message      string
	Error        string
	Request      string
	Time         string
}

// OnResult forwards one terminal outcome to logging and, for failures,
// to the mailer.
func (s *Sink) OnResult(result dispatch.Result) {
	if result.Err == nil {
		s.logger.Info(result.Message,
			applog.ContractID(result.ContractID),
			applog.Contract(result.ContractName),
		)
		return
	}

	s.logger.Error(result.Message,
		applog.ContractID(result.ContractID),
		applog.Contract(result.ContractName),
	)
	s.logger.Error("Contract execution error detail",
		applog.ContractID(result.ContractID),
		zap.Error(result.Err),
	)

	if s.mailer == nil {
		return
	}

	data := failureMailData{
		ContractName: result.ContractName,
		ContractID:   result.ContractID,
		Message:      StringObfuscate(s.maskedFields, result.Message),
		Error:        StringObfuscate(s.maskedFields, result.Err.Error()),
		Request:      s.requestSummary(result.Request),
		Time:         time.Now().UTC().Format(time.RFC3339),
	}

	var body bytes.Buffer
	if err := failureMail.Execute(&body, data); err != nil {
		s.logger.Error("Failed to render failure mail", zap.Error(err))
		return
	}

	if err := s.mailer.Send(s.subject, body.String()); err != nil {
		s.logger.Error("Failed to send failure mail", zap.Error(err))
	}
}

// requestSummary renders the resolved outbound call for the failure
// mail with every configured sensitive field masked. The URL and a
// string body go through StringObfuscate; headers, query, and a JSON
// body go through ObjectObfuscate.
func (s *Sink) requestSummary(req *dispatch.CallRequest) string {
	if req == nil {
		return ""
	}

	payload := map[string]any{
		"url":     StringObfuscate(s.maskedFields, req.URL),
		"method":  req.Method,
		"headers": ObjectObfuscate(s.maskedFields, toAnyMap(req.Headers)),
		"query":   ObjectObfuscate(s.maskedFields, toAnyMap(req.Query)),
	}
	switch body := req.Body.(type) {
	case nil:
	case string:
		payload["body"] = StringObfuscate(s.maskedFields, body)
	default:
		payload["body"] = ObjectObfuscate(s.maskedFields, body)
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error("Failed to render request summary", zap.Error(err))
		return ""
	}
	return string(raw)
}

func toAnyMap(values map[string]string) map[string]any {
	if values == nil {
		return nil
	}
	out := make(map[string]any, len(values))
	for key, value := range values {
		out[key] = value
	}
	return out
}
