package gate

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/usil/eventhos-relay/internal/models"
)

// Rejection is a gate refusal surfaced to the caller as an HTTP response.
type Rejection struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

const (
	CodeAccessParamsMissing = "access-params-missing"
	CodeEventNotFound       = "event-not-found"
	CodeClientNotFound      = "client-not-found"
	CodeClientRevoked       = "client-revoked"
	CodeIncorrectToken      = "incorrect-token"
	CodeInternalError       = "internal-error"
)

// Gate authenticates an inbound event notification against the
// registered client credential of the producing system.
type Gate struct {
	db     *gorm.DB
	secret string
	logger *zap.Logger
}

func NewGate(db *gorm.DB, tokenSecret string, logger *zap.Logger) *Gate {
	return &Gate{
		db:     db,
		secret: tokenSecret,
		logger: logger,
	}
}

// Authenticate validates accessKey against the client owning the event's
// system. On success only the event id is returned; no other event
// detail reaches the caller at this stage. The access key is either a
// static token checked against the client's stored bcrypt hash, or a
// signed token whose subject must be the client's id.
func (g *Gate) Authenticate(accessKey, eventIdentifier string) (int64, *Rejection) {
	if accessKey == "" || eventIdentifier == "" {
		return 0, &Rejection{
			Status:  400,
			Code:    CodeAccessParamsMissing,
			Message: "access-key and event-identifier are required",
		}
	}

	var event models.Event
	err := g.db.Where("identifier = ?", eventIdentifier).First(&event).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, &Rejection{
				Status:  404,
				Code:    CodeEventNotFound,
				Message: fmt.Sprintf("no event found for identifier %s", eventIdentifier),
			}
		}
		return 0, g.internalError("failed to load event", err)
	}

	var client models.Client
	err = g.db.Where("system_id = ?", event.SystemID).First(&client).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, &Rejection{
				Status:  404,
				Code:    CodeClientNotFound,
				Message: "no client is registered for the event's system",
			}
		}
		return 0, g.internalError("failed to load client", err)
	}

	if client.Revoked {
		return 0, &Rejection{
			Status:  403,
			Code:    CodeClientRevoked,
			Message: "the client credential has been revoked",
		}
	}

	if client.AccessToken != nil && *client.AccessToken != "" {
		if bcrypt.CompareHashAndPassword([]byte(*client.AccessToken), []byte(accessKey)) != nil {
			return 0, incorrectToken()
		}
		return event.ID, nil
	}

	if rej := g.verifySignedToken(accessKey, client.ID); rej != nil {
		return 0, rej
	}

	return event.ID, nil
}

// verifySignedToken checks signature and expiry with the process-wide
// secret and requires the token subject to equal the client id.
func (g *Gate) verifySignedToken(accessKey string, clientID int64) *Rejection {
	token, err := jwt.Parse(accessKey, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(g.secret), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		return incorrectToken()
	}

	subject, err := token.Claims.GetSubject()
	if err != nil {
		return incorrectToken()
	}
	subjectID, err := strconv.ParseInt(subject, 10, 64)
	if err != nil || subjectID != clientID {
		return incorrectToken()
	}

	return nil
}

func incorrectToken() *Rejection {
	return &Rejection{
		Status:  401,
		Code:    CodeIncorrectToken,
		Message: "the provided access key is not valid for this event",
	}
}

func (g *Gate) internalError(msg string, err error) *Rejection {
	g.logger.Error(msg, zap.Error(err))
	return &Rejection{
		Status:  500,
		Code:    CodeInternalError,
		Message: "an unexpected error occurred",
	}
}
