package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Ananth-NQI/segurobot-backend/internal/config"
	"github.com/Ananth-NQI/segurobot-backend/internal/logger"
	"github.com/Ananth-NQI/segurobot-backend/internal/utils"
	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// ErrTransportNotConfigured is returned by NewTwilioService without credentials
var ErrTransportNotConfigured = errors.New("missing Twilio credentials")

type TwilioService struct {
	client *twilio.RestClient
	from   string // Your Twilio WhatsApp number
	log    *logger.Logger
}

// NewTwilioService creates a new Twilio service instance
func NewTwilioService(cfg config.TwilioConfig, log *logger.Logger) (*TwilioService, error) {
	if !cfg.Configured() {
		return nil, ErrTransportNotConfigured
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})

	return &TwilioService{
		client: client,
		from:   cfg.WhatsAppFrom,
		log:    log,
	}, nil
}

// SendText sends a WhatsApp message via Twilio
func (t *TwilioService) SendText(ctx context.Context, to string, message string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	params := &twilioApi.CreateMessageParams{}
	params.SetFrom(t.from)
	params.SetTo(whatsAppAddress(to))
	params.SetBody(message)

	resp, err := t.client.Api.CreateMessage(params)
	if err != nil {
		return fmt.Errorf("failed to send WhatsApp message: %w", err)
	}
	if resp.Sid != nil {
		t.log.Debug("WhatsApp message sent", "to", to, "sid", *resp.Sid)
	}
	return nil
}

// SendOptionList sends a list-picker content template. Lists without an
// approved template cannot be rendered by Twilio and are reported as
// ErrInteractiveUnsupported so the caller falls back to text.
func (t *TwilioService) SendOptionList(ctx context.Context, to string, list OptionList) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if list.ContentSID == "" {
		return ErrInteractiveUnsupported
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetFrom(t.from)
	params.SetTo(whatsAppAddress(to))
	params.SetContentSid(list.ContentSID)

	variables := map[string]string{
		"1": list.Title,
		"2": list.Description,
	}
	for i, row := range list.Rows() {
		variables[fmt.Sprintf("item_%d", i+1)] = row.Title
		variables[fmt.Sprintf("id_%d", i+1)] = row.ID
	}
	variablesJSON, err := json.Marshal(variables)
	if err != nil {
		return fmt.Errorf("failed to marshal content variables: %w", err)
	}
	params.SetContentVariables(string(variablesJSON))

	resp, err := t.client.Api.CreateMessage(params)
	if err != nil {
		return fmt.Errorf("failed to send list template: %w", err)
	}
	if resp.ErrorCode != nil && *resp.ErrorCode != 0 {
		msg := ""
		if resp.ErrorMessage != nil {
			msg = *resp.ErrorMessage
		}
		return fmt.Errorf("twilio error %d: %s", *resp.ErrorCode, msg)
	}
	return nil
}

func whatsAppAddress(to string) string {
	return utils.CanonicalAddress(to)
}

// LogTransport stands in for Twilio when it is not configured; messages are
// only logged.
type LogTransport struct {
	log *logger.Logger
}

func NewLogTransport(log *logger.Logger) *LogTransport {
	return &LogTransport{log: log}
}

func (l *LogTransport) SendText(ctx context.Context, to, text string) error {
	l.log.Info("📤 Response (not sent - Twilio not configured)", "to", to, "text", text)
	return nil
}

func (l *LogTransport) SendOptionList(ctx context.Context, to string, list OptionList) error {
	return ErrInteractiveUnsupported
}
