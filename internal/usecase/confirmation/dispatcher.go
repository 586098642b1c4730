package confirmation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"strings"
	"time"

	"parkwise/internal/domain/slot"
	"parkwise/internal/domain/user"
	"parkwise/internal/pkg/clock"
	"parkwise/internal/pkg/config"
	"parkwise/internal/usecase/shared"
)

type Reason string

const (
	ReasonNone             Reason = ""
	ReasonInvalidRecipient Reason = "invalid_recipient"
	ReasonTransport        Reason = "transport"
	ReasonTimeout          Reason = "timeout"
	ReasonRejected         Reason = "rejected"
)

const (
	defaultMessage = "Your parking spot has been reserved successfully. " +
		"Please show the attached QR code when you arrive at the parking facility."

	isoMillis   = "2006-01-02T15:04:05.000Z"
	displayDate = "1/2/2006, 3:04:05 PM"
)

// DeliveryResult is the outcome of one confirmation attempt. Delivered is what callers
// gate on; Reason says why it was not.
type DeliveryResult struct {
	Delivered          bool
	Reason             Reason
	Status             int
	ConfirmationNumber string
	CodeURL            string
	IssuedAt           time.Time
	Err                error
}

type Dispatcher struct {
	notifier shared.Notifier
	codes    shared.CodeGenerator
	clock    clock.Clock
	cfg      config.NotifierConfig
	number   func() int
	logger   *slog.Logger
}

func NewDispatcher(notifier shared.Notifier, codes shared.CodeGenerator, clk clock.Clock, cfg config.Config, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		notifier: notifier,
		codes:    codes,
		clock:    clk,
		cfg:      cfg.Notifier,
		number:   func() int { return rand.IntN(1_000_000) },
		logger:   logger,
	}
}

// WithNumberSource replaces the confirmation number generator. Used by tests.
func (d *Dispatcher) WithNumberSource(fn func() int) *Dispatcher {
	d.number = fn
	return d
}

// Payload is the text encoded into the scannable code.
func Payload(s *slot.Slot, email string, at time.Time) string {
	return fmt.Sprintf("Parking Slot: %s, Reserved by: %s, Date: %s", s.Number(), email, at.UTC().Format(isoMillis))
}

func ValidRecipient(email string) bool {
	email = strings.TrimSpace(email)
	return email != "" && strings.Contains(email, "@")
}

// Dispatch builds the confirmation for identity's reservation of s and hands it to the
// notifier. Nothing is written anywhere.
func (d *Dispatcher) Dispatch(ctx context.Context, identity user.Identity, s *slot.Slot) DeliveryResult {
	issuedAt := d.clock.Now().UTC()
	recipient := identity.Email()

	if !ValidRecipient(recipient) {
		d.logger.Warn("confirmation skipped: invalid recipient", "recipient", recipient)
		return DeliveryResult{Reason: ReasonInvalidRecipient, IssuedAt: issuedAt}
	}

	result := DeliveryResult{
		ConfirmationNumber: fmt.Sprintf("PK-%d", d.number()),
		CodeURL:            d.codes.URL(Payload(s, recipient, issuedAt)),
		IssuedAt:           issuedAt,
	}

	if d.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.cfg.Timeout)
		defer cancel()
	}

	status, err := d.notifier.Deliver(ctx, recipient, d.params(recipient, result))
	result.Status = status
	switch {
	case err != nil && (errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded)):
		result.Reason, result.Err = ReasonTimeout, err
	case err != nil:
		result.Reason, result.Err = ReasonTransport, err
	case status != http.StatusOK:
		result.Reason = ReasonRejected
	default:
		result.Delivered = true
	}

	if !result.Delivered {
		attrs := []any{"recipient", recipient, "slot_id", s.ID().String(), "reason", string(result.Reason), "status", status}
		if err != nil {
			attrs = append(attrs, "error", err.Error())
		}
		d.logger.Warn("confirmation not delivered", attrs...)
	}
	return result
}

func (d *Dispatcher) params(recipient string, r DeliveryResult) map[string]string {
	localPart, _, _ := strings.Cut(recipient, "@")
	return map[string]string{
		"to_email":            recipient,
		"reply_to":            recipient,
		"from_name":           d.cfg.FromName,
		"to_name":             localPart,
		"email":               recipient,
		"recipient":           recipient,
		"user_email":          recipient,
		"subject":             d.cfg.Subject,
		"qr_code":             r.CodeURL,
		"message":             defaultMessage,
		"reservation_date":    r.IssuedAt.Format(displayDate),
		"confirmation_number": r.ConfirmationNumber,
	}
}
