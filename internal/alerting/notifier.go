package alerting

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"flight-deal-alerts/internal/deals"
)

// DealAlert carries everything needed to render a deal notification.
type DealAlert struct {
	Offer      deals.Offer
	Evaluation deals.EvaluationResult
}

// RunSummary describes a completed search cycle that produced no alerts.
type RunSummary struct {
	RoutesChecked int
	BestOffer     *deals.Offer
}

// Notifier delivers deal alerts and run summaries.
type Notifier interface {
	SendDealAlert(ctx context.Context, alert DealAlert) error
	SendSummary(ctx context.Context, summary RunSummary) error
}

// WhatsAppNotifier pushes messages through the Twilio WhatsApp API.
type WhatsAppNotifier struct {
	accountSID string
	authToken  string
	from       string
	to         string
	baseURL    string
	client     *http.Client
	logger     zerolog.Logger
}

// NewWhatsAppNotifier constructs a Twilio-backed notifier.
func NewWhatsAppNotifier(accountSID, authToken, from, to, baseURL string, timeout time.Duration, logger zerolog.Logger) *WhatsAppNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if baseURL == "" {
		baseURL = "https://api.twilio.com"
	}

	return &WhatsAppNotifier{
		accountSID: accountSID,
		authToken:  authToken,
		from:       whatsappNumber(from),
		to:         whatsappNumber(to),
		baseURL:    strings.TrimRight(baseURL, "/"),
		client:     &http.Client{Timeout: timeout},
		logger:     logger.With().Str("component", "alert_whatsapp").Logger(),
	}
}

// whatsappNumber enforces Twilio's "whatsapp:" address prefix.
func whatsappNumber(number string) string {
	number = strings.TrimSpace(number)
	if number == "" || strings.HasPrefix(number, "whatsapp:") {
		return number
	}
	return "whatsapp:" + number
}

// SendDealAlert renders and delivers a single deal notification.
func (n *WhatsAppNotifier) SendDealAlert(ctx context.Context, alert DealAlert) error {
	if err := n.send(ctx, renderDealAlert(alert)); err != nil {
		return err
	}

	n.logger.Info().
		Str("route", alert.Offer.Route()).
		Str("price", alert.Offer.Price.String()).
		Str("confidence", string(alert.Evaluation.Confidence)).
		Msg("deal alert sent")
	return nil
}

// SendSummary delivers the no-deals run report.
func (n *WhatsAppNotifier) SendSummary(ctx context.Context, summary RunSummary) error {
	if err := n.send(ctx, renderSummary(summary)); err != nil {
		return err
	}

	n.logger.Info().Int("routes_checked", summary.RoutesChecked).Msg("run summary sent")
	return nil
}

func (n *WhatsAppNotifier) send(ctx context.Context, body string) error {
	if n.accountSID == "" || n.authToken == "" {
		return fmt.Errorf("twilio credentials not configured")
	}

	form := url.Values{}
	form.Set("From", n.from)
	form.Set("To", n.to)
	form.Set("Body", body)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", n.baseURL, n.accountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("create twilio request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(n.accountSID, n.authToken)

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send twilio request: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		}
		if jsonErr := json.Unmarshal(payload, &apiErr); jsonErr == nil && apiErr.Message != "" {
			return fmt.Errorf("twilio api error (%d): %s", resp.StatusCode, apiErr.Message)
		}
		return fmt.Errorf("twilio api error (%d)", resp.StatusCode)
	}

	return nil
}

func renderDealAlert(alert DealAlert) string {
	offer := alert.Offer
	eval := alert.Evaluation

	discount := decimal.Zero
	if eval.Baseline.Sign() > 0 {
		discount = eval.Baseline.Sub(offer.Price).
			Div(eval.Baseline).
			Mul(decimal.NewFromInt(100))
	}

	builder := strings.Builder{}
	builder.WriteString("✈️ Flight Deal Found!\n")
	builder.WriteString(fmt.Sprintf("Route: %s\n", offer.Route()))
	builder.WriteString(fmt.Sprintf("Price: %s %s (%s%% below baseline %s)\n",
		offer.Price.StringFixed(2), offer.Currency, discount.StringFixed(1), eval.Baseline.StringFixed(2)))
	builder.WriteString(fmt.Sprintf("Departure: %s\n", offer.DepartureAt.Format("02/01/2006")))
	if offer.ReturnAt != nil {
		builder.WriteString(fmt.Sprintf("Return: %s\n", offer.ReturnAt.Format("02/01/2006")))
	}
	if len(offer.Airlines) > 0 {
		builder.WriteString(fmt.Sprintf("Airlines: %s\n", strings.Join(offer.Airlines, ", ")))
	}
	builder.WriteString(fmt.Sprintf("Segments: %d\n", offer.Segments))
	if eval.Confidence == deals.ConfidenceColdStart {
		builder.WriteString("⚠️ Building baseline: price history for this route is still thin.\n")
	}
	if offer.DeepLink != "" {
		builder.WriteString(fmt.Sprintf("Book: %s\n", offer.DeepLink))
	}
	if offer.BackupLink != "" {
		builder.WriteString(fmt.Sprintf("Alt: %s\n", offer.BackupLink))
	}
	return builder.String()
}

func renderSummary(summary RunSummary) string {
	builder := strings.Builder{}
	builder.WriteString("🔎 Flight monitor run finished, no deals this time.\n")
	builder.WriteString(fmt.Sprintf("Routes checked: %d\n", summary.RoutesChecked))
	if summary.BestOffer != nil {
		builder.WriteString(fmt.Sprintf("Best option: %s at %s %s\n",
			summary.BestOffer.Route(), summary.BestOffer.Price.StringFixed(2), summary.BestOffer.Currency))
		if summary.BestOffer.DeepLink != "" {
			builder.WriteString(fmt.Sprintf("Link: %s\n", summary.BestOffer.DeepLink))
		}
	}
	return builder.String()
}

var _ Notifier = (*WhatsAppNotifier)(nil)
