package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"flight-deal-alerts/internal/deals"
)

const (
	tokenPath        = "/v1/security/oauth2/token"
	locationsPath    = "/v1/reference-data/locations"
	flightOffersPath = "/v2/shopping/flight-offers"

	// Tokens are renewed slightly before the provider-reported expiry so an
	// in-flight request never carries a token that lapses mid-call.
	tokenExpirySkew = 10 * time.Second
)

// AmadeusOptions parameterise the Amadeus self-service client.
type AmadeusOptions struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	Timeout      time.Duration
	UserAgent    string
	CurrencyCode string
	MaxOffers    int
}

// Amadeus fetches flight offers from the Amadeus self-service API.
type Amadeus struct {
	opts    AmadeusOptions
	logger  zerolog.Logger
	client  *http.Client
	baseURL string

	tokenMux    sync.Mutex
	token       string
	tokenExpiry time.Time
}

// NewAmadeus constructs an Amadeus flight searcher.
func NewAmadeus(opts AmadeusOptions, logger zerolog.Logger) *Amadeus {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.amadeus.com"
	}

	return &Amadeus{
		opts:    opts,
		logger:  logger.With().Str("component", "amadeus_fetcher").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

// TopAirports resolves the busiest airports of a country via the reference
// data API.
func (a *Amadeus) TopAirports(ctx context.Context, countryCode string, limit int) ([]string, error) {
	if countryCode == "" {
		return nil, errors.New("country code required")
	}
	if limit <= 0 {
		limit = 6
	}

	query := url.Values{}
	query.Set("subType", "AIRPORT")
	query.Set("countryCode", strings.ToUpper(countryCode))
	query.Set("page[limit]", strconv.Itoa(limit))
	query.Set("sort", "analytics.travelers.score")

	var res locationsResponse
	if err := a.getJSON(ctx, locationsPath, query, &res); err != nil {
		return nil, err
	}

	codes := make([]string, 0, len(res.Data))
	for _, loc := range res.Data {
		if loc.IATACode == "" {
			continue
		}
		codes = append(codes, loc.IATACode)
		if len(codes) == limit {
			break
		}
	}

	return codes, nil
}

// SearchOffers runs a one-way flight-offers search and normalizes the result.
// Offers the provider returned without a price or departure time are dropped
// at this boundary; the scorer never sees them.
func (a *Amadeus) SearchOffers(ctx context.Context, origin, destination string, departureDate time.Time) ([]deals.Offer, error) {
	if origin == "" || destination == "" {
		return nil, errors.New("origin and destination required")
	}

	maxOffers := a.opts.MaxOffers
	if maxOffers <= 0 {
		maxOffers = 50
	}

	query := url.Values{}
	query.Set("originLocationCode", strings.ToUpper(origin))
	query.Set("destinationLocationCode", strings.ToUpper(destination))
	query.Set("departureDate", departureDate.Format("2006-01-02"))
	query.Set("adults", "1")
	query.Set("max", strconv.Itoa(maxOffers))
	if a.opts.CurrencyCode != "" {
		query.Set("currencyCode", a.opts.CurrencyCode)
	}

	var res flightOffersResponse
	if err := a.getJSON(ctx, flightOffersPath, query, &res); err != nil {
		return nil, err
	}

	offers := make([]deals.Offer, 0, len(res.Data))
	dropped := 0
	for _, raw := range res.Data {
		offer, err := normalizeOffer(raw)
		if err != nil {
			dropped++
			a.logger.Debug().Err(err).Msg("dropping malformed offer")
			continue
		}
		offers = append(offers, offer)
	}

	if dropped > 0 {
		a.logger.Warn().Int("dropped", dropped).Int("kept", len(offers)).Msg("some offers were malformed")
	}

	return offers, nil
}

func (a *Amadeus) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	token, err := a.getToken(ctx)
	if err != nil {
		return err
	}

	endpoint := a.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(a.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode != http.StatusOK {
		return parseHTTPError(resp.StatusCode, payload)
	}

	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func (a *Amadeus) getToken(ctx context.Context) (string, error) {
	a.tokenMux.Lock()
	defer a.tokenMux.Unlock()

	if a.token != "" && time.Now().Before(a.tokenExpiry) {
		return a.token, nil
	}

	if a.opts.ClientID == "" || a.opts.ClientSecret == "" {
		return "", errors.New("amadeus credentials not configured")
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", a.opts.ClientID)
	form.Set("client_secret", a.opts.ClientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+tokenPath, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("request amadeus token: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	if resp.StatusCode != http.StatusOK {
		return "", parseHTTPError(resp.StatusCode, payload)
	}

	var tok tokenResponse
	if err := json.Unmarshal(payload, &tok); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	if tok.AccessToken == "" {
		return "", errors.New("amadeus token response missing access_token")
	}

	a.token = tok.AccessToken
	a.tokenExpiry = time.Now().Add(time.Duration(tok.ExpiresIn)*time.Second - tokenExpirySkew)
	a.logger.Debug().Time("expiry", a.tokenExpiry).Msg("amadeus token refreshed")

	return a.token, nil
}

func normalizeOffer(raw flightOffer) (deals.Offer, error) {
	price, err := decimal.NewFromString(raw.Price.GrandTotal)
	if err != nil || price.Sign() <= 0 {
		return deals.Offer{}, fmt.Errorf("offer %s: missing or invalid price", raw.ID)
	}

	if len(raw.Itineraries) == 0 || len(raw.Itineraries[0].Segments) == 0 {
		return deals.Offer{}, fmt.Errorf("offer %s: no segments", raw.ID)
	}

	outbound := raw.Itineraries[0].Segments
	first := outbound[0]
	last := outbound[len(outbound)-1]

	departureAt, err := time.Parse("2006-01-02T15:04:05", first.Departure.At)
	if err != nil {
		return deals.Offer{}, fmt.Errorf("offer %s: bad departure time %q", raw.ID, first.Departure.At)
	}

	airlines := make([]string, 0, len(outbound)+len(raw.ValidatingAirlineCodes))
	airlines = append(airlines, raw.ValidatingAirlineCodes...)
	segments := 0
	for _, itinerary := range raw.Itineraries {
		for _, seg := range itinerary.Segments {
			airlines = append(airlines, seg.CarrierCode)
			segments++
		}
	}

	offer := deals.Offer{
		Price:       price,
		Currency:    raw.Price.Currency,
		Origin:      first.Departure.IATACode,
		Destination: last.Arrival.IATACode,
		DepartureAt: departureAt,
		Airlines:    airlines,
		Segments:    segments,
		DeepLink:    googleFlightsLink(first.Departure.IATACode, last.Arrival.IATACode, departureAt),
		BackupLink:  skyscannerLink(first.Departure.IATACode, last.Arrival.IATACode, departureAt),
	}

	if len(raw.Itineraries) > 1 && len(raw.Itineraries[1].Segments) > 0 {
		ret := raw.Itineraries[1].Segments[0]
		if returnAt, err := time.Parse("2006-01-02T15:04:05", ret.Departure.At); err == nil {
			offer.ReturnAt = &returnAt
		}
	}

	if err := offer.Validate(); err != nil {
		return deals.Offer{}, err
	}
	return offer, nil
}

func googleFlightsLink(origin, destination string, departure time.Time) string {
	q := url.QueryEscape(fmt.Sprintf("Flights from %s to %s on %s", origin, destination, departure.Format("2006-01-02")))
	return "https://www.google.com/travel/flights?q=" + q
}

func skyscannerLink(origin, destination string, departure time.Time) string {
	return fmt.Sprintf("https://www.skyscanner.com/transport/flights/%s/%s/%s/",
		strings.ToLower(origin), strings.ToLower(destination), departure.Format("060102"))
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

type locationsResponse struct {
	Data []struct {
		IATACode string `json:"iataCode"`
		Name     string `json:"name"`
	} `json:"data"`
}

type flightOffersResponse struct {
	Data []flightOffer `json:"data"`
}

type flightOffer struct {
	ID    string `json:"id"`
	Price struct {
		Currency   string `json:"currency"`
		GrandTotal string `json:"grandTotal"`
	} `json:"price"`
	ValidatingAirlineCodes []string `json:"validatingAirlineCodes"`
	Itineraries            []struct {
		Segments []struct {
			Departure struct {
				IATACode string `json:"iataCode"`
				At       string `json:"at"`
			} `json:"departure"`
			Arrival struct {
				IATACode string `json:"iataCode"`
				At       string `json:"at"`
			} `json:"arrival"`
			CarrierCode string `json:"carrierCode"`
		} `json:"segments"`
	} `json:"itineraries"`
}

type errorResponse struct {
	Errors []struct {
		Status int    `json:"status"`
		Code   int    `json:"code"`
		Title  string `json:"title"`
		Detail string `json:"detail"`
	} `json:"errors"`
}

func parseHTTPError(status int, payload []byte) error {
	var apiErr errorResponse
	if err := json.Unmarshal(payload, &apiErr); err == nil && len(apiErr.Errors) > 0 {
		first := apiErr.Errors[0]
		if first.Detail != "" {
			return fmt.Errorf("amadeus api error (%d): %s", status, first.Detail)
		}
		if first.Title != "" {
			return fmt.Errorf("amadeus api error (%d): %s", status, first.Title)
		}
	}
	if len(payload) > 0 {
		return fmt.Errorf("amadeus api error (%d): %s", status, strings.TrimSpace(string(payload)))
	}
	return fmt.Errorf("amadeus api error (%d)", status)
}

var _ FlightSearcher = (*Amadeus)(nil)
