package broker

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"RSITrader/internal/model"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
)

// AccessTokenSource supplies the bearer token attached to every request.
type AccessTokenSource interface {
	AccessToken() string
}

// Client is the REST implementation of API.
type Client struct {
	http        *resty.Client
	consumerKey string
	tokens      AccessTokenSource
}

// NewClient creates a client for baseURL. proxy may be empty.
func NewClient(baseURL, consumerKey string, timeout time.Duration, proxy string) *Client {
	baseURL = strings.TrimSuffix(baseURL, "/")
	hc := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	if proxy != "" {
		hc.SetProxy(proxy)
	}
	return &Client{http: hc, consumerKey: consumerKey}
}

// SetTokens attaches the token source used for the Authorization header.
func (c *Client) SetTokens(ts AccessTokenSource) { c.tokens = ts }

func (c *Client) newRequest(ctx context.Context) *resty.Request {
	r := c.http.R().SetContext(ctx)
	if c.tokens != nil {
		if tok := c.tokens.AccessToken(); tok != "" {
			r.SetAuthToken(tok)
		}
	}
	return r
}

func statusError(what string, resp *resty.Response) error {
	return errors.Errorf("%s: status %d: %s", what, resp.StatusCode(), strings.TrimSpace(resp.String()))
}

func historyParams(res model.Resolution) (periodType, frequencyType string, frequency int, err error) {
	switch res {
	case model.ResDaily:
		return "month", "daily", 1, nil
	case model.ResFifteenMinute:
		return "day", "minute", 15, nil
	case model.ResMinute:
		return "day", "minute", 1, nil
	}
	return "", "", 0, errors.Errorf("no history endpoint for resolution %s", res)
}

type historyResponse struct {
	Candles []Candle `json:"candles"`
	Empty   bool     `json:"empty"`
	Symbol  string   `json:"symbol"`
}

func (c *Client) History(ctx context.Context, symbol string, res model.Resolution, start, end time.Time) ([]Candle, error) {
	periodType, frequencyType, frequency, err := historyParams(res)
	if err != nil {
		return nil, err
	}
	var body historyResponse
	resp, err := c.newRequest(ctx).
		SetQueryParams(map[string]string{
			"apikey":                c.consumerKey,
			"periodType":            periodType,
			"frequencyType":         frequencyType,
			"frequency":             strconv.Itoa(frequency),
			"startDate":             strconv.FormatInt(start.UnixMilli(), 10),
			"endDate":               strconv.FormatInt(end.UnixMilli(), 10),
			"needExtendedHoursData": "true",
		}).
		SetResult(&body).
		Get("/marketdata/" + symbol + "/pricehistory")
	if err != nil {
		return nil, errors.Wrapf(err, "price history %s", symbol)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, statusError("price history "+symbol, resp)
	}
	return body.Candles, nil
}

type quoteResponse map[string]struct {
	LastPrice float64 `json:"lastPrice"`
}

func (c *Client) Quote(ctx context.Context, symbol string) (float64, error) {
	var body quoteResponse
	resp, err := c.newRequest(ctx).
		SetQueryParam("apikey", c.consumerKey).
		SetResult(&body).
		Get("/marketdata/" + symbol + "/quotes")
	if err != nil {
		return 0, errors.Wrapf(err, "quote %s", symbol)
	}
	if resp.StatusCode() != http.StatusOK {
		return 0, statusError("quote "+symbol, resp)
	}
	q, ok := body[symbol]
	if !ok {
		return 0, errors.Errorf("quote %s: symbol missing from response", symbol)
	}
	return q.LastPrice, nil
}

type sessionSpan struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type hoursProduct struct {
	IsOpen       bool                     `json:"isOpen"`
	MarketType   string                   `json:"marketType"`
	SessionHours map[string][]sessionSpan `json:"sessionHours"`
}

type hoursResponse map[string]map[string]hoursProduct

func parseSpan(spans []sessionSpan) (model.Window, bool, error) {
	if len(spans) == 0 {
		return model.Window{}, false, nil
	}
	start, err := time.Parse(time.RFC3339, spans[0].Start)
	if err != nil {
		return model.Window{}, false, errors.Wrap(err, "parse session start")
	}
	end, err := time.Parse(time.RFC3339, spans[0].End)
	if err != nil {
		return model.Window{}, false, errors.Wrap(err, "parse session end")
	}
	return model.Window{Start: start, End: end}, true, nil
}

// decodeHours maps the equity hours document to MarketHours. A missing
// post-market session collapses onto the regular close.
func decodeHours(date time.Time, body hoursResponse) (model.MarketHours, error) {
	equity, ok := body["equity"]
	if !ok {
		return model.MarketHours{}, errors.New("market hours: equity section missing")
	}
	if p, ok := equity["EQ"]; ok {
		if p.MarketType != "EQUITY" {
			return model.MarketHours{}, errors.Errorf("market hours: unexpected market type %q", p.MarketType)
		}
		h := model.MarketHours{Date: date, IsOpen: p.IsOpen}
		regular, found, err := parseSpan(p.SessionHours["regularMarket"])
		if err != nil {
			return model.MarketHours{}, err
		}
		if !found {
			if p.IsOpen {
				return model.MarketHours{}, errors.New("market hours: open without regular session")
			}
			return h, nil
		}
		h.Regular = regular
		if h.Pre, found, err = parseSpan(p.SessionHours["preMarket"]); err != nil {
			return model.MarketHours{}, err
		} else if !found {
			h.Pre = model.Window{Start: regular.Start, End: regular.Start}
		}
		if h.Post, found, err = parseSpan(p.SessionHours["postMarket"]); err != nil {
			return model.MarketHours{}, err
		} else if !found {
			h.Post = model.Window{Start: regular.End, End: regular.End}
		}
		return h, nil
	}
	if p, ok := equity["equity"]; ok {
		if p.IsOpen {
			return model.MarketHours{}, errors.New("market hours: open without session dates")
		}
		return model.MarketHours{Date: date}, nil
	}
	return model.MarketHours{}, errors.New("market hours: no equity product")
}

func (c *Client) MarketHours(ctx context.Context, date time.Time) (model.MarketHours, error) {
	var body hoursResponse
	resp, err := c.newRequest(ctx).
		SetQueryParams(map[string]string{
			"apikey": c.consumerKey,
			"date":   date.Format("2006-01-02"),
		}).
		SetResult(&body).
		Get("/marketdata/EQUITY/hours")
	if err != nil {
		return model.MarketHours{}, errors.Wrap(err, "market hours")
	}
	if resp.StatusCode() != http.StatusOK {
		return model.MarketHours{}, statusError("market hours", resp)
	}
	return decodeHours(date, body)
}

func (c *Client) PlaceOrder(ctx context.Context, account string, o Order) error {
	resp, err := c.newRequest(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(o).
		Post("/accounts/" + account + "/orders")
	if err != nil {
		return errors.Wrapf(err, "place order %s", o.Symbol())
	}
	if resp.StatusCode() != http.StatusCreated && resp.StatusCode() != http.StatusOK {
		return statusError("place order "+o.Symbol(), resp)
	}
	return nil
}

func (c *Client) ListOrders(ctx context.Context, account string, from, to time.Time) ([]Order, error) {
	var body []Order
	resp, err := c.newRequest(ctx).
		SetQueryParams(map[string]string{
			"maxResults":      "500",
			"fromEnteredTime": from.Format("2006-01-02"),
			"toEnteredTime":   to.Format("2006-01-02"),
		}).
		SetResult(&body).
		Get("/accounts/" + account + "/orders")
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, statusError("list orders", resp)
	}
	return body, nil
}

func (c *Client) GetOrder(ctx context.Context, account string, id int64) (Order, error) {
	var body Order
	resp, err := c.newRequest(ctx).
		SetResult(&body).
		Get(fmt.Sprintf("/accounts/%s/orders/%d", account, id))
	if err != nil {
		return Order{}, errors.Wrapf(err, "get order %d", id)
	}
	if resp.StatusCode() != http.StatusOK {
		return Order{}, statusError(fmt.Sprintf("get order %d", id), resp)
	}
	return body, nil
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
}

func (c *Client) token(ctx context.Context, form map[string]string) (tokenResponse, error) {
	var body tokenResponse
	form["client_id"] = c.consumerKey + "@AMER.OAUTHAP"
	resp, err := c.http.R().
		SetContext(ctx).
		SetFormData(form).
		SetResult(&body).
		Post("/oauth2/token")
	if err != nil {
		return body, errors.Wrap(err, "token request")
	}
	if resp.StatusCode() != http.StatusOK {
		return body, statusError("token request", resp)
	}
	if body.AccessToken == "" {
		return body, errors.New("token request: no access token in response")
	}
	return body, nil
}

// RefreshAccess exchanges the refresh token for a new access token.
func (c *Client) RefreshAccess(ctx context.Context, refresh string) (string, error) {
	body, err := c.token(ctx, map[string]string{
		"grant_type":    "refresh_token",
		"refresh_token": refresh,
	})
	return body.AccessToken, err
}

// RenewRefresh exchanges the refresh token for a new refresh and access token pair.
func (c *Client) RenewRefresh(ctx context.Context, refresh string) (string, string, error) {
	body, err := c.token(ctx, map[string]string{
		"grant_type":    "refresh_token",
		"refresh_token": refresh,
		"access_type":   "offline",
	})
	if err != nil {
		return "", "", err
	}
	if body.RefreshToken == "" {
		return "", "", errors.New("token request: no refresh token in response")
	}
	return body.AccessToken, body.RefreshToken, nil
}
