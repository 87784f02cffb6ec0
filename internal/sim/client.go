package sim

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"bankmesh.org/internal/ledger"
)

// StatusError carries a non-2xx API response.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("api status %d: %s", e.Code, e.Message)
}

// Code returns the HTTP status behind err, or 0.
func Code(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code
	}
	return 0
}

// Client is a thin JSON client for the bankmesh HTTP API.
type Client struct {
	base string
	http *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		base: strings.TrimRight(baseURL, "/"),
		http: &http.Client{Timeout: timeout},
	}
}

// Login exchanges credentials for a bearer token.
func (c *Client) Login(ctx context.Context, login, password string) (string, error) {
	var out struct {
		Token string `json:"token"`
	}
	body := map[string]string{"login": login, "password": password}
	if err := c.call(ctx, http.MethodPost, "/v1/auth/login", "", nil, body, &out); err != nil {
		return "", err
	}
	if out.Token == "" {
		return "", errors.New("empty token returned")
	}
	return out.Token, nil
}

func (c *Client) Banks(ctx context.Context) ([]ledger.BankID, error) {
	var out struct {
		Items []struct {
			BIK ledger.BankID `json:"bik"`
		} `json:"items"`
	}
	if err := c.call(ctx, http.MethodGet, "/v1/banks", "", nil, nil, &out); err != nil {
		return nil, err
	}
	biks := make([]ledger.BankID, 0, len(out.Items))
	for _, b := range out.Items {
		biks = append(biks, b.BIK)
	}
	return biks, nil
}

func (c *Client) OpenAccount(ctx context.Context, token string, bik ledger.BankID) (ledger.AccountID, error) {
	var out struct {
		ID ledger.AccountID `json:"id"`
	}
	if err := c.call(ctx, http.MethodPost, bankPath(bik, "/accounts"), token, nil, nil, &out); err != nil {
		return 0, err
	}
	return out.ID, nil
}

// Balance looks the account up among the caller's accounts at bik.
func (c *Client) Balance(ctx context.Context, token string, bik ledger.BankID, id ledger.AccountID) (ledger.Money, error) {
	var out struct {
		Items []ledger.Account `json:"items"`
	}
	if err := c.call(ctx, http.MethodGet, bankPath(bik, "/accounts"), token, nil, nil, &out); err != nil {
		return 0, err
	}
	for _, a := range out.Items {
		if a.ID == id {
			return a.Balance, nil
		}
	}
	return 0, fmt.Errorf("account %d at bank %d: %w", id, bik, ledger.ErrAccountNotFound)
}

// Transfer posts t with idem as the Idempotency-Key.
func (c *Client) Transfer(ctx context.Context, token string, t Transfer, idem string) (ledger.Transaction, error) {
	var tx ledger.Transaction
	body := map[string]any{
		"from_account": t.From.AccountID,
		"to":           t.To,
		"amount":       t.Amount,
	}
	headers := map[string]string{}
	if idem != "" {
		headers["Idempotency-Key"] = idem
	}
	err := c.call(ctx, http.MethodPost, bankPath(t.From.BankID, "/transfers"), token, headers, body, &tx)
	return tx, err
}

func (c *Client) call(ctx context.Context, method, path, token string, headers map[string]string, body, out any) error {
	var payload io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		payload = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, payload)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		return &StatusError{Code: resp.StatusCode, Message: e.Error}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func bankPath(bik ledger.BankID, suffix string) string {
	return "/v1/banks/" + strconv.FormatUint(uint64(bik), 10) + suffix
}
