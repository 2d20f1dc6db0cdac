package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// statusError: ответ API с кодом вне 2xx.
type statusError struct {
	status int
	body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.status, e.body)
}

func resultCode(err error) string {
	if err == nil {
		return codeOK
	}
	var se *statusError
	if errors.As(err, &se) {
		return fmt.Sprintf("http_%d", se.status)
	}
	return "transport_error"
}

type apiClient struct {
	baseURL string
	http    *http.Client
	token   string
}

func newAPIClient(baseURL string, httpClient *http.Client) *apiClient {
	return &apiClient{baseURL: baseURL, http: httpClient}
}

func (c *apiClient) timed(col *collector, method string, fn func() error) error {
	start := time.Now()
	err := fn()
	col.record(method, time.Since(start), resultCode(err))
	return err
}

func (c *apiClient) do(method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &statusError{status: resp.StatusCode, body: string(bytes.TrimSpace(msg))}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *apiClient) register(username, password string) error {
	return c.do(http.MethodPost, "/api/auth/register", map[string]string{
		"username": username,
		"password": password,
		"email":    username + "@load.test",
	}, nil)
}

func (c *apiClient) login(username, password string) error {
	var resp struct {
		Token string `json:"token"`
	}
	if err := c.do(http.MethodPost, "/api/auth/login", map[string]string{
		"username": username,
		"password": password,
	}, &resp); err != nil {
		return err
	}
	if resp.Token == "" {
		return errors.New("login response has no token")
	}
	c.token = resp.Token
	return nil
}

type productSummary struct {
	ID     string `json:"id"`
	Active bool   `json:"active"`
}

func (c *apiClient) listProducts() ([]productSummary, error) {
	var products []productSummary
	err := c.do(http.MethodGet, "/api/products?active_only=true", nil, &products)
	return products, err
}

func (c *apiClient) firstProduct() (string, error) {
	products, err := c.listProducts()
	if err != nil {
		return "", err
	}
	for _, p := range products {
		if p.Active {
			return p.ID, nil
		}
	}
	return "", errors.New("catalog has no active products")
}

func (c *apiClient) createOrder(productID string, quantity int) (string, error) {
	var resp struct {
		ID string `json:"id"`
	}
	err := c.do(http.MethodPost, "/api/orders", map[string]any{
		"items":   []map[string]any{{"product_id": productID, "quantity": quantity}},
		"cep":     defaultCEP,
		"address": defaultAddress,
	}, &resp)
	return resp.ID, err
}

func (c *apiClient) transition(orderID, status string) error {
	return c.do(http.MethodPost, "/api/orders/"+orderID+"/transition", map[string]string{"status": status}, nil)
}
