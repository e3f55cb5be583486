package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"

	"banter/internal/config"
)

// 账本层错误
var (
	// ErrUnavailable 账本服务不可达（网络/超时/5xx）
	// 语义是"无法确认"，不是"余额不足"
	ErrUnavailable = errors.New("ledger service unavailable")

	// ErrInsufficientFunds 余额不足，扣款被账本拒绝
	ErrInsufficientFunds = errors.New("insufficient funds")
)

// Balance 账户余额
// 总额 = 赠送 + 充值，账本保证不为负
type Balance struct {
	Complimentary int `json:"complimentary"`
	Purchased     int `json:"purchased"`
	Credits       int `json:"credits"` // 总额
}

// Total 返回可用总额
func (b Balance) Total() int {
	return b.Credits
}

// Client 外部积分账本服务客户端
// 扣款的原子性由账本服务自身保证，客户端不做本地加锁
type Client struct {
	cfg        *config.LedgerConfig
	httpClient *http.Client
}

// NewClient 创建账本客户端
func NewClient(cfg *config.LedgerConfig) *Client {
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// GetBalance 查询余额
func (c *Client) GetBalance(ctx context.Context, userID string) (Balance, error) {
	var balance Balance

	url := fmt.Sprintf("%s/balance/%s", c.cfg.BaseURL, userID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return balance, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return balance, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return balance, fmt.Errorf("%w: unexpected status %d", ErrUnavailable, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(&balance); err != nil {
		return balance, fmt.Errorf("%w: decode balance: %v", ErrUnavailable, err)
	}

	return balance, nil
}

// HasEnough 判断余额是否足够
// 查询失败原样上抛 ErrUnavailable，调用方不应将其视为余额不足
func (c *Client) HasEnough(ctx context.Context, userID string, cost int) (bool, error) {
	balance, err := c.GetBalance(ctx, userID)
	if err != nil {
		return false, err
	}
	return balance.Total() >= cost, nil
}

// Debit 扣款，返回扣款后余额
// 账本侧余额不足返回 ErrInsufficientFunds
// 充值走 Do 透传，账本的入账响应不做本地解释
func (c *Client) Debit(ctx context.Context, userID string, amount int) (Balance, error) {
	var balance Balance

	payload, err := json.Marshal(map[string]any{
		"userId": userID,
		"amount": amount,
	})
	if err != nil {
		return balance, fmt.Errorf("%w: marshal payload: %v", ErrUnavailable, err)
	}

	url := fmt.Sprintf("%s/debit", c.cfg.BaseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return balance, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return balance, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		if err := json.NewDecoder(resp.Body).Decode(&balance); err != nil {
			return balance, fmt.Errorf("%w: decode debit response: %v", ErrUnavailable, err)
		}
		return balance, nil
	case http.StatusPaymentRequired:
		// 回传余额尽量解析，失败则保持零值
		if err := json.NewDecoder(resp.Body).Decode(&balance); err != nil {
			log.Warn().Err(err).Str("user_id", userID).Msg("failed to decode insufficient-funds body")
		}
		return balance, ErrInsufficientFunds
	default:
		return balance, fmt.Errorf("%w: unexpected status %d", ErrUnavailable, resp.StatusCode)
	}
}

// RawResult 账本原始响应透传
type RawResult struct {
	Success bool           `json:"success"`
	Credits int            `json:"credits"`
	Body    map[string]any `json:"-"`
}

// Do 透传执行账本操作，返回账本自己的响应体
// 传输失败时返回本地降级结果 {success:false, credits:0}
func (c *Client) Do(ctx context.Context, action, userID string, amount int) *RawResult {
	fallback := &RawResult{Success: false, Credits: 0, Body: map[string]any{"success": false, "credits": 0}}

	var (
		req *http.Request
		err error
	)
	switch action {
	case "balance":
		url := fmt.Sprintf("%s/balance/%s", c.cfg.BaseURL, userID)
		req, err = http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	default:
		var payload []byte
		payload, err = json.Marshal(map[string]any{"userId": userID, "amount": amount})
		if err == nil {
			url := fmt.Sprintf("%s/%s", c.cfg.BaseURL, action)
			req, err = http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
			if req != nil {
				req.Header.Set("Content-Type", "application/json")
			}
		}
	}
	if err != nil {
		log.Warn().Err(err).Str("action", action).Msg("ledger passthrough request build failed")
		return fallback
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Warn().Err(err).Str("action", action).Msg("ledger passthrough transport failed")
		return fallback
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Warn().Err(err).Str("action", action).Msg("ledger passthrough read failed")
		return fallback
	}

	body := map[string]any{}
	if err := json.Unmarshal(data, &body); err != nil {
		log.Warn().Err(err).Str("action", action).Msg("ledger passthrough decode failed")
		return fallback
	}

	result := &RawResult{Body: body}
	if v, ok := body["success"].(bool); ok {
		result.Success = v
	} else {
		result.Success = resp.StatusCode == http.StatusOK
	}
	if v, ok := body["credits"].(float64); ok {
		result.Credits = int(v)
	}
	return result
}
