// Package contractlog queries the smart-contract event log. Aggregation is
// done by the backend; this package only types the responses.
package contractlog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/matheus3301/tradechat/internal/backend"
	"github.com/matheus3301/tradechat/internal/isotime"
)

const basePath = "/api/SmartContractLog"

// Known event types. The backend may report others.
const (
	EventBet             = "Bet"
	EventDeposit         = "Deposit"
	EventWithdrawal      = "Withdrawal"
	EventEmergencyPayout = "EmergencyPayout"
)

// Log is one recorded contract event. Records are immutable once written.
type Log struct {
	ID          string    `json:"id"`
	EventType   string    `json:"eventType"`
	TxHash      string    `json:"txHash"`
	BlockNumber uint64    `json:"blockNumber"`
	FromAddress string    `json:"fromAddress"`
	ToAddress   string    `json:"toAddress"`
	Amount      float64   `json:"amount"`
	Timestamp   time.Time `json:"timestamp"`
}

// DailySummary holds the backend's totals for one day.
type DailySummary struct {
	Date                  time.Time `json:"date"`
	TotalTransactions     int       `json:"totalTransactions"`
	TotalVolume           float64   `json:"totalVolume"`
	BetCount              int       `json:"betCount"`
	BetAmount             float64   `json:"betAmount"`
	DepositCount          int       `json:"depositCount"`
	DepositAmount         float64   `json:"depositAmount"`
	WithdrawalCount       int       `json:"withdrawalCount"`
	WithdrawalAmount      float64   `json:"withdrawalAmount"`
	EmergencyPayoutCount  int       `json:"emergencyPayoutCount"`
	EmergencyPayoutAmount float64   `json:"emergencyPayoutAmount"`
}

type logDTO struct {
	ID          flexID       `json:"id"`
	EventType   string       `json:"eventType"`
	TxHash      string       `json:"txHash"`
	BlockNumber uint64       `json:"blockNumber"`
	FromAddress string       `json:"fromAddress"`
	ToAddress   string       `json:"toAddress"`
	Amount      float64      `json:"amount"`
	Timestamp   isotime.Time `json:"timestamp"`
}

type summaryDTO struct {
	Date                  isotime.Time `json:"date"`
	TotalTransactions     int          `json:"totalTransactions"`
	TotalVolume           float64      `json:"totalVolume"`
	BetCount              int          `json:"betCount"`
	BetAmount             float64      `json:"betAmount"`
	DepositCount          int          `json:"depositCount"`
	DepositAmount         float64      `json:"depositAmount"`
	WithdrawalCount       int          `json:"withdrawalCount"`
	WithdrawalAmount      float64      `json:"withdrawalAmount"`
	EmergencyPayoutCount  int          `json:"emergencyPayoutCount"`
	EmergencyPayoutAmount float64      `json:"emergencyPayoutAmount"`
}

// flexID accepts both numeric and string identifiers.
type flexID string

func (f *flexID) UnmarshalJSON(data []byte) error {
	s := string(data)
	if s == "null" {
		*f = ""
		return nil
	}
	if len(s) >= 2 && s[0] == '"' {
		var unq string
		if err := json.Unmarshal(data, &unq); err != nil {
			return err
		}
		*f = flexID(unq)
		return nil
	}
	*f = flexID(s)
	return nil
}

// Client is a typed view over the log endpoints.
type Client struct {
	api *backend.Client
}

// New wraps an API client.
func New(api *backend.Client) *Client {
	return &Client{api: api}
}

// All returns every recorded event.
func (c *Client) All(ctx context.Context) ([]Log, error) {
	return c.list(ctx, basePath, nil)
}

// ByDateRange returns events between start and end.
func (c *Client) ByDateRange(ctx context.Context, start, end time.Time) ([]Log, error) {
	if end.Before(start) {
		return nil, fmt.Errorf("date range: end %s before start %s", isotime.Format(end), isotime.Format(start))
	}
	q := url.Values{}
	q.Set("startDate", isotime.Format(start))
	q.Set("endDate", isotime.Format(end))
	return c.list(ctx, basePath+"/dateRange", q)
}

// ByEventType returns events of one type.
func (c *Client) ByEventType(ctx context.Context, eventType string) ([]Log, error) {
	if eventType == "" {
		return nil, errors.New("event type is required")
	}
	return c.list(ctx, basePath+"/eventType/"+url.PathEscape(eventType), nil)
}

// ByAddress returns events where address is the sender or the recipient.
func (c *Client) ByAddress(ctx context.Context, address string) ([]Log, error) {
	if address == "" {
		return nil, errors.New("address is required")
	}
	return c.list(ctx, basePath+"/address/"+url.PathEscape(address), nil)
}

// DailySummary returns the totals for the day containing date.
func (c *Client) DailySummary(ctx context.Context, date time.Time) (DailySummary, error) {
	q := url.Values{}
	q.Set("date", isotime.Format(date))
	var dto summaryDTO
	if err := c.api.GetJSON(ctx, basePath+"/dailySummary", q, &dto); err != nil {
		return DailySummary{}, fmt.Errorf("daily summary: %w", err)
	}
	return DailySummary{
		Date:                  dto.Date.Time,
		TotalTransactions:     dto.TotalTransactions,
		TotalVolume:           dto.TotalVolume,
		BetCount:              dto.BetCount,
		BetAmount:             dto.BetAmount,
		DepositCount:          dto.DepositCount,
		DepositAmount:         dto.DepositAmount,
		WithdrawalCount:       dto.WithdrawalCount,
		WithdrawalAmount:      dto.WithdrawalAmount,
		EmergencyPayoutCount:  dto.EmergencyPayoutCount,
		EmergencyPayoutAmount: dto.EmergencyPayoutAmount,
	}, nil
}

func (c *Client) list(ctx context.Context, path string, q url.Values) ([]Log, error) {
	var dtos []logDTO
	if err := c.api.GetJSON(ctx, path, q, &dtos); err != nil {
		return nil, fmt.Errorf("contract logs: %w", err)
	}
	logs := make([]Log, len(dtos))
	for i, d := range dtos {
		logs[i] = Log{
			ID:          string(d.ID),
			EventType:   d.EventType,
			TxHash:      d.TxHash,
			BlockNumber: d.BlockNumber,
			FromAddress: d.FromAddress,
			ToAddress:   d.ToAddress,
			Amount:      d.Amount,
			Timestamp:   d.Timestamp.Time,
		}
	}
	return logs, nil
}
