package rpcutil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/castorix/go-workflow-harness/internal/logger"
	"github.com/castorix/go-workflow-harness/internal/utils/errors"
)

// Client is a minimal JSON-RPC 2.0 client for the local test node
type Client struct {
	endpoint string
	http     *http.Client
	nextID   atomic.Int64
}

// request is a JSON-RPC 2.0 request envelope
type request struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int64         `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

// response is a JSON-RPC 2.0 response envelope
type response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int64           `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// txParams is the object form of eth_sendTransaction parameters
type txParams struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Value string `json:"value"`
}

// NewClient creates a client for the given HTTP JSON-RPC endpoint
func NewClient(endpoint string, timeout time.Duration) (*Client, error) {
	parsed, err := url.Parse(endpoint)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("%w: %s", errors.ErrInvalidEndpoint, endpoint)
	}

	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		endpoint: endpoint,
		http:     &http.Client{Timeout: timeout},
	}, nil
}

// Endpoint returns the endpoint URL the client talks to
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Call performs a JSON-RPC call and returns the raw result member
func (c *Client) Call(ctx context.Context, method string, params ...interface{}) (json.RawMessage, error) {
	if params == nil {
		params = []interface{}{}
	}

	payload, err := json.Marshal(request{
		JSONRPC: "2.0",
		ID:      c.nextID.Add(1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s", errors.ErrRPCFailed, err.Error())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", errors.ErrRPCFailed, err.Error())
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", errors.ErrRPCFailed, err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: HTTP status %d", errors.ErrRPCBadStatus, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", errors.ErrRPCFailed, err.Error())
	}

	var reply response
	if err := json.Unmarshal(body, &reply); err != nil {
		return nil, fmt.Errorf("%w: %s", errors.ErrRPCFailed, err.Error())
	}

	if reply.Error != nil {
		return nil, fmt.Errorf("%w: %s (code %d)", errors.ErrRPCErrorReply, reply.Error.Message, reply.Error.Code)
	}

	if len(reply.Result) == 0 || string(reply.Result) == "null" {
		return nil, errors.ErrRPCEmptyResult
	}

	logger.LogDebug("RPC call completed", map[string]interface{}{
		"method": method,
		"result": string(reply.Result),
	})

	return reply.Result, nil
}

// BlockNumber returns the current block height of the node
func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	raw, err := c.Call(ctx, "eth_blockNumber")
	if err != nil {
		return 0, err
	}

	var hexHeight string
	if err := json.Unmarshal(raw, &hexHeight); err != nil {
		return 0, fmt.Errorf("%w: %s", errors.ErrRPCFailed, err.Error())
	}

	height, err := strconv.ParseUint(strings.TrimPrefix(hexHeight, "0x"), 16, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: malformed block number %q", errors.ErrRPCFailed, hexHeight)
	}

	return height, nil
}

// SendTransaction submits a value transfer from an unlocked node account
// and returns the transaction hash
func (c *Client) SendTransaction(ctx context.Context, from, to string, valueWei *big.Int) (string, error) {
	raw, err := c.Call(ctx, "eth_sendTransaction", txParams{
		From:  from,
		To:    to,
		Value: fmt.Sprintf("0x%x", valueWei),
	})
	if err != nil {
		return "", err
	}

	var txHash string
	if err := json.Unmarshal(raw, &txHash); err != nil {
		return "", fmt.Errorf("%w: %s", errors.ErrRPCFailed, err.Error())
	}

	return txHash, nil
}

// EthToWei converts a whole ETH amount to wei
func EthToWei(eth int64) *big.Int {
	wei := big.NewInt(eth)
	return wei.Mul(wei, big.NewInt(1_000_000_000_000_000_000))
}
