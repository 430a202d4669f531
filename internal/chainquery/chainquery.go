package chainquery

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	gethrpc "github.com/ethereum/go-ethereum/rpc"

	xerrors "IntentChain/internal/errors"
)

// Balance 是一次余额查询的结果。
type Balance struct {
	Address string
	Amount  *big.Int // 最小单位（wei）
	Symbol  string
}

// Reader 定义链上只读查询能力。
type Reader interface {
	NativeBalance(ctx context.Context, address string) (*Balance, error)
	Close()
}

// Config 描述 EVM 节点的连接参数。
type Config struct {
	RPCURL string
	Symbol string
}

// Client 通过 ethclient 查询 EVM 兼容链的链上状态。
type Client struct {
	rpcClient *gethrpc.Client
	eth       *ethclient.Client
	symbol    string
}

// NewClient 连接配置的 RPC 节点。
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	rpcURL := strings.TrimSpace(cfg.RPCURL)
	if rpcURL == "" {
		return nil, errors.New("未配置链上 RPC 地址")
	}
	rpcClient, err := gethrpc.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("连接链上节点失败: %w", err)
	}
	symbol := strings.TrimSpace(cfg.Symbol)
	if symbol == "" {
		symbol = "ETH"
	}
	return &Client{
		rpcClient: rpcClient,
		eth:       ethclient.NewClient(rpcClient),
		symbol:    symbol,
	}, nil
}

// NativeBalance 查询地址的原生代币余额。地址必须是合法十六进制格式。
func (c *Client) NativeBalance(ctx context.Context, address string) (*Balance, error) {
	if !common.IsHexAddress(address) {
		return nil, xerrors.New(xerrors.CodeInvalidArgument,
			fmt.Sprintf("%q 不是合法的链上地址", address))
	}
	amount, err := c.eth.BalanceAt(ctx, common.HexToAddress(address), nil)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeTransientService, err, "查询链上余额失败")
	}
	return &Balance{
		Address: address,
		Amount:  amount,
		Symbol:  c.symbol,
	}, nil
}

// Close 释放底层连接。
func (c *Client) Close() {
	if c.rpcClient != nil {
		c.rpcClient.Close()
		c.rpcClient = nil
		c.eth = nil
	}
}

var weiPerEther = new(big.Float).SetFloat64(1e18)

// FormatNative 把最小单位余额转成十进制字符串，最多保留 6 位小数。
func FormatNative(amount *big.Int) string {
	if amount == nil {
		return "0"
	}
	value := new(big.Float).Quo(new(big.Float).SetInt(amount), weiPerEther)
	text := value.Text('f', 6)
	text = strings.TrimRight(text, "0")
	text = strings.TrimSuffix(text, ".")
	if text == "" || text == "-" {
		return "0"
	}
	return text
}

var _ Reader = (*Client)(nil)
