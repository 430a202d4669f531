package chainquery

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	xerrors "IntentChain/internal/errors"
)

// MockReader 返回确定性的余额数据，用于离线开发与测试。
type MockReader struct {
	symbol   string
	balances map[string]*big.Int
	fallback *big.Int
}

// NewMockReader 创建 MockReader。未显式设置的地址返回固定的兜底余额。
func NewMockReader(symbol string) *MockReader {
	if symbol == "" {
		symbol = "ETH"
	}
	fallback, _ := new(big.Int).SetString("1500000000000000000", 10) // 1.5
	return &MockReader{
		symbol:   symbol,
		balances: make(map[string]*big.Int),
		fallback: fallback,
	}
}

// SetBalance 设置某地址的余额。
func (m *MockReader) SetBalance(address string, amount *big.Int) {
	m.balances[common.HexToAddress(address).Hex()] = new(big.Int).Set(amount)
}

// NativeBalance 返回预置余额，地址校验规则与真实客户端一致。
func (m *MockReader) NativeBalance(_ context.Context, address string) (*Balance, error) {
	if !common.IsHexAddress(address) {
		return nil, xerrors.New(xerrors.CodeInvalidArgument,
			fmt.Sprintf("%q 不是合法的链上地址", address))
	}
	amount, ok := m.balances[common.HexToAddress(address).Hex()]
	if !ok {
		amount = m.fallback
	}
	return &Balance{
		Address: address,
		Amount:  new(big.Int).Set(amount),
		Symbol:  m.symbol,
	}, nil
}

// Close 无资源可释放。
func (m *MockReader) Close() {}

var _ Reader = (*MockReader)(nil)
