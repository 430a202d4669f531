package chainquery

import (
	"context"
	"math/big"
	"testing"

	xerrors "IntentChain/internal/errors"
)

func TestFormatNative(t *testing.T) {
	cases := []struct {
		name string
		wei  string
		want string
	}{
		{"one ether", "1000000000000000000", "1"},
		{"fraction", "1500000000000000000", "1.5"},
		{"small", "1000000000000", "0.000001"},
		{"zero", "0", "0"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			amount, ok := new(big.Int).SetString(tc.wei, 10)
			if !ok {
				t.Fatalf("非法测试数据: %s", tc.wei)
			}
			if got := FormatNative(amount); got != tc.want {
				t.Fatalf("FormatNative(%s) = %q, 期望 %q", tc.wei, got, tc.want)
			}
		})
	}
	if got := FormatNative(nil); got != "0" {
		t.Fatalf("FormatNative(nil) = %q", got)
	}
}

func TestMockReaderBalance(t *testing.T) {
	reader := NewMockReader("ETH")
	address := "0x00000000219ab540356cBB839Cbe05303d7705Fa"
	reader.SetBalance(address, big.NewInt(42))

	got, err := reader.NativeBalance(context.Background(), address)
	if err != nil {
		t.Fatalf("NativeBalance 失败: %v", err)
	}
	if got.Amount.Int64() != 42 {
		t.Fatalf("Amount = %v, 期望 42", got.Amount)
	}
	if got.Symbol != "ETH" {
		t.Fatalf("Symbol = %q", got.Symbol)
	}
}

func TestMockReaderRejectsBadAddress(t *testing.T) {
	reader := NewMockReader("ETH")
	_, err := reader.NativeBalance(context.Background(), "alice.sol")
	if err == nil {
		t.Fatal("非十六进制地址应当报错")
	}
	if xerrors.CodeOf(err) != xerrors.CodeInvalidArgument {
		t.Fatalf("错误码 = %s, 期望 INVALID_ARGUMENT", xerrors.CodeOf(err))
	}
}
