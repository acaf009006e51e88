package mapper

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

func coerceAddress(v any) (common.Address, error) {
	switch a := v.(type) {
	case common.Address:
		return a, nil
	case *common.Address:
		if a == nil {
			return common.Address{}, fmt.Errorf("nil address")
		}
		return *a, nil
	case string:
		if !common.IsHexAddress(a) {
			return common.Address{}, fmt.Errorf("%q is not a hex address", a)
		}
		return common.HexToAddress(a), nil
	default:
		return common.Address{}, fmt.Errorf("cannot use %T as address", v)
	}
}

func coerceAmount(v any) (*big.Int, error) {
	switch n := v.(type) {
	case *big.Int:
		if n == nil {
			return nil, fmt.Errorf("nil amount")
		}
		return new(big.Int).Set(n), nil
	case int:
		return big.NewInt(int64(n)), nil
	case int64:
		return big.NewInt(n), nil
	case uint64:
		return new(big.Int).SetUint64(n), nil
	case uint32:
		return new(big.Int).SetUint64(uint64(n)), nil
	case string:
		s := strings.TrimSpace(n)
		out, ok := new(big.Int).SetString(s, 0)
		if !ok {
			return nil, fmt.Errorf("%q is not an integer", n)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("cannot use %T as amount", v)
	}
}
