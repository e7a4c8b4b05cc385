package deploy

import (
	"fmt"
	"math/big"
	"reflect"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// EncodeConstructor packs parsed argument values against the ABI constructor.
// Values from ParseArgs are coerced to the Go types the ABI encoder expects.
func EncodeConstructor(parsed abi.ABI, args []any) ([]byte, error) {
	inputs := parsed.Constructor.Inputs
	if len(args) != len(inputs) {
		return nil, fmt.Errorf("%w: constructor takes %d argument(s), got %d", ErrEncoding, len(inputs), len(args))
	}

	values, err := coerceArgs(inputs, args)
	if err != nil {
		return nil, err
	}

	encoded, err := parsed.Pack("", values...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncoding, err)
	}
	return encoded, nil
}

func coerceArgs(inputs abi.Arguments, args []any) ([]any, error) {
	values := make([]any, len(args))
	for i, arg := range args {
		v, err := coerce(arg, inputs[i].Type)
		if err != nil {
			name := inputs[i].Name
			if name == "" {
				name = fmt.Sprintf("#%d", i)
			}
			return nil, fmt.Errorf("%w: argument %s (%s): %v", ErrEncoding, name, inputs[i].Type.String(), err)
		}
		values[i] = v.Interface()
	}
	return values, nil
}

func coerce(v any, t abi.Type) (reflect.Value, error) {
	switch t.T {
	case abi.IntTy, abi.UintTy:
		return coerceInt(v, t)

	case abi.BoolTy:
		b, ok := v.(bool)
		if !ok {
			return reflect.Value{}, fmt.Errorf("expected bool, got %s", describe(v))
		}
		return reflect.ValueOf(b), nil

	case abi.StringTy:
		s, ok := v.(string)
		if !ok {
			return reflect.Value{}, fmt.Errorf("expected string, got %s", describe(v))
		}
		return reflect.ValueOf(s), nil

	case abi.AddressTy:
		s, ok := v.(string)
		if !ok || !common.IsHexAddress(s) {
			return reflect.Value{}, fmt.Errorf("expected quoted 0x address, got %s", describe(v))
		}
		return reflect.ValueOf(common.HexToAddress(s)), nil

	case abi.BytesTy:
		b, err := hexBytes(v)
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(b), nil

	case abi.FixedBytesTy:
		b, err := hexBytes(v)
		if err != nil {
			return reflect.Value{}, err
		}
		if len(b) != t.Size {
			return reflect.Value{}, fmt.Errorf("expected %d bytes, got %d", t.Size, len(b))
		}
		arr := reflect.New(t.GetType()).Elem()
		reflect.Copy(arr.Slice(0, t.Size), reflect.ValueOf(b))
		return arr, nil

	case abi.SliceTy:
		items, ok := asSequence(v)
		if !ok {
			return reflect.Value{}, fmt.Errorf("expected list, got %s", describe(v))
		}
		slice := reflect.MakeSlice(t.GetType(), len(items), len(items))
		for i, item := range items {
			elem, err := coerce(item, *t.Elem)
			if err != nil {
				return reflect.Value{}, fmt.Errorf("[%d]: %v", i, err)
			}
			slice.Index(i).Set(elem)
		}
		return slice, nil

	case abi.ArrayTy:
		items, ok := asSequence(v)
		if !ok {
			return reflect.Value{}, fmt.Errorf("expected list, got %s", describe(v))
		}
		if len(items) != t.Size {
			return reflect.Value{}, fmt.Errorf("expected %d elements, got %d", t.Size, len(items))
		}
		arr := reflect.New(t.GetType()).Elem()
		for i, item := range items {
			elem, err := coerce(item, *t.Elem)
			if err != nil {
				return reflect.Value{}, fmt.Errorf("[%d]: %v", i, err)
			}
			arr.Index(i).Set(elem)
		}
		return arr, nil

	case abi.TupleTy:
		items, ok := asSequence(v)
		if !ok {
			return reflect.Value{}, fmt.Errorf("expected tuple, got %s", describe(v))
		}
		if len(items) != len(t.TupleElems) {
			return reflect.Value{}, fmt.Errorf("expected %d tuple fields, got %d", len(t.TupleElems), len(items))
		}
		st := reflect.New(t.GetType()).Elem()
		for i, item := range items {
			field, err := coerce(item, *t.TupleElems[i])
			if err != nil {
				return reflect.Value{}, fmt.Errorf("%s: %v", t.TupleRawNames[i], err)
			}
			st.Field(i).Set(field)
		}
		return st, nil
	}

	return reflect.Value{}, fmt.Errorf("unsupported parameter type %s", t.String())
}

func coerceInt(v any, t abi.Type) (reflect.Value, error) {
	n, ok := v.(*big.Int)
	if !ok {
		s, isString := v.(string)
		if !isString {
			return reflect.Value{}, fmt.Errorf("expected integer, got %s", describe(v))
		}
		// quoted numbers are accepted for values too large to read comfortably unquoted
		parsed, err := ParseArgs(s)
		if err != nil || len(parsed) != 1 {
			return reflect.Value{}, fmt.Errorf("expected integer, got %q", s)
		}
		if n, ok = parsed[0].(*big.Int); !ok {
			return reflect.Value{}, fmt.Errorf("expected integer, got %q", s)
		}
	}

	if t.T == abi.UintTy {
		if n.Sign() < 0 {
			return reflect.Value{}, fmt.Errorf("negative value %s for unsigned type", n)
		}
		if n.BitLen() > t.Size {
			return reflect.Value{}, fmt.Errorf("value %s overflows uint%d", n, t.Size)
		}
	} else {
		limit := new(big.Int).Lsh(big.NewInt(1), uint(t.Size-1))
		lower := new(big.Int).Neg(limit)
		if n.Cmp(limit) >= 0 || n.Cmp(lower) < 0 {
			return reflect.Value{}, fmt.Errorf("value %s overflows int%d", n, t.Size)
		}
	}

	typ := t.GetType()
	switch typ.Kind() {
	case reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return reflect.ValueOf(n.Uint64()).Convert(typ), nil
	case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return reflect.ValueOf(n.Int64()).Convert(typ), nil
	}
	return reflect.ValueOf(new(big.Int).Set(n)), nil
}

func hexBytes(v any) ([]byte, error) {
	s, ok := v.(string)
	if !ok || !strings.HasPrefix(s, "0x") {
		return nil, fmt.Errorf("expected quoted 0x hex bytes, got %s", describe(v))
	}
	b, err := hexutil.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("invalid hex %q: %v", s, err)
	}
	return b, nil
}

func asSequence(v any) ([]any, bool) {
	switch s := v.(type) {
	case tuple:
		return []any(s), true
	case []any:
		return s, true
	}
	return nil, false
}

func describe(v any) string {
	switch x := v.(type) {
	case nil:
		return "nothing"
	case string:
		return fmt.Sprintf("string %q", x)
	case *big.Int:
		return "integer " + x.String()
	case bool:
		return fmt.Sprintf("bool %t", x)
	case tuple:
		return fmt.Sprintf("tuple of %d", len(x))
	case []any:
		return fmt.Sprintf("list of %d", len(x))
	}
	return fmt.Sprintf("%T", v)
}
