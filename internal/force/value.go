package force

// Value is either a constant or a function of an element and its index.
// Simulations evaluate values once per Start and cache the results.
type Value[T any] struct {
	constant float64
	fn       func(v T, i int) float64
}

// Constant returns a Value that always evaluates to c.
func Constant[T any](c float64) Value[T] {
	return Value[T]{constant: c}
}

// Func returns a Value computed by fn.
func Func[T any](fn func(v T, i int) float64) Value[T] {
	return Value[T]{fn: fn}
}

// Eval evaluates the value for element v at index i.
func (v Value[T]) Eval(x T, i int) float64 {
	if v.fn != nil {
		return v.fn(x, i)
	}
	return v.constant
}

// Constant reports the constant, if the value is one.
func (v Value[T]) Constant() (float64, bool) {
	return v.constant, v.fn == nil
}
