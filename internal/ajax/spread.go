package ajax

// Spread calls fn with the positional values of results as its arguments.
// Fulfilled slots contribute their value; rejected slots contribute their
// error; pending slots contribute nil. It mirrors applying a result list
// to a variadic continuation.
func Spread(results []Result, fn func(values ...any)) {
	if fn == nil {
		return
	}
	values := make([]any, len(results))
	for i, r := range results {
		switch {
		case r.Rejected():
			values[i] = r.Err
		case r.Fulfilled():
			values[i] = r.Value
		}
	}
	fn(values...)
}
