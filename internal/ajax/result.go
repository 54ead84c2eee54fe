package ajax

import "context"

// State describes how a dispatched item settled.
type State int

// Settlement states. The zero value is StatePending so that unsettled
// slots in a partially aggregated batch are distinguishable from settled
// ones.
const (
	StatePending State = iota
	StateFulfilled
	StateRejected
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateFulfilled:
		return "fulfilled"
	case StateRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Result is the positional outcome of one dispatched item.
//
// A fulfilled request item carries its *Response in Value; a fulfilled
// pass-through item carries the original value untouched. A rejected item
// carries the rejection in Err.
type Result struct {
	State State
	Value any
	Err   error
}

// Fulfill builds a fulfilled result.
func Fulfill(v any) Result {
	return Result{State: StateFulfilled, Value: v}
}

// Reject builds a rejected result.
func Reject(err error) Result {
	return Result{State: StateRejected, Err: err}
}

// Fulfilled reports whether the item settled successfully.
func (r Result) Fulfilled() bool {
	return r.State == StateFulfilled
}

// Rejected reports whether the item settled with an error.
func (r Result) Rejected() bool {
	return r.State == StateRejected
}

// Response returns the value as a *Response when the item fulfilled with
// one.
func (r Result) Response() (*Response, bool) {
	resp, ok := r.Value.(*Response)
	return resp, ok
}

// Settlement pairs a result with the input index it belongs to.
type Settlement struct {
	Index int
	Result
}

// Aggregator consumes the settlement stream of a dispatch batch and
// decides how the batch completes. total is the number of items; exactly
// one settlement per item arrives on the channel. An aggregator may return
// before all items settle; the engine then cancels the remaining work.
type Aggregator func(ctx context.Context, total int, settlements <-chan Settlement) ([]Result, error)

// AllSettled waits for every item and returns the full positional result
// slice with a nil error; individual rejections do not fail the batch.
// Context cancellation rejects the unsettled slots with the context error
// and returns it.
func AllSettled(ctx context.Context, total int, settlements <-chan Settlement) ([]Result, error) {
	results := make([]Result, total)
	for settled := 0; settled < total; settled++ {
		select {
		case s := <-settlements:
			results[s.Index] = s.Result
		case <-ctx.Done():
			for i := range results {
				if results[i].State == StatePending {
					results[i] = Reject(ctx.Err())
				}
			}
			return results, ctx.Err()
		}
	}
	return results, nil
}

// FirstError returns as soon as any item rejects, with that item's error;
// slots that had not settled yet remain pending. When every item fulfills
// it behaves like AllSettled.
func FirstError(ctx context.Context, total int, settlements <-chan Settlement) ([]Result, error) {
	results := make([]Result, total)
	for settled := 0; settled < total; settled++ {
		select {
		case s := <-settlements:
			results[s.Index] = s.Result
			if s.Rejected() {
				return results, s.Err
			}
		case <-ctx.Done():
			for i := range results {
				if results[i].State == StatePending {
					results[i] = Reject(ctx.Err())
				}
			}
			return results, ctx.Err()
		}
	}
	return results, nil
}
