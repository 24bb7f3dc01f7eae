package sse

import (
	"catalogboost/internal/application/common/slogger"
	"catalogboost/internal/application/dto"
	domainerrors "catalogboost/internal/domain/errors/domain"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Recognized stream event names.
const (
	eventStart         = "start"
	eventProcessing    = "processing"
	eventProductResult = "product_result"
	eventBalanceUpdate = "balance_update"
	eventDone          = "done"
	eventError         = "error"
)

// StartEvent signals that the stream opened, with an optional status
// message.
type StartEvent struct {
	Message string `json:"message"`
}

// ProcessingEvent is a generic status update.
type ProcessingEvent struct {
	Message string `json:"message"`
}

// ProductResultEvent carries one product's suggestions as they arrive.
type ProductResultEvent struct {
	Result dto.ItemResultDTO
}

// BalanceUpdateEvent carries an authoritative new balance.
type BalanceUpdateEvent struct {
	NewBalance int64 `json:"new_balance"`
}

// DoneEvent signals normal stream completion.
type DoneEvent struct {
	Message string `json:"message"`
}

// errorEventPayload is the wire form of an error event.
type errorEventPayload struct {
	Message string `json:"message"`
}

// Handler receives the non-terminal stream events, one method per
// variant. Terminal events (done, error) resolve the Consume call itself
// instead of being dispatched.
type Handler interface {
	OnStart(ctx context.Context, event StartEvent)
	OnProcessing(ctx context.Context, event ProcessingEvent)
	OnProductResult(ctx context.Context, event ProductResultEvent) error
	OnBalanceUpdate(ctx context.Context, event BalanceUpdateEvent)
}

// Consume reads the stream to its terminal event, dispatching each
// decoded event to the handler. It returns exactly once:
//   - nil after a done event, or after a clean EOF with no prior
//     terminal (implicit done);
//   - a StreamError for an error event, a broken byte stream, or a
//     malformed payload;
//   - a StreamError wrapping ctx.Err() when the context is cancelled.
//
// Frames arriving after a terminal event are ignored.
func Consume(ctx context.Context, r io.Reader, handler Handler) error {
	decoder := NewDecoder(r)

	for {
		if err := ctx.Err(); err != nil {
			return domainerrors.WrapStreamError("stream aborted", err)
		}

		frame, err := decoder.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				if frame.Event != "" || len(frame.Data) > 0 {
					// A frame cut off mid-flight still dispatches if complete
					// enough; terminal frames resolve as usual.
					done, dispatchErr := dispatch(ctx, frame, handler)
					if dispatchErr != nil || done {
						return dispatchErr
					}
				}
				// Abrupt close without a prior terminal event resolves as an
				// implicit done: partial results stay rendered.
				return nil
			}
			return domainerrors.WrapStreamError("reading event stream", err)
		}

		done, err := dispatch(ctx, frame, handler)
		if err != nil || done {
			return err
		}
	}
}

// dispatch routes one frame to its handler. It returns done=true when a
// terminal event was seen; err is the terminal rejection, if any.
func dispatch(ctx context.Context, frame Frame, handler Handler) (bool, error) {
	switch frame.Event {
	case eventStart:
		var event StartEvent
		decodeLoose(frame.Data, &event)
		handler.OnStart(ctx, event)
	case eventProcessing:
		var event ProcessingEvent
		decodeLoose(frame.Data, &event)
		handler.OnProcessing(ctx, event)
	case eventProductResult:
		var result dto.ItemResultDTO
		if err := json.Unmarshal(frame.Data, &result); err != nil {
			return true, domainerrors.WrapStreamError("malformed product_result payload", err)
		}
		if err := handler.OnProductResult(ctx, ProductResultEvent{Result: result}); err != nil {
			return true, err
		}
	case eventBalanceUpdate:
		var event BalanceUpdateEvent
		if err := json.Unmarshal(frame.Data, &event); err != nil {
			return true, domainerrors.WrapStreamError("malformed balance_update payload", err)
		}
		handler.OnBalanceUpdate(ctx, event)
	case eventDone:
		return true, nil
	case eventError:
		var payload errorEventPayload
		decodeLoose(frame.Data, &payload)
		if payload.Message == "" {
			payload.Message = "stream reported an error"
		}
		return true, domainerrors.NewStreamError(payload.Message)
	default:
		slogger.Debug(ctx, "Ignoring unrecognized stream event", slogger.Fields{
			"event": frame.Event,
		})
	}
	return false, nil
}

// decodeLoose unmarshals progress payloads best-effort: a malformed
// status message never aborts the stream.
func decodeLoose(data []byte, v interface{}) {
	if len(data) == 0 {
		return
	}
	if err := json.Unmarshal(data, v); err != nil {
		// Fall back to treating the raw payload as the message text.
		if m, ok := v.(interface{ setMessage(string) }); ok {
			m.setMessage(string(data))
		}
	}
}

// setMessage implementations let decodeLoose fall back to raw text.
func (e *StartEvent) setMessage(msg string) { e.Message = msg }

func (e *ProcessingEvent) setMessage(msg string) { e.Message = msg }

func (e *errorEventPayload) setMessage(msg string) { e.Message = msg }

// String implements fmt.Stringer for logging.
func (e ProductResultEvent) String() string {
	return fmt.Sprintf("product_result{product_id=%d status=%s}", e.Result.ProductID, e.Result.Status)
}
