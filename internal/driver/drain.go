package driver

import (
	"context"
	"time"
)

// drain feeds child output into the emulator until ctx is done. It is the
// only reader of the output channel and the only caller of Feed, and it
// serves flush requests between chunks.
func (in *Interpreter) drain(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case chunk, ok := <-in.out:
			if !ok {
				in.endOfOutput()
				continue
			}
			in.feed(chunk)
		case done := <-in.flushReq:
			in.settleOutput(ctx)
			close(done)
		}
	}
}

// settleOutput feeds output until none has arrived for the settle window,
// the stream ends, or settleMax has passed.
func (in *Interpreter) settleOutput(ctx context.Context) {
	if in.out == nil {
		return
	}
	if in.settle <= 0 {
		for {
			select {
			case chunk, ok := <-in.out:
				if !ok {
					in.endOfOutput()
					return
				}
				in.feed(chunk)
			default:
				return
			}
		}
	}

	deadline := time.Now().Add(in.settleMax)
	quiet := time.NewTimer(in.settle)
	defer quiet.Stop()
	for {
		select {
		case chunk, ok := <-in.out:
			if !ok {
				in.endOfOutput()
				return
			}
			in.feed(chunk)
			wait := min(in.settle, time.Until(deadline))
			if wait <= 0 {
				in.log.Debug().Dur("settle_max", in.settleMax).Msg("output still busy, snapshot taken anyway")
				return
			}
			quiet.Reset(wait)
		case <-quiet.C:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (in *Interpreter) feed(chunk []byte) {
	in.mu.Lock()
	in.parser.Feed(chunk)
	in.mu.Unlock()
	in.log.Trace().Int("bytes", len(chunk)).Msg("output")
}

func (in *Interpreter) endOfOutput() {
	in.out = nil
	in.log.Debug().Msg("output stream ended")
}

// queueReply is called by the parser, under mu, when the emulator answers
// a query. It never blocks the drain.
func (in *Interpreter) queueReply(b []byte) {
	select {
	case in.replies <- b:
	default:
		in.log.Warn().Int("bytes", len(b)).Msg("reply queue full, dropping terminal reply")
	}
}

// writeReplies sends emulator replies back to the child as input.
func (in *Interpreter) writeReplies(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case b := <-in.replies:
			if in.exited() {
				continue
			}
			if err := in.sess.WriteInput(b); err != nil {
				in.log.Debug().Err(err).Msg("write terminal reply")
				continue
			}
			in.log.Trace().Int("bytes", len(b)).Msg("terminal reply sent")
		}
	}
}
