package call

import (
	"context"

	"github.com/switchboard-ai/switchboard/pkg/codec"
	"github.com/switchboard-ai/switchboard/pkg/guard"
	"github.com/switchboard-ai/switchboard/pkg/tts"
)

// playout streams one synthesized utterance to the transport chunk by
// chunk, so the caller hears audio before the full utterance is rendered.
// Cancelling ctx (barge-in, session end) stops it between chunks; the
// session separately sends clear to flush provider-side buffers.
//
// Completion is confirmed by the provider echoing mark once everything
// queued before it has played. This goroutine only reports failures.
func (s *Session) playout(ctx context.Context, text, mark string) {
	stream, err := guard.Do(ctx, s.deps.Guards.TTS, func(ctx context.Context) (tts.AudioStream, error) {
		return s.deps.Synth.Stream(ctx, text)
	})
	if err != nil {
		s.post(event{kind: evPlayoutDone, mark: mark, err: err})
		return
	}
	defer stream.Close()

	format := stream.Format()

	// PCM chunks off HTTP bodies can split a sample across reads.
	var asm *codec.Assembler
	if !format.Encoding.IsULaw() {
		asm = codec.NewAssembler(codec.PCMBytesPerSample)
	}

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		chunk, err := stream.Read()
		if err != nil {
			s.post(event{kind: evPlayoutDone, mark: mark, err: err})
			return
		}
		if chunk == nil {
			break
		}
		if len(chunk) == 0 {
			continue
		}

		wire := chunk
		if asm != nil {
			if chunk = asm.Push(chunk); len(chunk) == 0 {
				continue
			}
			wire = codec.PCMToWire(chunk, format.SampleRate)
		}

		if err := s.deps.Transport.SendAudio(wire); err != nil {
			s.post(event{kind: evTransportClosed, err: err})
			return
		}
	}

	if err := s.deps.Transport.SendMark(mark); err != nil {
		s.post(event{kind: evTransportClosed, err: err})
	}
}
