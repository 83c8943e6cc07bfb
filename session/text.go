package session

import (
	"context"
	"fmt"
	"time"

	"rehearse/codec"
	"rehearse/gemini"
	"rehearse/log"
	"rehearse/transcript"
)

// Push-to-talk mode records one utterance per explicit press. Each press
// opens a transcribe-only live stream for that utterance; the release closes
// it and hands the transcribed turn to the text exchange for the reply. At
// most one exchange is in flight: a new press is rejected while the previous
// reply is still streaming.

// BeginTurn starts recording one utterance. Valid only while listening.
func (o *Orchestrator) BeginTurn(ctx context.Context) error {
	if o.mode != ModePushToTalk {
		return fmt.Errorf("session: turns are explicit only in push-to-talk mode")
	}
	o.mu.Lock()
	if o.state != StateListening || o.recording {
		state := o.state
		o.mu.Unlock()
		return fmt.Errorf("session: cannot start a turn while %s", state)
	}
	o.mu.Unlock()

	stream, err := o.backend.Dial(ctx, gemini.LiveConfig{
		SystemPrompt:   o.systemPrompt,
		TranscribeOnly: true,
	})
	if err != nil {
		return err
	}

	turnStop := make(chan struct{})
	turnSent := make(chan struct{})
	turnRecv := make(chan struct{})

	o.mu.Lock()
	o.stream = stream
	o.recording = true
	o.turnStop = turnStop
	o.turnSent = turnSent
	o.turnRecv = turnRecv
	o.mu.Unlock()

	go o.runTurnSender(stream, turnStop, turnSent)
	go o.runTurnReceiver(stream, turnRecv)
	return nil
}

// EndTurn stops recording, finalizes the user's message, and streams the
// interviewer's reply over the text exchange.
func (o *Orchestrator) EndTurn(ctx context.Context) error {
	o.mu.Lock()
	if !o.recording {
		o.mu.Unlock()
		return nil
	}
	o.recording = false
	stream := o.stream
	turnStop := o.turnStop
	turnSent := o.turnSent
	turnRecv := o.turnRecv
	o.mu.Unlock()

	// flush the buffered tail so short utterances are not lost
	o.feedMu.Lock()
	if len(o.feedBuf) > 0 {
		tail := codec.EncodeBase64(o.feedBuf)
		o.feedBuf = nil
		select {
		case o.audioCh <- tail:
		default:
		}
	}
	o.feedMu.Unlock()

	// stop the sender; it drains queued chunks and signals end of audio,
	// then the receiver runs until the server completes the turn. Only
	// after both finish, or the drain budget runs out, does the stream
	// actually close, so end-of-utterance fragments are not dropped.
	close(turnStop)
	select {
	case <-turnSent:
	case <-time.After(turnDrainMax):
		log.Warn("utterance sender drain timeout")
	}
	select {
	case <-turnRecv:
	case <-time.After(turnDrainMax):
		log.Warn("utterance receiver drain timeout")
	}
	stream.Close()

	o.mu.Lock()
	o.stream = nil
	o.tr.CompleteTurn()
	var userText string
	if n := o.tr.Len(); n > 0 {
		if last := o.tr.Messages()[n-1]; last.Speaker == transcript.User {
			userText = last.Text
		}
	}
	if userText == "" {
		msgs := o.tr.Messages()
		o.mu.Unlock()
		o.emit(TranscriptUpdate{Messages: msgs})
		return nil
	}
	o.state = StateProcessing
	msgs := o.tr.Messages()
	o.mu.Unlock()

	log.TurnComplete(string(transcript.User), len(userText))
	o.emit(TranscriptUpdate{Messages: msgs})
	o.emit(StateUpdate{State: StateProcessing})

	go o.streamReply(ctx, userText)
	return nil
}

func (o *Orchestrator) runTurnSender(stream LiveStream, stop <-chan struct{}, sent chan<- struct{}) {
	defer close(sent)
	for {
		select {
		case chunk := <-o.audioCh:
			if err := stream.SendAudio(chunk); err != nil {
				o.fail(err)
				return
			}
		case <-stop:
			// drain whatever is already queued, then mark end of audio
			for {
				select {
				case chunk := <-o.audioCh:
					if err := stream.SendAudio(chunk); err != nil {
						o.fail(err)
						return
					}
				default:
					if err := stream.CloseSend(); err != nil {
						o.fail(err)
					}
					return
				}
			}
		case <-o.quit:
			return
		}
	}
}

// runTurnReceiver collects the user's transcription for one utterance, ending
// when the server completes the turn or the stream dies.
func (o *Orchestrator) runTurnReceiver(stream LiveStream, done chan<- struct{}) {
	defer close(done)
	for {
		ev, err := stream.Recv()
		if err != nil {
			return
		}
		switch frag := ev.(type) {
		case gemini.TurnComplete:
			return
		case gemini.Fragment:
			if frag.Source != gemini.SourceUser {
				continue
			}
			o.mu.Lock()
			o.tr.AppendFragment(transcript.User, frag.Text)
			msgs := o.tr.Messages()
			o.mu.Unlock()
			o.emit(TranscriptUpdate{Messages: msgs})
		}
	}
}

// streamReply runs one text exchange and appends the interviewer's answer
// fragment by fragment.
func (o *Orchestrator) streamReply(ctx context.Context, userText string) {
	o.mu.Lock()
	history := chatHistory(o.tr.Snapshot())
	o.mu.Unlock()

	reply, err := o.chat.Stream(ctx, o.systemPrompt, history, userText)
	if err != nil {
		o.fail(err)
		o.backToListening()
		return
	}

	for frag := range reply.Fragments() {
		o.mu.Lock()
		o.tr.AppendFragment(transcript.AI, frag)
		msgs := o.tr.Messages()
		o.mu.Unlock()
		o.emit(TranscriptUpdate{Messages: msgs})
	}
	if err := reply.Err(); err != nil {
		o.fail(err)
	}

	o.mu.Lock()
	o.tr.CompleteTurn()
	if n := o.tr.Len(); n > 0 {
		last := o.tr.Messages()[n-1]
		if last.Speaker == transcript.AI {
			log.TurnComplete(string(last.Speaker), len(last.Text))
		}
	}
	msgs := o.tr.Messages()
	o.mu.Unlock()
	o.emit(TranscriptUpdate{Messages: msgs})
	o.backToListening()
}

func (o *Orchestrator) backToListening() {
	o.mu.Lock()
	if o.state != StateProcessing {
		o.mu.Unlock()
		return
	}
	o.state = StateListening
	o.mu.Unlock()
	o.emit(StateUpdate{State: StateListening})
}

// chatHistory converts finalized messages into exchange turns, excluding the
// trailing user message that is being answered.
func chatHistory(messages []transcript.Message) []gemini.Turn {
	if n := len(messages); n > 0 && messages[n-1].Speaker == transcript.User {
		messages = messages[:n-1]
	}
	turns := make([]gemini.Turn, 0, len(messages))
	for _, m := range messages {
		role := "user"
		if m.Speaker == transcript.AI {
			role = "model"
		}
		turns = append(turns, gemini.Turn{Role: role, Text: m.Text})
	}
	return turns
}
