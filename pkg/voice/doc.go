// Package voice turns a server-streamed text answer into naturally paced
// speech while the user can barge in at any moment.
//
// The pipeline has four cooperating pieces:
//
//   - SentenceBuffer incrementally extracts complete sentences from the
//     streamed text as it arrives.
//   - AnswerClient / AnswerStream consume the chunked answer endpoint and
//     demultiplex its event frames.
//   - SpeechQueue synthesizes each sentence out-of-band and plays the results
//     strictly in arrival order, one at a time.
//   - Conversation owns the single live cancellation token per turn; starting
//     a new turn or cancelling tears the whole chain down atomically.
//
// Network, synthesis and playback are abstracted behind narrow interfaces
// (tts.Synthesizer, player.Player) so the orchestration is testable with
// in-memory fakes.
package voice
