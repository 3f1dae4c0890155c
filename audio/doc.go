// Package audio turns a sample stream into the per-tick loudness envelope the
// crimson gate reacts to.
//
// A Bus keeps the most recent WindowSize mono samples. Streams reach it
// through Tap, which wraps any beep.Streamer so that whatever pulls the
// stream (a speaker, or Pump in headless runs) also feeds the bus. Envelope
// is a non-blocking read of the current window; with nothing connected it
// reports silence.
package audio
