package repositories

import "fmt"

// UpstreamConnectError indicates the live model connection could not be
// established or was lost beyond recovery. Terminal errors have exhausted
// the reconnect budget and end the session path that produced them.
type UpstreamConnectError struct {
	Attempts int
	Err      error
}

func (e *UpstreamConnectError) Error() string {
	if e.Attempts > 0 {
		return fmt.Sprintf("upstream connection failed after %d attempts: %v", e.Attempts, e.Err)
	}
	return fmt.Sprintf("upstream connection failed: %v", e.Err)
}

func (e *UpstreamConnectError) Unwrap() error { return e.Err }

// AuthError indicates credentials could not be obtained or were rejected.
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string { return fmt.Sprintf("authentication failed: %v", e.Err) }

func (e *AuthError) Unwrap() error { return e.Err }

// ProtocolError indicates a malformed or unexpected frame on either wire.
// Protocol errors are non-fatal; the offending frame is dropped.
type ProtocolError struct {
	Reason string
	Err    error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("protocol error: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("protocol error: %s", e.Reason)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// SynthesisError indicates text-to-speech synthesis failed for one turn.
// The turn's text is still delivered; only its audio is missing.
type SynthesisError struct {
	Err error
}

func (e *SynthesisError) Error() string { return fmt.Sprintf("speech synthesis failed: %v", e.Err) }

func (e *SynthesisError) Unwrap() error { return e.Err }
