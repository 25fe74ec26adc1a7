package verify

// Reason classifies why a signed payload failed verification.
type Reason string

const (
	ReasonBadSignature       Reason = "BadSignature"
	ReasonIndexMismatch      Reason = "IndexMismatch"
	ReasonKeyBurned          Reason = "KeyBurned"
	ReasonAttestationInvalid Reason = "AttestationInvalid"
	ReasonUnknownIdentity    Reason = "UnknownIdentity"
	ReasonRevokedKey         Reason = "RevokedKey"
	ReasonExpired            Reason = "Expired"
	ReasonMalformedPayload   Reason = "MalformedPayload"
)

// Outcome is a value, never an error: malformed input, bad cryptography, and
// burned keys are all ordinary results a caller inspects. A Valid outcome is
// also only a statement about this node's current view; it can legitimately
// become KeyBurned after the node observes a higher-index signature.
type Outcome struct {
	Valid  bool   `json:"valid"`
	Reason Reason `json:"reason,omitempty"`
	Detail string `json:"detail,omitempty"`
}

func Ok() Outcome {
	return Outcome{Valid: true}
}

func Fail(reason Reason, detail string) Outcome {
	return Outcome{Reason: reason, Detail: detail}
}
