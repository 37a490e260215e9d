package token

// Flow token types. A flow token authorizes exactly one multi-step
// operation, and the type discriminator keeps a token minted for one
// flow from being replayed into another.
const (
	// FlowTOTP bridges the two phases of a second-factor login.
	FlowTOTP = "totp_flow"
	// FlowEmailVerification proves control of a registered address.
	FlowEmailVerification = "email_verification"
)

// FlowPayload is the extension payload carried by flow tokens: the flow
// type plus the client context observed at issuance. Populated binding
// fields pin the token to that context.
type FlowPayload struct {
	TokenType string `json:"token_type"`
	DeviceID  string `json:"device_id,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	IPAddress string `json:"ip_address,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
}

// Binding is the client context observed when a flow token comes back.
type Binding struct {
	DeviceID  string
	SessionID string
	IPAddress string
	UserAgent string
}

// VerifyFlow verifies a flow token and additionally checks the flow type
// and the binding context. Every binding field observed now must match
// what issuance recorded, including fields issuance left empty; only a
// field the verifier does not observe is skipped. Any mismatch, a wrong
// flow type included, reports plain ErrInvalidToken so callers learn
// nothing about which check failed.
func VerifyFlow(c *Codec, raw, tokenType string, observed Binding) (Claims[FlowPayload], error) {
	claims, err := Verify[FlowPayload](c, raw)
	if err != nil {
		return Claims[FlowPayload]{}, err
	}

	if claims.Data.TokenType != tokenType {
		return Claims[FlowPayload]{}, ErrInvalidToken
	}
	if bindingMismatch(claims.Data.DeviceID, observed.DeviceID) ||
		bindingMismatch(claims.Data.SessionID, observed.SessionID) ||
		bindingMismatch(claims.Data.IPAddress, observed.IPAddress) ||
		bindingMismatch(claims.Data.UserAgent, observed.UserAgent) {
		return Claims[FlowPayload]{}, ErrInvalidToken
	}

	return claims, nil
}

func bindingMismatch(issued, observed string) bool {
	return observed != "" && issued != observed
}
