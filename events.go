package authstate

// AuthEvent is the engine's normalized auth event set
type AuthEvent string

const (
	EventSignedIn       AuthEvent = "signed_in"
	EventSignedOut      AuthEvent = "signed_out"
	EventTokenRefreshed AuthEvent = "token_refreshed"
	EventUserDeleted    AuthEvent = "user_deleted"
	EventUnknown        AuthEvent = "unknown"
)

// ProviderEvent is a raw event from the identity provider's change stream,
// carrying the provider-specific event name and the session at that point
// (nil on sign-out/delete).
type ProviderEvent struct {
	Type    string
	Session *Session
}

// NormalizeEvent maps provider-specific event names onto the internal event
// set. Unrecognized names map to EventUnknown and are ignored by the engine.
func NormalizeEvent(raw string) AuthEvent {
	switch raw {
	case "SIGNED_IN", "INITIAL_SESSION", "MFA_CHALLENGE_VERIFIED":
		return EventSignedIn
	case "TOKEN_REFRESHED", "USER_UPDATED":
		return EventTokenRefreshed
	case "SIGNED_OUT":
		return EventSignedOut
	case "USER_DELETED":
		return EventUserDeleted
	default:
		return EventUnknown
	}
}

// Event reports the normalized event for a provider event
func (e ProviderEvent) Event() AuthEvent {
	return NormalizeEvent(e.Type)
}
