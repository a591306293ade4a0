package deviceauth

import (
	"encoding/json"
	"net/http"
)

// State is a polling state of the device authorization state machine
type State int

// Polling states. Success, Expired, Denied, Error and Cancelled are terminal.
const (
	StatePending State = iota
	StateSlowDown
	StateSuccess
	StateExpired
	StateDenied
	StateError
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "PENDING"
	case StateSlowDown:
		return "SLOW_DOWN"
	case StateSuccess:
		return "SUCCESS"
	case StateExpired:
		return "EXPIRED"
	case StateDenied:
		return "DENIED"
	case StateError:
		return "ERROR"
	case StateCancelled:
		return "CANCELLED"
	default:
		return "UNKNOWN"
	}
}

// Terminal reports whether no transition leaves s
func (s State) Terminal() bool {
	return s != StatePending && s != StateSlowDown
}

// pollOutcome is the decoded result of one token request. The wire error string is
// mapped once here; the polling loop switches on the concrete type.
//
//sumtype:decl
type pollOutcome interface {
	next() State
}

type (
	granted      struct{ token Token }
	pending      struct{}
	slowDown     struct{}
	expiredToken struct{ description string }
	accessDenied struct{ description string }
	invalidGrant struct{ description string }
	failure      struct{ code, description string }
)

func (granted) next() State      { return StateSuccess }
func (pending) next() State      { return StatePending }
func (slowDown) next() State     { return StateSlowDown }
func (expiredToken) next() State { return StateExpired }
func (accessDenied) next() State { return StateDenied }
func (invalidGrant) next() State { return StateError }
func (failure) next() State      { return StateError }

// classifyTokenResponse decodes a token endpoint reply into an outcome
func classifyTokenResponse(status int, body []byte) pollOutcome {
	var resp tokenResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return failure{code: "invalid_response", description: http.StatusText(status)}
	}

	if status == http.StatusOK && resp.Error == "" {
		if resp.AccessToken == "" {
			return failure{code: "invalid_response", description: "token response has no access_token"}
		}
		return granted{token: Token{
			AccessToken: resp.AccessToken,
			TokenType:   resp.TokenType,
			Scope:       resp.Scope,
		}}
	}

	switch resp.Error {
	case ErrorCodeAuthorizationPending:
		return pending{}
	case ErrorCodeSlowDown:
		return slowDown{}
	case ErrorCodeExpiredToken:
		return expiredToken{description: resp.ErrorDescription}
	case ErrorCodeAccessDenied:
		return accessDenied{description: resp.ErrorDescription}
	case ErrorCodeInvalidGrant:
		return invalidGrant{description: resp.ErrorDescription}
	case "":
		return failure{code: "invalid_response", description: http.StatusText(status)}
	default:
		return failure{code: resp.Error, description: resp.ErrorDescription}
	}
}
