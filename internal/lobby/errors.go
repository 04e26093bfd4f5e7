// internal/lobby/errors.go
package lobby

import "errors"

// Failure kinds reported by Registry operations. Callers test for them with
// errors.Is; the returned errors wrap these with the lobby and participant
// involved.
var (
	ErrNotFound           = errors.New("lobby not found")
	ErrConflict           = errors.New("lobby conflict")
	ErrUnauthorized       = errors.New("only the lobby leader may do this")
	ErrNotReady           = errors.New("lobby cannot start yet")
	ErrProvisioningFailed = errors.New("instance provisioning failed")
	ErrDisabled           = errors.New("lobby service is disabled")
)
