package domain

import "time"

// RetryConfig bounds the Worker's LoggingIn retry discipline. Login
// retries are unbounded (the worker must not drop), so this struct only
// carries the jitter bounds and floor, which pkg/jitter turns into actual
// sleep durations. Minting and RegisterEvent each have their own fixed
// jitter bounds and are not configurable here.
type RetryConfig struct {
	// LoginJitterMin and LoginJitterMax bound the uniform(...) term added to
	// BaseDelay on a failed login-client call, before the fixed +6s floor.
	LoginJitterMin float64
	LoginJitterMax float64
}

// DefaultRetryConfig returns the login retry jitter bounds.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		LoginJitterMin: 0.1,
		LoginJitterMax: 3,
	}
}

// IdleJitter bounds the Idle-state sleep between successful cycles:
// uniform(0.1, 3) + 1s.
const (
	IdleJitterMin = 0.1
	IdleJitterMax = 3
	IdleFloor     = 1 * time.Second
)

// LoginFloor is the fixed additive floor on a failed login-client retry:
// base_delay + uniform(0.1, 3) + 6s.
const LoginFloor = 6 * time.Second

// RegisterEventJitter bounds the plain no-code backoff in RegisterEvent:
// uniform(3, 6) seconds between attempts.
const (
	RegisterEventJitterMin = 3
	RegisterEventJitterMax = 6
)

// TooManyRegisterJitter bounds the extended backoff on a TooManyRegister
// signal, applied as two independent uniform draws summed together:
// base_delay + uniform(5, 25) + uniform(1, 3).
const (
	TooManyRegisterJitterMin1 = 5
	TooManyRegisterJitterMax1 = 25
	TooManyRegisterJitterMin2 = 1
	TooManyRegisterJitterMax2 = 3
)

// MintingJitter bounds the Minting retry loop's sleep on transport/parse
// failure: uniform(1, 3.5) seconds.
const (
	MintingJitterMin = 1
	MintingJitterMax = 3.5
)

// SupervisorRestartCooldown is the fixed delay before the Supervisor
// restarts a Worker that terminated with an error.
const SupervisorRestartCooldown = 1 * time.Second
