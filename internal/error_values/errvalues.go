package errorvalues

import "errors"

var (
	ErrValidation   = errors.New("validation error")
	ErrInvalidLabel = errors.New("unknown occupancy level")
	ErrCooldown     = errors.New("survey cooldown is active")
	ErrUserNotFound = errors.New("user doesn't exists")
)
