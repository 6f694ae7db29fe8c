package errors

import "fmt"

var (
	ErrValidation       = fmt.Errorf("invalid command")
	ErrNotFound         = fmt.Errorf("not found")
	ErrPermissionDenied = fmt.Errorf("permission denied")
	ErrAlreadyMember    = fmt.Errorf("user is already a group member")
	ErrAlreadyRecalled  = fmt.Errorf("message already recalled")
	ErrTransaction      = fmt.Errorf("storage transaction failed")
	ErrInvalidToken     = fmt.Errorf("invalid token")
	ErrNotUserToken     = fmt.Errorf("token does not belong to a user principal")
	ErrWorkerPanic      = fmt.Errorf("worker panic")
)
