package service

import "errors"

var (
	ErrNotFound            = errors.New("error not found")
	ErrAlreadyExists       = errors.New("error already exists")
	ErrInvalidCredentials  = errors.New("error invalid credentials")
	ErrDemoDisabled        = errors.New("error demo mode disabled")
	ErrDemoResetInProgress = errors.New("error demo reset already in progress")
)
