package services

import "errors"

var (
	ErrForbidden            = errors.New("forbidden")
	ErrConflict             = errors.New("conflict")
	ErrInvalidInput         = errors.New("invalid input")
	ErrEmptyMessage         = errors.New("message needs text or an attachment")
	ErrUploadFailed         = errors.New("attachment upload failed")
	ErrConversationNotFound = errors.New("conversation not found")
	ErrProfileNotFound      = errors.New("profile not found")
	ErrRoleUnavailable      = errors.New("account has no profile for this role")
	ErrStorageUnavailable   = errors.New("storage service is not configured")
)
