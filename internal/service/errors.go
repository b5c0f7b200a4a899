package service

import (
	"errors"

	"pixel-guess/internal/repository"
	"pixel-guess/internal/session"
)

var (
	ErrSessionUnavailable = errors.New("session is not running")
	ErrArchiveDisabled    = errors.New("game archive is not configured")
	ErrInvalidScale       = errors.New("scale must be between 1 and 8")
	ErrNotFound           = errors.New("not found")
	ErrInternalServer     = errors.New("internal server error")
)

// mapRepoError 将会话层和仓库层的错误映射到服务层定义的错误。
func mapRepoError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, session.ErrSessionClosed):
		return ErrSessionUnavailable
	case errors.Is(err, repository.ErrNotFound):
		return ErrNotFound
	default:
		return errors.Join(ErrInternalServer, err)
	}
}
