package service

import (
	"ChatApp/internal/pkg/security"
	"errors"
)

const (
	BadRequest          = 400
	Unauthorized        = 401
	Forbidden           = 403
	NotFound            = 404
	InternalServerError = 500
)

var (
	ErrParamInvalid         = errors.New("invalid parameter")
	ErrUserNotFound         = errors.New("user not found")
	ErrUserExist            = errors.New("user already exists")
	ErrUsernameExist        = errors.New("username is already taken")
	ErrEmailExist           = errors.New("email is already in use")
	ErrPasswordIncorrect    = errors.New("incorrect email or password")
	ErrCurrentPassword      = errors.New("current password is incorrect")
	ErrFileNotSupported     = errors.New("only image files are allowed")
	ErrFileTooLarge         = errors.New("file size must be less than 5MB")
	ErrTargetUserInvalid    = errors.New("invalid target user")
	ErrRoomNotFound         = errors.New("chat room not found")
	ErrRoomCreationConflict = errors.New("chat room creation conflict")
	ErrNotRoomMember        = errors.New("not a member of this chat room")
	ErrPresenceStopped      = errors.New("presence tracker stopped")
	UnauthorizedError       = errors.New("unauthorized")
	UnExpectedError         = errors.New("unexpected error, please retry later")
)

var ErrorMap = map[error]int{
	security.ErrInvalidCredential: Unauthorized,
	ErrParamInvalid:               BadRequest,
	ErrUserNotFound:               NotFound,
	ErrUserExist:                  BadRequest,
	ErrUsernameExist:              BadRequest,
	ErrEmailExist:                 BadRequest,
	ErrPasswordIncorrect:          Unauthorized,
	ErrCurrentPassword:            BadRequest,
	ErrFileNotSupported:           BadRequest,
	ErrFileTooLarge:               BadRequest,
	ErrTargetUserInvalid:          BadRequest,
	ErrRoomNotFound:               NotFound,
	ErrRoomCreationConflict:       InternalServerError,
	ErrNotRoomMember:              Forbidden,
	ErrPresenceStopped:            InternalServerError,
	UnauthorizedError:             Unauthorized,
	UnExpectedError:               InternalServerError,
}

// CodeOf 返回错误对应的业务码，未登记的错误返回 500
func CodeOf(err error) (int, bool) {
	if code, ok := ErrorMap[err]; ok {
		return code, true
	}
	for sentinel, code := range ErrorMap {
		if errors.Is(err, sentinel) {
			return code, true
		}
	}
	return InternalServerError, false
}
