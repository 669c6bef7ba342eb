package apperr

import (
	"errors"
	"fmt"
)

// ValidationError は入力不正を表します。状態を一切変更する前に検出されます。
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

// Validationf は書式付きでValidationErrorを作成します
func Validationf(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// IsValidation はValidationErrorかどうかを判定します
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// NotFoundError は未知のチャンネル・動画参照を表します
type NotFoundError struct {
	Kind string // "channel", "video" など
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

// IsNotFound はNotFoundErrorかどうかを判定します
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// UnavailableError は外部サービスがコンテンツを取得不能と確定した状態を表します。
// 一時障害とは異なり、自動リトライの対象になりません。
type UnavailableError struct {
	Code string // "membersOnly", "private", "unavailable" など
	Msg  string
}

func (e *UnavailableError) Error() string {
	if e.Msg != "" {
		return fmt.Sprintf("content unavailable (%s): %s", e.Code, e.Msg)
	}
	return fmt.Sprintf("content unavailable (%s)", e.Code)
}

// AsUnavailable はUnavailableErrorを取り出します
func AsUnavailable(err error) (*UnavailableError, bool) {
	var ue *UnavailableError
	if errors.As(err, &ue) {
		return ue, true
	}
	return nil, false
}

// TransientError は外部サービスの一時障害を表します。リトライ対象です。
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// Transient は一時障害としてエラーをラップします
func Transient(op string, err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Op: op, Err: err}
}
