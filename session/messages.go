package session

import apperrors "github.com/jrsteele09/admin-session/internal/errors"

// User-facing login errors.
const (
	MessageBadCredentials  = "نام کاربری یا رمز عبور اشتباه است"
	MessageEmailUnverified = "ایمیل شما هنوز تأیید نشده است. لطفاً برای ادامه، ایمیل خود را تأیید کنید."
	MessageServerError     = "مشکلی در سرور رخ داده است. لطفا دوباره تلاش کنید."
	MessageNetworkError    = "ارتباط با سرور برقرار نشد. لطفا اتصال خود را بررسی کنید."
)

// Message maps a login error to the text shown under the login form.
func Message(err error) string {
	switch {
	case err == nil:
		return ""
	case apperrors.Is(err, apperrors.ErrBadCredentials):
		return MessageBadCredentials
	case apperrors.Is(err, apperrors.ErrEmailUnverified):
		return MessageEmailUnverified
	case apperrors.Is(err, apperrors.ErrNetwork):
		return MessageNetworkError
	}
	return MessageServerError
}
