package identity

import (
	"errors"
	"fmt"
	"strings"

	"firebase.google.com/go/v4/auth"
	"google.golang.org/api/googleapi"
)

// ErrorCode classifies provider failures into the cases the storefront shows distinct text for.
type ErrorCode string

const (
	CodeInvalidEmail        ErrorCode = "invalid-email"
	CodeUserDisabled        ErrorCode = "user-disabled"
	CodeUserNotFound        ErrorCode = "user-not-found"
	CodeWrongPassword       ErrorCode = "wrong-password"
	CodeEmailAlreadyInUse   ErrorCode = "email-already-in-use"
	CodeOperationNotAllowed ErrorCode = "operation-not-allowed"
	CodeWeakPassword        ErrorCode = "weak-password"
	CodeTooManyRequests     ErrorCode = "too-many-requests"
	CodeRequiresRecentLogin ErrorCode = "requires-recent-login"
	CodeInvalidActionCode   ErrorCode = "invalid-action-code"
	CodeInvalidArgument     ErrorCode = "invalid-argument"
	CodeUnknown             ErrorCode = "unknown"
)

var messages = map[ErrorCode]string{
	CodeInvalidEmail:        "The email address is not valid.",
	CodeUserDisabled:        "This account has been disabled.",
	CodeUserNotFound:        "No account was found for this email.",
	CodeWrongPassword:       "The password is incorrect.",
	CodeEmailAlreadyInUse:   "This email is already registered.",
	CodeOperationNotAllowed: "This sign-in method is not enabled.",
	CodeWeakPassword:        "The password is too weak. Use at least 6 characters.",
	CodeTooManyRequests:     "Too many attempts. Please try again later.",
	CodeRequiresRecentLogin: "Please sign in again before changing your password.",
	CodeInvalidActionCode:   "The link is invalid or has expired.",
}

// Error is a classified provider failure.
type Error struct {
	Code ErrorCode
	Op   string // user-facing operation name, e.g. "Login"
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Code)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Code, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Message is the text shown to the user.
// Unclassified failures read "<operation> failed: <raw message>".
func (e *Error) Message() string {
	if msg, ok := messages[e.Code]; ok {
		return msg
	}
	if e.Code == CodeInvalidArgument && e.Err != nil {
		return e.Err.Error()
	}
	raw := "unknown error"
	if e.Err != nil {
		raw = e.Err.Error()
	}
	return fmt.Sprintf("%s failed: %s", e.Op, raw)
}

// Invalid builds a validation failure raised before calling the provider.
func Invalid(op string, code ErrorCode, msg string) *Error {
	return &Error{Code: code, Op: op, Err: errors.New(msg)}
}

// CodeOf returns the classification of err, or CodeUnknown.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}

// toolkitCodes maps Identity Toolkit error messages to our codes.
var toolkitCodes = map[string]ErrorCode{
	"INVALID_EMAIL":                  CodeInvalidEmail,
	"MISSING_EMAIL":                  CodeInvalidEmail,
	"USER_DISABLED":                  CodeUserDisabled,
	"EMAIL_NOT_FOUND":                CodeUserNotFound,
	"USER_NOT_FOUND":                 CodeUserNotFound,
	"INVALID_PASSWORD":               CodeWrongPassword,
	"INVALID_LOGIN_CREDENTIALS":      CodeWrongPassword,
	"EMAIL_EXISTS":                   CodeEmailAlreadyInUse,
	"OPERATION_NOT_ALLOWED":          CodeOperationNotAllowed,
	"PASSWORD_LOGIN_DISABLED":        CodeOperationNotAllowed,
	"WEAK_PASSWORD":                  CodeWeakPassword,
	"TOO_MANY_ATTEMPTS_TRY_LATER":    CodeTooManyRequests,
	"CREDENTIAL_TOO_OLD_LOGIN_AGAIN": CodeRequiresRecentLogin,
	"TOKEN_EXPIRED":                  CodeRequiresRecentLogin,
	"INVALID_ID_TOKEN":               CodeRequiresRecentLogin,
	"INVALID_OOB_CODE":               CodeInvalidActionCode,
	"EXPIRED_OOB_CODE":               CodeInvalidActionCode,
}

// Classify wraps a raw provider error into an *Error. Already classified errors pass through.
func Classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var classified *Error
	if errors.As(err, &classified) {
		return err
	}

	code := CodeUnknown
	var gerr *googleapi.Error
	switch {
	case errors.As(err, &gerr):
		code = toolkitCode(gerr)
	case auth.IsEmailAlreadyExists(err):
		code = CodeEmailAlreadyInUse
	case auth.IsUserNotFound(err):
		code = CodeUserNotFound
	}
	return &Error{Code: code, Op: op, Err: err}
}

// toolkitCode reads messages such as "WEAK_PASSWORD : Password should be at least 6 characters".
func toolkitCode(gerr *googleapi.Error) ErrorCode {
	candidates := []string{gerr.Message}
	for _, item := range gerr.Errors {
		candidates = append(candidates, item.Message, item.Reason)
	}
	for _, c := range candidates {
		key := c
		if i := strings.IndexAny(key, " :"); i >= 0 {
			key = key[:i]
		}
		if code, ok := toolkitCodes[key]; ok {
			return code
		}
	}
	return CodeUnknown
}
