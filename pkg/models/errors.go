package models

import (
	"errors"
	"fmt"
)

// ErrorKind is the stable machine-readable classification of a terminal
// extraction or download failure.
type ErrorKind string

const (
	KindNotVideoPage   ErrorKind = "NOT_VIDEO_PAGE"
	KindPhotoPost      ErrorKind = "PHOTO_POST"
	KindLiveStory      ErrorKind = "LIVE_STORY"
	KindPrivate        ErrorKind = "PRIVATE_OR_LOGIN_REQUIRED"
	KindParseError     ErrorKind = "PARSE_ERROR"
	KindSchemaChanged  ErrorKind = "SCHEMA_CHANGED"
	KindFormatUnsup    ErrorKind = "FORMAT_UNSUPPORTED"
	KindBlocked        ErrorKind = "BLOCKED"
	KindDownload403    ErrorKind = "DOWNLOAD_403"
	KindInterrupted    ErrorKind = "INTERRUPTED"
	KindTokenExpired   ErrorKind = "TOKEN_EXPIRED"
	KindNetworkFailure ErrorKind = "NETWORK_FAILURE"
	KindShortURL       ErrorKind = "SHORT_URL_REDIRECTING"
)

var defaultMessages = map[ErrorKind]string{
	KindNotVideoPage:   "no recognizable video on this page or link",
	KindPhotoPost:      "post is a photo/carousel, not supported",
	KindLiveStory:      "live and story content is not supported",
	KindPrivate:        "video is private or requires login",
	KindParseError:     "could not decode the page's embedded data",
	KindSchemaChanged:  "page structure changed, no video record found",
	KindFormatUnsup:    "video is stream-only, not supported",
	KindBlocked:        "request was blocked (403)",
	KindDownload403:    "direct download blocked (403), trying compatibility mode",
	KindInterrupted:    "download was interrupted",
	KindTokenExpired:   "link expired, copy the share link again",
	KindNetworkFailure: "network request failed",
	KindShortURL:       "share link is still redirecting, wait for the final page",
}

// ExtractError carries a stable kind plus a human-readable message so
// callers can branch on known kinds and fall back to a generic display
// for unrecognized ones.
type ExtractError struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e *ExtractError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return string(e.Kind)
}

func (e *ExtractError) Unwrap() error {
	return e.Cause
}

// NewError creates an ExtractError with the default message for the kind
// when msg is empty.
func NewError(kind ErrorKind, msg string) *ExtractError {
	if msg == "" {
		msg = defaultMessages[kind]
	}
	return &ExtractError{Kind: kind, Message: msg}
}

// WrapError attaches a cause while keeping the kind and message
func WrapError(kind ErrorKind, msg string, cause error) *ExtractError {
	err := NewError(kind, msg)
	err.Cause = cause
	return err
}

// Errf creates an ExtractError with a formatted message
func Errf(kind ErrorKind, format string, args ...interface{}) *ExtractError {
	return &ExtractError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the error kind, or "" for errors outside the taxonomy
func KindOf(err error) ErrorKind {
	var ee *ExtractError
	if errors.As(err, &ee) {
		return ee.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}
