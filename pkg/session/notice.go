package session

import (
	"errors"

	"go.uber.org/zap"

	"github.com/vanderheijden86/edumap/pkg/api"
)

// NoticeKind grades a notice.
type NoticeKind int

const (
	NoticeError NoticeKind = iota
	NoticeWarning
)

func (k NoticeKind) String() string {
	if k == NoticeWarning {
		return "warning"
	}
	return "error"
}

// Notice is a dismissible message about a user-initiated action. Only
// actions the user asked for raise one; background failures are logged.
type Notice struct {
	Kind    NoticeKind
	Message string
	Err     error
}

// Notice returns the current notice, if any.
func (s *Session) Notice() (Notice, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.notice, s.hasNotice
}

// DismissNotice clears the current notice.
func (s *Session) DismissNotice() {
	s.mu.Lock()
	s.notice = Notice{}
	s.hasNotice = false
	s.mu.Unlock()
}

func (s *Session) raise(n Notice) {
	s.mu.Lock()
	s.notice = n
	s.hasNotice = true
	s.mu.Unlock()
}

// fail raises an error notice. The backend's detail message, when there is
// one, replaces the fallback text.
func (s *Session) fail(fallback string, err error) {
	msg := fallback
	var apiErr *api.APIError
	if errors.As(err, &apiErr) && apiErr.Detail != "" {
		msg = apiErr.Detail
	}
	s.logger.Warn(fallback, zap.Error(err))
	s.raise(Notice{Kind: NoticeError, Message: msg, Err: err})
}

func (s *Session) warn(msg string, err error) {
	s.logger.Warn(msg, zap.Error(err))
	s.raise(Notice{Kind: NoticeWarning, Message: msg, Err: err})
}
