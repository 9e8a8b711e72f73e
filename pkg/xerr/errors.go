package xerr

import "fmt"

// Business codes surfaced on the HTTP control plane.
const (
	OK                 = 200
	RequestParamsError = 400
	ServerCommonError  = 500

	StreamNotRunning     = 1001001
	StreamAlreadyRunning = 1001002
)

type CodeError struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

func (e *CodeError) Error() string {
	return fmt.Sprintf("ErrCode:%d, Msg:%s", e.Code, e.Msg)
}

func New(code int, msg string) error {
	return &CodeError{Code: code, Msg: msg}
}

func NewErrCode(code int) error {
	return &CodeError{Code: code, Msg: MapErrMsg(code)}
}

func MapErrMsg(code int) string {
	switch code {
	case ServerCommonError:
		return "internal error"
	case RequestParamsError:
		return "invalid parameters"
	case StreamNotRunning:
		return "stream is not running"
	case StreamAlreadyRunning:
		return "stream is already running"
	default:
		return "unknown error"
	}
}
