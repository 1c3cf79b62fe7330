package apperr

import (
	"errors"
	"fmt"
)

// Kind 错误类别，决定边界层返回的 HTTP 状态码。
type Kind int

const (
	// KindInternal 持久化或其它未预期的失败（对外只返回通用消息）。
	KindInternal Kind = iota
	// KindInvalidArgument 缺失或非法的请求参数（调用方的问题）。
	KindInvalidArgument
	// KindNotFound 引用的实体不存在。
	KindNotFound
	// KindUpstreamUnavailable 依赖的外部服务调用失败（调用方可重试）。
	KindUpstreamUnavailable
)

// Error 携带类别与安全消息的业务错误。
//
// Msg 是可以直接透出给客户端的安全文本；Err 是内部原因，
// 只用于日志，不允许出现在响应体里。
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// InvalidArgument 构造参数错误。
func InvalidArgument(msg string) *Error {
	return &Error{Kind: KindInvalidArgument, Msg: msg}
}

// NotFound 构造实体不存在错误。
func NotFound(msg string) *Error {
	return &Error{Kind: KindNotFound, Msg: msg}
}

// Upstream 构造外部服务失败错误，内部原因记入 err。
func Upstream(msg string, err error) *Error {
	return &Error{Kind: KindUpstreamUnavailable, Msg: msg, Err: err}
}

// Internal 构造内部错误，内部原因记入 err，对外只暴露 msg。
func Internal(msg string, err error) *Error {
	return &Error{Kind: KindInternal, Msg: msg, Err: err}
}

// KindOf 返回错误的类别；非 *Error 一律按 Internal 处理。
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Message 返回可以安全透出的消息；非 *Error 返回 fallback。
func Message(err error, fallback string) string {
	var e *Error
	if errors.As(err, &e) && e.Msg != "" {
		return e.Msg
	}
	return fallback
}
