package rcon

import (
	"context"
	"errors"
)

// ErrorKind 稳定的错误类型标识，供调用方渲染提示和记录审计
type ErrorKind string

const (
	KindNone              ErrorKind = ""
	KindConnectionRefused ErrorKind = "CONNECTION_REFUSED"
	KindConnectTimeout    ErrorKind = "CONNECT_TIMEOUT"
	KindAuthFailed        ErrorKind = "AUTH_FAILED"
	KindTimeout           ErrorKind = "TIMEOUT"
	KindConnectionLost    ErrorKind = "CONNECTION_LOST"
	KindMalformedFrame    ErrorKind = "MALFORMED_FRAME"
	KindPayloadTooLarge   ErrorKind = "PAYLOAD_TOO_LARGE"
	KindProtocolError     ErrorKind = "PROTOCOL_ERROR"
	KindCanceled          ErrorKind = "CANCELED"
	KindInvalidArgument   ErrorKind = "INVALID_ARGUMENT"
	KindUnknown           ErrorKind = "UNKNOWN"
)

var (
	ErrConnectionRefused = errors.New("RCON连接被拒绝")
	ErrConnectTimeout    = errors.New("RCON连接超时")
	ErrAuthFailed        = errors.New("RCON认证失败")
	ErrTimeout           = errors.New("RCON命令超时")
	ErrConnectionLost    = errors.New("RCON连接中断")
	ErrMalformedFrame    = errors.New("RCON数据帧格式错误")
	ErrPayloadTooLarge   = errors.New("RCON负载过大")
	ErrProtocol          = errors.New("RCON协议错误")
)

var kindTable = []struct {
	err  error
	kind ErrorKind
}{
	{ErrAuthFailed, KindAuthFailed},
	{ErrConnectionRefused, KindConnectionRefused},
	{ErrConnectTimeout, KindConnectTimeout},
	{ErrTimeout, KindTimeout},
	{ErrConnectionLost, KindConnectionLost},
	{ErrMalformedFrame, KindMalformedFrame},
	{ErrPayloadTooLarge, KindPayloadTooLarge},
	{ErrProtocol, KindProtocolError},
	{context.Canceled, KindCanceled},
	{context.DeadlineExceeded, KindTimeout},
}

// KindOf 返回错误对应的 ErrorKind，nil 返回 KindNone
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindNone
	}
	for _, entry := range kindTable {
		if errors.Is(err, entry.err) {
			return entry.kind
		}
	}
	return KindUnknown
}

// Retryable 报告该类错误是否值得重连后重试一次
func (k ErrorKind) Retryable() bool {
	return k == KindConnectionLost || k == KindTimeout
}

// Message 面向用户的错误提示
func (k ErrorKind) Message() string {
	switch k {
	case KindNone:
		return ""
	case KindConnectionRefused, KindConnectTimeout:
		return "服务器无法连接"
	case KindAuthFailed:
		return "RCON认证失败，请检查 RCON_PASSWORD"
	case KindTimeout:
		return "服务器响应超时"
	case KindConnectionLost:
		return "与服务器的连接已中断"
	case KindMalformedFrame, KindProtocolError:
		return "服务器返回了无法识别的数据"
	case KindPayloadTooLarge:
		return "命令过长"
	case KindCanceled:
		return "请求已取消"
	case KindInvalidArgument:
		return "参数无效"
	default:
		return "未知错误"
	}
}
