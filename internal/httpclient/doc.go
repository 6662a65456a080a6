// Package httpclient 提供访问生成 provider 的 HTTP 客户端：
// TLS 1.2+ 且仅 AEAD 密码套件，并通过 LoggingTransport 记录结构化请求日志。
package httpclient
