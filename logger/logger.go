// Package logger provides warp.Logger implementations.
package logger

import (
	"log/slog"

	"github.com/go-warp/warp"
)

// Nop returns a logger that discards everything.
func Nop() warp.Logger { return nop{} }

type nop struct{}

func (nop) LogRequest(string, warp.LogLevel, *warp.Request) error { return nil }

func (nop) LogResponse(_ string, _ warp.LogLevel, resp *warp.Response) (*warp.Response, error) {
	return resp, nil
}

// Slog returns a logger writing structured request/response lines through l.
// Bodies are logged only at warp.LogFull; since warp buffers bodies fully,
// the response is returned unchanged and stays consumable.
func Slog(l *slog.Logger) warp.Logger {
	return &slogLogger{l: l}
}

type slogLogger struct {
	l *slog.Logger
}

func (s *slogLogger) LogRequest(configKey string, level warp.LogLevel, req *warp.Request) error {
	if level == warp.LogNone {
		return nil
	}
	attrs := []interface{}{
		"config_key", configKey,
		"method", req.Method(),
		"url", req.URL(),
	}
	if level >= warp.LogHeaders {
		attrs = append(attrs, "headers", headerAttrs(req.Header()))
	}
	if level >= warp.LogFull && len(req.Body()) > 0 {
		attrs = append(attrs, "body", string(req.Body()))
	}
	s.l.Info("request", attrs...)
	return nil
}

func (s *slogLogger) LogResponse(configKey string, level warp.LogLevel, resp *warp.Response) (*warp.Response, error) {
	if level == warp.LogNone {
		return resp, nil
	}
	attrs := []interface{}{
		"config_key", configKey,
		"status", resp.Status(),
		"reason", resp.Reason(),
	}
	if level >= warp.LogHeaders {
		attrs = append(attrs, "headers", headerAttrs(resp.Header()))
	}
	if level >= warp.LogFull && len(resp.Body()) > 0 {
		attrs = append(attrs, "body", string(resp.Body()))
	}
	s.l.Info("response", attrs...)
	return resp, nil
}

func headerAttrs(header map[string][]string) []slog.Attr {
	attrs := make([]slog.Attr, 0, len(header))
	for k, vs := range header {
		attrs = append(attrs, slog.Any(k, vs))
	}
	return attrs
}
