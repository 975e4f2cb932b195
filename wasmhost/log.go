package wasmhost

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"

	"github.com/tetratelabs/wazero/api"
)

// logPayload is the JSON message guests send through log_message.
type logPayload struct {
	Level   string `json:"level"`
	Message string `json:"message"`
	Attrs   []struct {
		Key   string `json:"key"`
		Value string `json:"value"`
		Type  string `json:"type"`
	} `json:"attrs,omitempty"`
}

// logMessage implements the `log_message` host function. It receives a
// packed uint64 (ptr+len) pointing to a JSON-encoded logPayload and forwards
// it to the executor's logger. It does not return any value.
func (e *Executor) logMessage(ctx context.Context, mod api.Module, stack []uint64) {
	ptr, length := unpackPtrLen(stack[0])

	payload, ok := mod.Memory().Read(ptr, length)
	if !ok {
		e.logger.ErrorContext(ctx, "failed to read log message from guest memory",
			"ptr", ptr, "len", length)
		return
	}

	var msg logPayload
	if err := json.Unmarshal(payload, &msg); err != nil {
		e.logger.ErrorContext(ctx, "failed to unmarshal guest log message", "error", err)
		return
	}

	e.logger.LogAttrs(ctx, parseLogLevel(msg.Level), msg.Message, convertLogAttrs(msg)...)
}

// parseLogLevel converts a string level to slog.Level. Unknown levels fall
// back to info.
func parseLogLevel(levelStr string) slog.Level {
	level := slog.LevelInfo
	_ = level.UnmarshalText([]byte(levelStr))
	return level
}

func convertLogAttrs(msg logPayload) []slog.Attr {
	attrs := make([]slog.Attr, 0, len(msg.Attrs)+1)
	attrs = append(attrs, slog.String("source", "plugin"))
	for _, attr := range msg.Attrs {
		switch attr.Type {
		case "int64":
			if v, err := strconv.ParseInt(attr.Value, 10, 64); err == nil {
				attrs = append(attrs, slog.Int64(attr.Key, v))
				continue
			}
		case "bool":
			if v, err := strconv.ParseBool(attr.Value); err == nil {
				attrs = append(attrs, slog.Bool(attr.Key, v))
				continue
			}
		case "float64":
			if v, err := strconv.ParseFloat(attr.Value, 64); err == nil {
				attrs = append(attrs, slog.Float64(attr.Key, v))
				continue
			}
		}
		attrs = append(attrs, slog.String(attr.Key, attr.Value))
	}
	return attrs
}
