package logger

import (
	"strings"

	"github.com/nulzo/reliability-forge/internal/cli"
	"go.uber.org/zap/buffer"
	"go.uber.org/zap/zapcore"
)

var pool = buffer.NewPool()

// coloredConsoleEncoder highlights the trailing JSON field blob of a console line.
type coloredConsoleEncoder struct {
	zapcore.Encoder
}

func NewColoredConsoleEncoder(cfg zapcore.EncoderConfig) zapcore.Encoder {
	return &coloredConsoleEncoder{Encoder: zapcore.NewConsoleEncoder(cfg)}
}

func (c *coloredConsoleEncoder) Clone() zapcore.Encoder {
	return &coloredConsoleEncoder{Encoder: c.Encoder.Clone()}
}

func (c *coloredConsoleEncoder) EncodeEntry(ent zapcore.Entry, fields []zapcore.Field) (*buffer.Buffer, error) {
	buf, err := c.Encoder.EncodeEntry(ent, fields)
	if err != nil {
		return nil, err
	}

	// console lines look like "TIME LEVEL caller MSG\t{fields}"
	line := buf.String()
	idx := strings.Index(line, "\t{")
	if idx < 0 {
		return buf, nil
	}

	out := pool.Get()
	out.AppendString(line[:idx+1])
	out.AppendString(cli.HighlightJSON(line[idx+1:]))
	buf.Free()
	return out, nil
}
