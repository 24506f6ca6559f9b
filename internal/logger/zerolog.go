package logger

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

type ZerologAdapter struct {
	logger zerolog.Logger
}

func NewZerolog(writer io.Writer, level zerolog.Level) *ZerologAdapter {
	logger := zerolog.New(writer).
		Level(level).
		With().
		Timestamp().
		Logger()

	return &ZerologAdapter{logger: logger}
}

// NewConsoleLogger writes human-readable lines to out, normally stderr so
// stdout stays free for usage text.
func NewConsoleLogger(out io.Writer, level zerolog.Level) *ZerologAdapter {
	if out == nil {
		out = os.Stderr
	}
	consoleWriter := zerolog.ConsoleWriter{Out: out, NoColor: true}
	return NewZerolog(consoleWriter, level)
}

func NewNop() *ZerologAdapter {
	return &ZerologAdapter{logger: zerolog.Nop()}
}

func (z *ZerologAdapter) Debug(component, message string, fields map[string]interface{}) {
	emit(z.logger.Debug(), component, message, fields)
}

func (z *ZerologAdapter) Info(component, message string, fields map[string]interface{}) {
	emit(z.logger.Info(), component, message, fields)
}

func (z *ZerologAdapter) Warning(component, message string, fields map[string]interface{}) {
	emit(z.logger.Warn(), component, message, fields)
}

func (z *ZerologAdapter) Error(component, message string, err error, fields map[string]interface{}) {
	emit(z.logger.Error().Err(err), component, message, fields)
}

// emit is a no-op when event is nil, which zerolog returns for filtered
// levels.
func emit(event *zerolog.Event, component, message string, fields map[string]interface{}) {
	if event == nil {
		return
	}
	event = event.Str("component", component)
	for k, v := range fields {
		event = event.Interface(k, v)
	}
	event.Msg(message)
}
