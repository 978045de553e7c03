package log

import (
	"io"

	"github.com/rs/zerolog"

	"github.com/YuminosukeSato/intelliml/pkg/errors"
)

// BridgeWarnings sends every errors.Warn call to a zerolog logger writing
// JSON lines to w. Warnings that implement zerolog.LogObjectMarshaler are
// logged with their structured fields.
func BridgeWarnings(w io.Writer) {
	zl := zerolog.New(w).With().Timestamp().Str(ComponentKey, "warnings").Logger()
	errors.SetZerologWarnFunc(func(warning error) {
		ev := zl.Warn()
		if m, ok := warning.(zerolog.LogObjectMarshaler); ok {
			ev = ev.Object("warning", m)
		}
		ev.Msg(warning.Error())
	})
}
