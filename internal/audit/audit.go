package audit

import (
	"context"

	"github.com/itstarun264/eventsnap-stream/pkg/log"
)

// Audit actions for the stream hub.
const (
	ActionStartStream = "stream.start"
	ActionStopStream  = "stream.stop"
)

// FieldAction names the audited operation in each entry.
const FieldAction = "action"

// Log emits a structured audit log entry via the context logger.
func Log(ctx context.Context, action string, eventID string, msg string) {
	l := log.Ctx(ctx)
	l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, action).
		Str(log.FieldEventID, eventID).
		Msg(msg)
}
