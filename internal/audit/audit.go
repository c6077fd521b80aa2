package audit

import (
	"context"

	"github.com/weiawesome/chat-client/internal/domain"
	"github.com/weiawesome/chat-client/pkg/log"
)

// Audit actions for session transitions.
const (
	ActionSignup      = "session.signup"
	ActionLogin       = "session.login"
	ActionLoginFailed = "session.login_failed"
	ActionLogout      = "session.logout"
	ActionRestore     = "session.restore"
	ActionExpired     = "session.expired"
	ActionEnd         = "session.end"
)

// Field constants for audit entries.
const (
	FieldAction = "action"
	FieldDetail = "detail"
)

// Log emits a structured audit log entry via the context logger.
func Log(ctx context.Context, action string, userID domain.ID, msg string) {
	l := log.Ctx(ctx)
	l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, action).
		Int64(log.FieldUserID, int64(userID)).
		Msg(msg)
}

// LogWithDetail emits an audit log with extra detail field.
func LogWithDetail(ctx context.Context, action string, userID domain.ID, detail string, msg string) {
	l := log.Ctx(ctx)
	l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, action).
		Int64(log.FieldUserID, int64(userID)).
		Str(FieldDetail, detail).
		Msg(msg)
}
