package availability

import (
	"context"
	"errors"
)

type multiLog struct {
	logs []AuditLog
}

// MultiLog returns an AuditLog that appends every entry to each of logs. Nil logs are skipped;
// a failure in one log does not stop delivery to the others.
func MultiLog(logs ...AuditLog) AuditLog {
	var kept []AuditLog
	for _, l := range logs {
		if l != nil {
			kept = append(kept, l)
		}
	}
	return &multiLog{logs: kept}
}

func (m *multiLog) Append(ctx context.Context, entry ValidationLogEntry) error {
	var errs []error
	for _, l := range m.logs {
		if err := l.Append(ctx, entry); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
