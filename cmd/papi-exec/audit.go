package main

import (
	"os"
	osuser "os/user"
	"time"

	"github.com/newtron-network/papibridge/pkg/audit"
	"github.com/newtron-network/papibridge/pkg/papi"
	"github.com/newtron-network/papibridge/pkg/settings"
	"github.com/newtron-network/papibridge/pkg/util"
)

var auditLogger *audit.FileLogger

// openAudit installs the execution history configured in s. Failing to
// open it only costs the history, never the command.
func openAudit(s *settings.Settings) {
	closeAudit()
	path := s.AuditLogPath(settingsPath)
	if path == "" {
		return
	}
	l, err := audit.NewFileLogger(path, audit.RotationConfig{
		MaxSize:    10 * 1024 * 1024, // 10MB
		MaxBackups: 5,
	})
	if err != nil {
		util.Warnf("Could not initialize audit logging: %v", err)
		return
	}
	auditLogger = l
	audit.SetDefaultLogger(l)
}

func closeAudit() {
	if auditLogger == nil {
		return
	}
	audit.SetDefaultLogger(nil)
	auditLogger.Close()
	auditLogger = nil
}

// record appends one execution to the history. resp may be nil when the
// batch never reached the remote side.
func record(cfg papi.Config, mode papi.Mode, names []string, start time.Time, resp *papi.Response, err error) {
	ev := audit.NewEvent(localUser(), cfg.Host, string(mode), names).
		WithNode(cfg.Node).
		WithDuration(time.Since(start))
	if resp != nil {
		ev.WithBatch(resp.BatchID, len(resp.Replies))
	}
	if err != nil {
		ev.WithError(err)
	} else {
		ev.WithSuccess()
	}
	if err := audit.Log(ev); err != nil {
		util.Warnf("audit: %v", err)
	}
}

func localUser() string {
	if u, err := osuser.Current(); err == nil {
		return u.Username
	}
	return os.Getenv("USER")
}
