package ndns

import (
	"io"

	"github.com/miekg/dns"
	"github.com/sirupsen/logrus"
)

// Log is the logger used throughout the package. Discards output by default;
// the CLI replaces it with a configured instance at the desired level.
var Log = newDiscardLogger()

func newDiscardLogger() *logrus.Logger {
	l := logrus.New()
	l.Out = io.Discard
	return l
}

// logger builds a log entry pre-populated with the fields useful to
// correlate a single query across the handler, DAP and resolver.
func logger(id string, q *dns.Msg, ci ClientInfo) *logrus.Entry {
	fields := logrus.Fields{"id": id, "listener": ci.Listener}
	if ci.SourceIP != nil {
		fields["client"] = ci.SourceIP.String()
	}
	if q != nil {
		fields["qname"] = qName(q)
		fields["qtype"] = qType(q)
	}
	return Log.WithFields(fields)
}
