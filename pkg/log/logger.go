package log

// Logger receives protocol events. Implementations must be safe for
// concurrent use and must not block: sessions call Log on their reader
// goroutine.
type Logger interface {
	Log(event Event)
}

// NoopLogger discards every event. The zero value is ready to use.
type NoopLogger struct{}

func (NoopLogger) Log(Event) {}

// LoggerFunc adapts a function to Logger.
type LoggerFunc func(Event)

func (f LoggerFunc) Log(e Event) { f(e) }

// MultiLogger fans events out to several loggers in order.
type MultiLogger []Logger

// NewMultiLogger returns a MultiLogger over loggers, skipping nils.
func NewMultiLogger(loggers ...Logger) MultiLogger {
	m := make(MultiLogger, 0, len(loggers))
	for _, l := range loggers {
		if l != nil {
			m = append(m, l)
		}
	}
	return m
}

func (m MultiLogger) Log(e Event) {
	for _, l := range m {
		l.Log(e)
	}
}

var (
	_ Logger = NoopLogger{}
	_ Logger = LoggerFunc(nil)
	_ Logger = MultiLogger(nil)
)
