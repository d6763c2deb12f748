package port

// Fields carries structured data into a log entry.
type Fields map[string]interface{}

// LoggerPort is the contract every logging backend implements.
type LoggerPort interface {
	Debug(msg string, fields Fields)
	Info(msg string, fields Fields)
	Warn(msg string, fields Fields)
	Error(msg string, err error, fields Fields)

	// WithFields returns a logger with the given fields already attached.
	WithFields(fields Fields) LoggerPort
}
