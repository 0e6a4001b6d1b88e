package safety

// Logger is the minimal structured logging surface the wrapper uses.
// *slog.Logger satisfies it directly; the default is a no-op so the unsafe
// signal stays a silent side channel unless a consumer opts in.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
