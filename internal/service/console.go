package service

// Console returns the built-in login unit for the given terminal. It rides
// the same spawn and reap path as any other service: always restarted, shell
// falls back to a login shell when /bin/login is unavailable.
func Console(tty string) *Service {
	return &Service{
		Name:    "getty",
		Command: "exec /bin/login || exec /bin/sh -l",
		Restart: RestartAlways,
		Console: true,
		TTY:     tty,
	}
}
