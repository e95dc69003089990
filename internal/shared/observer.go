package shared

import "time"

// CommandObserver receives the outcome of every engine command.
type CommandObserver interface {
	ObserveCommand(command string, err error, elapsed time.Duration)
}

// Observe reports a command outcome when obs is configured and returns err untouched.
func Observe(obs CommandObserver, command string, start time.Time, err error) error {
	if obs != nil {
		obs.ObserveCommand(command, err, time.Since(start))
	}
	return err
}
