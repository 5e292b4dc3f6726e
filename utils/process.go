package utils

import (
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
)

// Die logs messages and the error, then exits with status 1.
// Only for failures during startup.
func Die(err error, messages ...string) {
	for _, msg := range messages {
		log.Errorf("%s", msg)
	}
	log.Errorf("Reason: %s", err.Error())
	os.Exit(1)
}

// HandleInterrupts returns a channel notified on SIGINT or SIGTERM
func HandleInterrupts() chan os.Signal {
	c := make(chan os.Signal, 2)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	return c
}
