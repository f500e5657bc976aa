package safe

import (
	"CampusLink/logger"
)

// Go starts a goroutine that recovers from panic, so a misbehaving handler
// never takes down the coordinator process.
func Go(f func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Errorf("[safe.Go] panic recovered: %v", r)
			}
		}()
		f()
	}()
}
