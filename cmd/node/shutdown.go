package main

import "time"

// waitStopped reports whether done closed within grace
func waitStopped(done <-chan struct{}, grace time.Duration) bool {
	select {
	case <-done:
		return true
	case <-time.After(grace):
		return false
	}
}
