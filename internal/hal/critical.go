//go:build !tinygo

package hal

import "sync"

func newCriticalSection() CriticalSection {
	return &sync.Mutex{}
}
