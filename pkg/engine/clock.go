package engine

import "time"

// Timer manejador de un temporizador programado
type Timer interface {
	Stop() bool
}

// Clock programa callbacks diferidos. Se inyecta para poder probar los
// temporizadores sin esperar tiempo real.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// RealClock reloj del sistema
var RealClock Clock = realClock{}

func stopTimer(t *Timer) {
	if *t != nil {
		(*t).Stop()
		*t = nil
	}
}
