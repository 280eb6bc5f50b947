package trace

import "errors"

type tee struct {
	tracers []Tracer
	level   Level
}

// Tee sends every event to all tracers. Its level is the most verbose of
// theirs; each tracer still filters by its own level.
func Tee(tracers ...Tracer) Tracer {
	t := &tee{}
	for _, tr := range tracers {
		if tr == nil || tr.Level() == LevelOff {
			continue
		}
		t.tracers = append(t.tracers, tr)
		t.level = max(t.level, tr.Level())
	}
	switch len(t.tracers) {
	case 0:
		return Nop
	case 1:
		return t.tracers[0]
	}
	return t
}

func (t *tee) Emit(ev *Event) {
	for _, tr := range t.tracers {
		cp := *ev
		tr.Emit(&cp)
	}
}

func (t *tee) Flush() error {
	var errs []error
	for _, tr := range t.tracers {
		errs = append(errs, tr.Flush())
	}
	return errors.Join(errs...)
}

func (t *tee) Close() error {
	var errs []error
	for _, tr := range t.tracers {
		errs = append(errs, tr.Close())
	}
	return errors.Join(errs...)
}

func (t *tee) Level() Level  { return t.level }
func (t *tee) Enabled() bool { return t.level > LevelOff }
