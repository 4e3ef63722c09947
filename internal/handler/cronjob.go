package handler

// cronjob is a scheduled callback registered via RegisterCronjob,
// equivalent to a method decorated with pyspider's every(minutes,
// seconds) (§4.3, §9 "cronjob class-level collection").
type cronjob struct {
	name   string
	period int64 // seconds
	fn     func(tick int64)
}

func gcd(a, b int64) int64 {
	for b != 0 {
		a, b = b, a%b
	}
	if a < 0 {
		return -a
	}
	return a
}

// RegisterCronjob adds a scheduled callback with the given period
// (minutes*60+seconds) and recomputes MinTick as the gcd of every
// registered period. This replaces the Python metaclass's class-body
// collection with explicit registration at harness-construction time
// (§9, option (a)).
func (h *Harness) RegisterCronjob(name string, minutes, seconds float64, fn func(tick int64)) {
	period := int64(minutes*60 + seconds)
	if period <= 0 {
		period = 1
	}
	h.cronjobs = append(h.cronjobs, cronjob{name: name, period: period, fn: fn})

	tick := h.cronjobs[0].period
	for _, c := range h.cronjobs[1:] {
		tick = gcd(tick, c.period)
	}
	h.minTick = tick
}

// MinTick is the gcd of every registered cronjob's period, in seconds.
func (h *Harness) MinTick() int64 { return h.minTick }

// runCronjobs invokes every registered cronjob whose period divides
// tick, mirroring pyspider's _on_cronjob.
func (h *Harness) runCronjobs(tick int64) {
	for _, c := range h.cronjobs {
		if tick%c.period == 0 {
			c.fn(tick)
		}
	}
}
