package gear

import (
	"math"
	"time"
)

// fadeTimes maps a fade time code to the total transition duration.
var fadeTimes = [16]time.Duration{
	0,
	707 * time.Millisecond,
	1000 * time.Millisecond,
	1414 * time.Millisecond,
	2000 * time.Millisecond,
	2828 * time.Millisecond,
	4000 * time.Millisecond,
	5657 * time.Millisecond,
	8000 * time.Millisecond,
	11314 * time.Millisecond,
	16000 * time.Millisecond,
	22627 * time.Millisecond,
	32000 * time.Millisecond,
	45255 * time.Millisecond,
	64000 * time.Millisecond,
	90510 * time.Millisecond,
}

// fadeRateSteps maps a fade rate code to the time between two steps.
// Code 1 is 357.796 steps/s, code 15 is 2.795 steps/s.
var fadeRateSteps = [16]time.Duration{
	0,
	2795 * time.Microsecond,
	3953 * time.Microsecond,
	5590 * time.Microsecond,
	7905 * time.Microsecond,
	11180 * time.Microsecond,
	15810 * time.Microsecond,
	22359 * time.Microsecond,
	31621 * time.Microsecond,
	44719 * time.Microsecond,
	63239 * time.Microsecond,
	89437 * time.Microsecond,
	126486 * time.Microsecond,
	178859 * time.Microsecond,
	252972 * time.Microsecond,
	357782 * time.Microsecond,
}

// extendedFadeMultipliers is indexed by bits 4-6 of the extended fade time.
var extendedFadeMultipliers = [5]time.Duration{
	0,
	100 * time.Millisecond,
	time.Second,
	10 * time.Second,
	time.Minute,
}

const (
	fastFadeMultiplier = 25 * time.Millisecond
	rateFadePeriod     = 200 * time.Millisecond
	dapcFadePeriod     = 200 * time.Millisecond

	// MaxLevel is the highest arc power level.
	MaxLevel byte = 254
)

// fadeState is the light output interpolation state.
type fadeState struct {
	current   byte
	requested byte

	// period is the total duration of a time fade or the remaining
	// duration of a rate fade.
	period time.Duration

	// increment is the time per step (period/distance for time fades).
	increment time.Duration

	distance int64
	// acc accumulates elapsed time. Time fades scale it by distance so the
	// last step lands exactly when the period is exhausted.
	acc int64

	up       bool
	rateMode bool
	running  bool
}

func (f *fadeState) finish() {
	f.period = 0
	f.increment = 0
	f.distance = 0
	f.acc = 0
	f.rateMode = false
	f.running = false
}

// FadeTime returns the duration of a fade time code.
func FadeTime(code byte) time.Duration {
	return fadeTimes[code&0x0F]
}

// FadeRateStep returns the time between two steps of a fade rate code.
func FadeRateStep(code byte) time.Duration {
	return fadeRateSteps[code&0x0F]
}

// ExtendedFadeTime decodes an extended fade time byte (base in bits 0-3,
// multiplier in bits 4-6). Invalid multipliers yield zero.
func ExtendedFadeTime(v byte) time.Duration {
	mult := (v >> 4) & 0x07
	if mult == 0 || int(mult) >= len(extendedFadeMultipliers) {
		return 0
	}
	return time.Duration(v&0x0F+1) * extendedFadeMultipliers[mult]
}

func (s *Session) minLevel() byte { return s.params.get(ParamMinLevel) }
func (s *Session) maxLevel() byte { return s.params.get(ParamMaxLevel) }

// fadePeriod selects the transition time for arc power changes.
func (s *Session) fadePeriod() time.Duration {
	if ft := s.params.get(ParamFadeTime); ft != 0 {
		return FadeTime(ft)
	}
	if fast := s.params.get(ParamFastFadeTime); fast != 0 {
		return time.Duration(fast) * fastFadeMultiplier
	}
	return ExtendedFadeTime(s.params.get(ParamExtendedFadeTime))
}

// clampLevel limits a requested level to [min,max]. 0 and Mask pass through.
func (s *Session) clampLevel(level byte) (byte, bool) {
	if level == 0 || level == Mask {
		return level, false
	}
	if lo := s.minLevel(); level < lo {
		return lo, true
	}
	if hi := s.maxLevel(); level > hi {
		return hi, true
	}
	return level, false
}

// processOutputChange starts a transition to level using the configured
// fade time, or applies it at once when there is nothing to interpolate.
func (s *Session) processOutputChange(level byte) {
	s.startFade(level, s.fadePeriod())
}

func (s *Session) startFade(level byte, period time.Duration) {
	if level == Mask {
		s.stopFade()
		return
	}

	level, clamped := s.clampLevel(level)
	s.limitError = clamped
	s.fade.finish()
	s.fade.requested = level
	if level != 0 {
		s.params.set(ParamLastActiveLevel, level)
	}

	cur := s.fade.current
	lo := int64(s.minLevel())
	var distance int64
	switch {
	case cur == 0 && level != 0:
		distance = int64(level) - lo
	case cur != 0 && level == 0:
		distance = int64(cur) - lo + 1
	default:
		distance = int64(level) - int64(cur)
		if distance < 0 {
			distance = -distance
		}
	}

	if distance <= 0 || period <= 0 {
		s.setLevel(level)
		return
	}

	s.fade.up = level > cur
	s.fade.period = period
	s.fade.distance = distance
	s.fade.increment = period / time.Duration(distance)
	s.fade.running = true
}

// startRateFade moves towards target at the configured fade rate for 200 ms.
func (s *Session) startRateFade(target byte) {
	s.fade.finish()
	s.limitError = false
	rate := s.params.get(ParamFadeRate)
	if rate == 0 {
		rate = 1
	}
	s.fade.requested = target
	s.fade.up = target > s.fade.current
	s.fade.period = rateFadePeriod
	s.fade.increment = FadeRateStep(rate)
	s.fade.rateMode = true
	s.fade.running = true
}

func (s *Session) stopFade() {
	s.fade.requested = s.fade.current
	s.fade.finish()
}

// setLevel applies a level immediately.
func (s *Session) setLevel(level byte) {
	s.fade.requested = level
	s.fade.finish()
	s.writeLevel(level)
}

func (s *Session) writeLevel(level byte) {
	if s.fade.current == level {
		return
	}
	s.fade.current = level
	s.applyOutput()
}

func (s *Session) applyOutput() {
	if s.out == nil {
		return
	}
	s.out.SetLightLevelPercent(s.levelToOutput(s.fade.current))
}

// tickFade advances the fade by elapsed.
func (s *Session) tickFade(elapsed time.Duration) {
	if !s.fade.running || elapsed <= 0 {
		return
	}
	if s.fade.rateMode {
		s.tickRate(elapsed)
		return
	}
	s.tickTime(elapsed)
}

func (s *Session) tickTime(elapsed time.Duration) {
	f := &s.fade
	next := f.current
	if f.up && next == 0 {
		next = s.minLevel()
	}

	f.acc += int64(elapsed) * f.distance
	threshold := int64(f.period)
	for f.acc >= threshold && next != f.requested {
		f.acc -= threshold
		next = s.stepToward(next, f.requested, f.up)
	}
	s.writeLevel(next)

	if f.current == f.requested {
		f.finish()
	}
}

func (s *Session) tickRate(elapsed time.Duration) {
	f := &s.fade
	next := f.current
	f.acc += int64(elapsed)
	step := int64(f.increment)
	for step > 0 && f.acc >= step {
		f.acc -= step
		if next != f.requested {
			next = s.stepToward(next, f.requested, f.up)
		}
	}
	s.writeLevel(next)

	f.period -= elapsed
	if f.period <= 0 {
		f.finish()
	}
}

// stepToward moves one level. Moving down continues below the minimum
// level only when the target is off.
func (s *Session) stepToward(level, target byte, up bool) byte {
	if up {
		if level < target {
			return level + 1
		}
		return level
	}
	lo := s.minLevel()
	switch {
	case level > lo && level > target:
		return level - 1
	case target == 0:
		return 0
	default:
		return level
	}
}

// levelToOutput converts an arc power level to hundredths of a percent
// using the selected dimming curve.
func (s *Session) levelToOutput(level byte) uint16 {
	if s.params.get(ParamDimmingCurve) == DimmingLinear {
		return LinearOutput(level)
	}
	return LogarithmicOutput(level)
}

// Dimming curves.
const (
	DimmingLogarithmic byte = 0
	DimmingLinear      byte = 1
)

// LogarithmicOutput maps a level to output on the standard curve
// (level 1 = 0.1 %, level 254 = 100 %).
func LogarithmicOutput(level byte) uint16 {
	if level == 0 {
		return 0
	}
	if level >= MaxLevel {
		return 10000
	}
	pct := math.Pow(10, (float64(level)-1)*3/253-1)
	return uint16(math.Round(pct * 100))
}

// LinearOutput maps a level proportionally to output.
func LinearOutput(level byte) uint16 {
	if level >= MaxLevel {
		return 10000
	}
	return uint16(uint32(level) * 10000 / uint32(MaxLevel))
}
