package gear

// Arc power commands. They act on the fading engine only.

func cmdDirectArcPower(s *Session, f Frame) {
	if s.flags.has(flagDAPCSequence) {
		s.startFade(f.Data, dapcFadePeriod)
		s.nextAction = RequestTimer200ms
		return
	}
	s.processOutputChange(f.Data)
}

func cmdOff(s *Session, _ Frame) {
	s.limitError = false
	s.setLevel(0)
}

func cmdUp(s *Session, _ Frame) {
	if s.fade.current == 0 {
		return
	}
	s.startRateFade(s.maxLevel())
}

func cmdDown(s *Session, _ Frame) {
	if s.fade.current == 0 {
		return
	}
	s.startRateFade(s.minLevel())
}

func cmdStepUp(s *Session, _ Frame) {
	cur := s.fade.current
	if cur == 0 || cur >= s.maxLevel() {
		return
	}
	s.setLevel(cur + 1)
}

func cmdStepDown(s *Session, _ Frame) {
	cur := s.fade.current
	if cur == 0 || cur <= s.minLevel() {
		return
	}
	s.setLevel(cur - 1)
}

func cmdRecallMax(s *Session, _ Frame) {
	s.limitError = false
	s.setLevel(s.maxLevel())
}

func cmdRecallMin(s *Session, _ Frame) {
	s.limitError = false
	s.setLevel(s.minLevel())
}

func cmdStepDownAndOff(s *Session, _ Frame) {
	cur := s.fade.current
	switch {
	case cur == 0:
	case cur <= s.minLevel():
		s.setLevel(0)
	default:
		s.setLevel(cur - 1)
	}
}

func cmdOnAndStepUp(s *Session, _ Frame) {
	cur := s.fade.current
	switch {
	case cur == 0:
		s.setLevel(s.minLevel())
	case cur < s.maxLevel():
		s.setLevel(cur + 1)
	}
}

func cmdEnableDAPCSequence(s *Session, _ Frame) {
	s.flags.set(flagDAPCSequence)
	s.nextAction = RequestTimer200ms
}

func cmdGoToLastActiveLevel(s *Session, _ Frame) {
	s.processOutputChange(s.params.get(ParamLastActiveLevel))
}

func cmdGoToScene(s *Session, f Frame) {
	level := s.params.get(SceneParam(int(f.Data & 0x0F)))
	if level == Mask {
		return
	}
	s.processOutputChange(level)
}
