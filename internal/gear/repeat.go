package gear

// handleFrame runs one received frame through repeat arbitration, the
// resolver and the selected handler.
func (s *Session) handleFrame(f Frame) Result {
	if !s.enabled || s.state != stateIdle {
		s.stats.FramesIgnored++
		return Result{Action: NoAction}
	}
	s.stats.FramesReceived++
	s.previous, s.frame = s.frame, f

	appExt := s.flags.has(flagAppExtensionRequested)
	s.flags.clear(flagAppExtensionRequested)

	if s.flags.has(flagRepeatTimerRequested) {
		// ENABLE DEVICE TYPE may precede each instance of an extended command.
		if f.Address == SpecialEnableDeviceType && s.pending.IsExtended() {
			return s.execute(specialTable[f.specialIndex()], f)
		}
		entry := s.pendingEntry
		s.clearPending()
		if entry != nil && f == s.pending {
			s.stats.RepeatsAccepted++
			res := s.execute(entry, f)
			if res.Action == EnableReceive {
				res.Action = ClearAllTimers
			}
			return res
		}
		// Any other frame cancels the pending command and is processed on its own.
		s.stats.RepeatsDropped++
	}

	entry, addressed := s.resolve(f, appExt)
	if !addressed {
		s.stats.FramesIgnored++
		return Result{Action: NoAction}
	}
	if entry == nil {
		s.flags.clear(flagDAPCSequence)
		s.endCommand(nil)
		s.stats.FramesIgnored++
		return Result{Action: EnableReceive}
	}

	if entry.repeat {
		if !s.flags.has(flagForcedMessage) {
			s.pending = f
			s.pendingEntry = entry
			s.flags.set(flagRepeatTimerRequested)
			s.flags.clear(flagDAPCSequence)
			if !entry.keepWriteEnable {
				s.flags.clear(flagWriteMemoryEnabled)
			}
			return Result{Action: RequestTimer100ms}
		}
		// The bypass is spent only on a command that needed it.
		s.flags.clear(flagForcedMessage)
	}
	return s.execute(entry, f)
}

// execute applies gating, runs the handler and turns its outcome into an Action.
func (s *Session) execute(e *commandEntry, f Frame) Result {
	if !e.dapc {
		s.flags.clear(flagDAPCSequence)
	}
	if e.gated && !s.windowOpen() {
		s.endCommand(e)
		s.stats.FramesIgnored++
		return Result{Action: EnableReceive}
	}

	s.response = 0
	s.flags.clear(flagResponseRequested)
	s.nextAction = NoAction
	if e.handler != nil {
		e.handler(s, f)
	}
	s.endCommand(e)
	s.stats.FramesExecuted++

	switch e.response {
	case ResponseNone:
		s.flags.clear(flagResponseRequested)
	case ResponseAlways:
		s.flags.set(flagResponseRequested)
	}

	if s.flags.has(flagResponseRequested) {
		s.flags.clear(flagResponseRequested)
		s.state = stateAwaitingTransmitDone
		s.stats.Responses++
		return Result{Action: TransmitResponse, Response: s.response}
	}
	if s.nextAction != NoAction {
		return Result{Action: s.nextAction}
	}
	return Result{Action: EnableReceive}
}

// endCommand drops ENABLE WRITE MEMORY after any command that does not
// belong to a memory access sequence.
func (s *Session) endCommand(e *commandEntry) {
	if e == nil || !e.keepWriteEnable {
		s.flags.clear(flagWriteMemoryEnabled)
	}
}

func (s *Session) clearPending() {
	s.flags.clear(flagRepeatTimerRequested)
	s.pendingEntry = nil
}

// handleTimeout processes a timer expiry. Expiries whose flag has already
// been cleared are stale and ignored.
func (s *Session) handleTimeout(id TimerID) Result {
	if !s.enabled {
		return Result{Action: NoAction}
	}
	switch id {
	case TimerRepeat:
		if !s.flags.has(flagRepeatTimerRequested) {
			return Result{Action: NoAction}
		}
		s.clearPending()
		s.stats.RepeatsDropped++
		return Result{Action: EnableReceive}
	case TimerDAPC:
		s.flags.clear(flagDAPCSequence)
	case TimerInitialise:
		if s.windowOpen() {
			s.closeWindow()
		}
	}
	return Result{Action: NoAction}
}

func (s *Session) handleTransmitDone() Result {
	if s.state != stateAwaitingTransmitDone {
		return Result{Action: NoAction}
	}
	s.state = stateIdle
	return Result{Action: EnableReceive}
}
