package vm

// ---------------------------------------------------------------------------
// Multi-step system procedures
// ---------------------------------------------------------------------------

// procedureSteps is the fixed step order of each procedure.
var procedureSteps = [...][]Step{
	ProcReturnToMenu: {StepDispOff, StepWipe, StepFlushSave, StepResetLocal, StepJumpMenu, StepRestartTimer},
	ProcReturnToSel:  {StepWipe, StepRestoreSel, StepRestartTimer},
	ProcEndGame:      {StepWipe, StepFlushSave, StepEndSave, StepHalt},
	ProcEndLoad:      {StepWipe, StepLoadEndSave, StepRestartTimer},
}

var procedureFeature = [...]Feature{
	ProcReturnToMenu: FeatureReturnMenu,
	ProcReturnToSel:  FeatureReturnSel,
	ProcEndGame:      FeatureEndGame,
	ProcEndLoad:      FeatureLoad,
}

var procedureFlush = [...]FlushPoint{
	ProcReturnToMenu: FlushReturnMenu,
	ProcEndGame:      FlushEndGame,
}

// runProcedure runs every step of p in order. Each step is reported to
// the host and its VM effect applied at once. It reports whether the
// continuation was replaced. Nothing runs inside a frame action, while
// the procedure's feature is disabled, or when the state it restores
// does not exist.
func (v *VM) runProcedure(p Procedure) bool {
	if v.inFrameAction > 0 {
		v.scriptError(UnsupportedCommand, "%s inside a frame action", p)
		return false
	}
	if !v.features.enabled(procedureFeature[p]) {
		log.Debugf("%s disabled", p)
		return false
	}
	switch {
	case p == ProcReturnToSel && v.selPoint == nil:
		return false
	case p == ProcEndLoad && v.endSave == nil:
		return false
	}
	log.Infof("procedure %s", p)
	replaced := false
	for _, step := range procedureSteps[p] {
		v.host.OnProcedure(p, step)
		if !v.applyStep(p, step) {
			break
		}
		switch step {
		case StepResetLocal, StepRestoreSel, StepLoadEndSave:
			replaced = true
		}
	}
	return replaced
}

// applyStep applies the VM side of one step. False abandons the rest of
// the procedure.
func (v *VM) applyStep(p Procedure, step Step) bool {
	switch step {
	case StepFlushSave:
		v.host.OnSaveFlush(procedureFlush[p])
	case StepResetLocal:
		v.resetLocal()
		v.selPoint = nil
		v.history.clear()
		v.resetPresentation()
	case StepJumpMenu:
		if v.cfg.MenuScene == "" {
			v.stop(StatusReturnMenu)
			return false
		}
		prog, ok := v.sceneEntry(v.cfg.MenuScene, v.cfg.MenuZ)
		if !ok {
			v.stop(StatusReturnMenu)
			return false
		}
		if err := v.enterScene(prog, v.cfg.MenuZ); err != nil {
			v.fault = err
			return false
		}
	case StepRestoreSel:
		sel := v.selPoint
		if err := v.RestoreLocal(sel); err != nil {
			v.scriptError(StateRejected, "selection point: %v", err)
			return false
		}
		v.selPoint = sel
	case StepEndSave:
		v.endSave = v.EndSaveState()
		v.host.OnSaveFlush(FlushEndSave)
	case StepLoadEndSave:
		if err := v.RestoreEndSave(v.endSave); err != nil {
			v.scriptError(StateRejected, "end-save: %v", err)
			return false
		}
	case StepRestartTimer:
		v.restartTimers()
	case StepHalt:
		v.stop(StatusEndGame)
	}
	return true
}

// RunProcedure runs a procedure on behalf of the host, as the matching
// syscom command would, between runs.
func (v *VM) RunProcedure(p Procedure) bool {
	if p < 0 || int(p) >= len(procedureSteps) {
		return false
	}
	return v.runProcedure(p)
}
