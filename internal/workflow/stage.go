package workflow

// Stage identifies where a segment is in its lifecycle. Transitions are
// driven exclusively by the engine's transition logic — there is no routing
// by message content anywhere in the pipeline.
type Stage int

const (
	StageTranslate Stage = iota
	StageTagCheck
	StageQualityCheck
	StagePolish
	StageRestore
	StageDone
	StageFailed
)

var stageNames = map[Stage]string{
	StageTranslate:    "translate",
	StageTagCheck:     "tag_check",
	StageQualityCheck: "quality_check",
	StagePolish:       "polish",
	StageRestore:      "restore",
	StageDone:         "done",
	StageFailed:       "failed",
}

func (s Stage) String() string {
	if name, ok := stageNames[s]; ok {
		return name
	}
	return "unknown"
}

// Terminal reports whether no further transitions leave this stage.
func (s Stage) Terminal() bool {
	return s == StageDone || s == StageFailed
}
