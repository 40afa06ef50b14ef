package domain

// StageName is one phase of the scripted interview.
type StageName string

const (
	StageIntroduction StageName = "introduction"
	StageTechnical    StageName = "technical"
	StageBehavioral   StageName = "behavioral"
	StageExperience   StageName = "experience"
	StageClosing      StageName = "closing"
)

// StageOrder is the fixed progression. The last entry is terminal.
var StageOrder = []StageName{
	StageIntroduction,
	StageTechnical,
	StageBehavioral,
	StageExperience,
	StageClosing,
}

// DefaultStageThreshold is the number of answered questions per stage.
const DefaultStageThreshold = 2

// InterviewStage tracks progress through StageOrder.
type InterviewStage struct {
	Current               StageName `json:"current"`
	QuestionsAskedInStage int       `json:"questions_asked_in_stage"`
	Threshold             int       `json:"threshold"`
}

// NewInterviewStage returns the initial stage. A non-positive threshold
// falls back to DefaultStageThreshold.
func NewInterviewStage(threshold int) InterviewStage {
	if threshold <= 0 {
		threshold = DefaultStageThreshold
	}
	return InterviewStage{Current: StageIntroduction, Threshold: threshold}
}

// Index returns the position of Current in StageOrder, or -1.
func (s InterviewStage) Index() int {
	for i, name := range StageOrder {
		if name == s.Current {
			return i
		}
	}
	return -1
}

// Terminal reports whether the stage has no successor.
func (s InterviewStage) Terminal() bool {
	return s.Current == StageOrder[len(StageOrder)-1]
}

// RecordAnswer returns the stage after one more answered question. When the
// counter reaches the threshold on a non-terminal stage it moves to the next
// stage and resets the counter. The terminal stage keeps counting.
func (s InterviewStage) RecordAnswer() InterviewStage {
	threshold := s.Threshold
	if threshold <= 0 {
		threshold = DefaultStageThreshold
	}
	next := s
	next.Threshold = threshold
	if next.Index() < 0 {
		next.Current = StageIntroduction
	}
	next.QuestionsAskedInStage++
	if next.QuestionsAskedInStage >= threshold && !next.Terminal() {
		next.Current = StageOrder[next.Index()+1]
		next.QuestionsAskedInStage = 0
	}
	return next
}
