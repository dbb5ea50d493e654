package pipeline

// State tracks a story's progress through the pipeline. One instance runs per
// triggering event; the arrival path ends at Submitted and the callback path
// picks up from there.
type State string

const (
	StateDetected          State = "Detected"
	StateSkipped           State = "Skipped"
	StateEligible          State = "Eligible"
	StateSubmitted         State = "Submitted"
	StateAnalysisComplete  State = "AnalysisComplete"
	StateMetadataExtracted State = "MetadataExtracted"
	StateInterestResolved  State = "InterestResolved"
	StateDelivered         State = "Delivered"
	StateFailed            State = "Failed"
)

// transitions is the legal successor set for each state.
var transitions = map[State][]State{
	StateDetected:          {StateSkipped, StateEligible},
	StateEligible:          {StateSubmitted},
	StateSubmitted:         {StateAnalysisComplete, StateFailed},
	StateAnalysisComplete:  {StateMetadataExtracted, StateFailed},
	StateMetadataExtracted: {StateInterestResolved},
	StateInterestResolved:  {StateDelivered},
}

// CanAdvanceTo reports whether next is a legal successor of s.
func (s State) CanAdvanceTo(next State) bool {
	for _, candidate := range transitions[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

// Terminal reports whether the state ends the pipeline instance.
func (s State) Terminal() bool {
	return len(transitions[s]) == 0
}
