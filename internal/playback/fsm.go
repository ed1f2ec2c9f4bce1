package playback

import "github.com/rendis/playback/pkg/schema"

// ValidNodeTransitions lists the node state changes playback may perform.
// Terminal states only re-enter executing when a trace revisits the node.
var ValidNodeTransitions = map[schema.NodeState][]schema.NodeState{
	schema.NodeStateIdle:      {schema.NodeStateExecuting},
	schema.NodeStateExecuting: {schema.NodeStateCompleted, schema.NodeStateError},
	schema.NodeStateCompleted: {schema.NodeStateExecuting},
	schema.NodeStateError:     {schema.NodeStateExecuting},
}

func isValidNodeTransition(from, to schema.NodeState) bool {
	for _, a := range ValidNodeTransitions[from] {
		if a == to {
			return true
		}
	}
	return false
}

// finishedState maps a step outcome to the state its node ends in.
func finishedState(step schema.Step) schema.NodeState {
	if step.Failed() {
		return schema.NodeStateError
	}
	return schema.NodeStateCompleted
}
