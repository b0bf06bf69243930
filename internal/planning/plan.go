package planning

import "planforge/internal/catalog"

// Plan is an ordered task sequence plus its total cost. Tasks are stored in
// leaf-to-root order (most recent action first), so draining the sequence by
// popping from the tail yields correct first-to-last execution order with no
// separate reversal step. Callers that change the storage layout must keep
// that contract.
type Plan struct {
	Tasks []catalog.Task
	Cost  float64
}

func (p Plan) Len() int {
	return len(p.Tasks)
}

// Names lists task names in the stored leaf-to-root order.
func (p Plan) Names() []string {
	names := make([]string, 0, len(p.Tasks))
	for _, task := range p.Tasks {
		names = append(names, task.Name())
	}
	return names
}

// ExecutionStack flattens the plan into primitive task names arranged so
// that popping from the tail yields true execution order, including the
// internal steps of composite tasks.
func (p Plan) ExecutionStack() []string {
	var stack []string
	for _, task := range p.Tasks {
		steps := task.Decompose()
		for i := len(steps) - 1; i >= 0; i-- {
			stack = append(stack, steps[i])
		}
	}
	return stack
}
