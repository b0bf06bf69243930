// Package catalog holds what an agent can do: task identity, behavior
// descriptors, and the registry that maps one to the other.
package catalog

// Task identifies a unit of behavior. A primitive task is a leaf action; a
// composite task is a named ordered sequence of sub-tasks with no behavior
// descriptor of its own — its effective conditions are derived by the
// registry from its parts.
type Task struct {
	name string
	subs []Task
}

func Primitive(name string) Task {
	return Task{name: name}
}

func Composite(name string, subs ...Task) Task {
	return Task{name: name, subs: subs}
}

func (t Task) Name() string {
	return t.name
}

func (t Task) IsPrimitive() bool {
	return t.subs == nil
}

func (t Task) Subtasks() []Task {
	return t.subs
}

// Decompose flattens the task into primitive task names in execution order.
func (t Task) Decompose() []string {
	if t.IsPrimitive() {
		return []string{t.name}
	}
	var names []string
	for _, sub := range t.subs {
		names = append(names, sub.Decompose()...)
	}
	return names
}

// DecomposeAll flattens a task sequence into primitive names in order.
func DecomposeAll(tasks []Task) []string {
	var names []string
	for _, task := range tasks {
		names = append(names, task.Decompose()...)
	}
	return names
}
