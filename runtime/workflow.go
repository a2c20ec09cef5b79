package runtime

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Definition is the declarative workflow document as authored.
type Definition struct {
	Workflow Metadata       `yaml:"workflow" json:"workflow"`
	Inputs   InputsSpec     `yaml:"inputs,omitempty" json:"inputs,omitempty"`
	Tasks    TaskSet        `yaml:"tasks" json:"tasks"`
	Flow     []FlowStep     `yaml:"flow" json:"flow"`
	Outputs  map[string]any `yaml:"outputs" json:"outputs"`
}

type Metadata struct {
	Name        string `yaml:"name" json:"name"`
	Version     string `yaml:"version" json:"version"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

// InputsSpec declares the shape of the triggering payload ($input).
type InputsSpec struct {
	Schema map[string]InputField `yaml:"schema,omitempty" json:"schema,omitempty"`
}

type InputField struct {
	Type        string                `yaml:"type" json:"type"`
	Description string                `yaml:"description,omitempty" json:"description,omitempty"`
	Required    bool                  `yaml:"required,omitempty" json:"required,omitempty"`
	Enum        []any                 `yaml:"enum,omitempty" json:"enum,omitempty"`
	Items       *InputField           `yaml:"items,omitempty" json:"items,omitempty"`
	Properties  map[string]InputField `yaml:"properties,omitempty" json:"properties,omitempty"`
}

type TaskDefinition struct {
	Description string         `yaml:"description,omitempty" json:"description,omitempty"`
	Action      string         `yaml:"action" json:"action"`
	Inputs      map[string]any `yaml:"inputs,omitempty" json:"inputs,omitempty"`
	// Outputs optionally reshapes the action result; expressions see it as $result.
	Outputs map[string]any `yaml:"outputs,omitempty" json:"outputs,omitempty"`
}

// FlowStep is one entry of the flow: either a task invocation (Do, optionally
// guarded by When) or a Conditional block.
type FlowStep struct {
	Do          string           `yaml:"do,omitempty" json:"do,omitempty"`
	When        string           `yaml:"when,omitempty" json:"when,omitempty"`
	Conditional *ConditionalStep `yaml:"conditional,omitempty" json:"conditional,omitempty"`

	// Recognised so they can be rejected with a clear message.
	Parallel any `yaml:"parallel,omitempty" json:"parallel,omitempty"`
	Loop     any `yaml:"loop,omitempty" json:"loop,omitempty"`
}

type ConditionalStep struct {
	Description string   `yaml:"description,omitempty" json:"description,omitempty"`
	When        []Branch `yaml:"when" json:"when"`
}

// Branch runs Steps when Condition is truthy. An Else branch has no condition
// and runs when no earlier branch matched.
type Branch struct {
	Condition string     `yaml:"condition,omitempty" json:"condition,omitempty"`
	Else      bool       `yaml:"else,omitempty" json:"else,omitempty"`
	Steps     []FlowStep `yaml:"steps" json:"steps"`
}

// TaskSet keeps tasks in document order and records duplicate names instead
// of silently keeping the last one.
type TaskSet struct {
	names      []string
	tasks      map[string]TaskDefinition
	duplicates []string
}

func NewTaskSet() TaskSet {
	return TaskSet{tasks: make(map[string]TaskDefinition)}
}

// Add appends a task. Adding an existing name records a duplicate.
func (s *TaskSet) Add(name string, task TaskDefinition) {
	if s.tasks == nil {
		s.tasks = make(map[string]TaskDefinition)
	}
	if _, exists := s.tasks[name]; exists {
		s.duplicates = append(s.duplicates, name)
		return
	}
	s.names = append(s.names, name)
	s.tasks[name] = task
}

func (s TaskSet) Get(name string) (TaskDefinition, bool) {
	t, ok := s.tasks[name]
	return t, ok
}

// Names returns task names in document order.
func (s TaskSet) Names() []string {
	return append([]string(nil), s.names...)
}

func (s TaskSet) Len() int {
	return len(s.names)
}

func (s TaskSet) Duplicates() []string {
	return append([]string(nil), s.duplicates...)
}

func (s *TaskSet) UnmarshalYAML(node *yaml.Node) error {
	*s = NewTaskSet()
	if node.Kind == yaml.ScalarNode && node.Tag == "!!null" {
		return nil
	}
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: tasks must be a mapping of task name to definition", node.Line)
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i], node.Content[i+1]
		var task TaskDefinition
		if err := value.Decode(&task); err != nil {
			return fmt.Errorf("task %q: %w", key.Value, err)
		}
		s.Add(key.Value, task)
	}
	return nil
}

func (s TaskSet) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, name := range s.names {
		var value yaml.Node
		if err := value.Encode(s.tasks[name]); err != nil {
			return nil, err
		}
		node.Content = append(node.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: name}, &value)
	}
	return node, nil
}

func (s TaskSet) MarshalJSON() ([]byte, error) {
	m := make(map[string]TaskDefinition, len(s.names))
	for _, name := range s.names {
		m[name] = s.tasks[name]
	}
	return json.Marshal(m)
}

// ParseDefinition decodes a YAML or JSON workflow document.
func ParseDefinition(data []byte) (*Definition, error) {
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("error unmarshalling workflow document: %w", err)
	}
	return &def, nil
}

// Marshal renders the definition back to YAML.
func (d *Definition) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("error marshalling workflow document: %w", err)
	}
	return data, nil
}
