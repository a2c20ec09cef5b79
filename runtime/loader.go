package runtime

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"
	"gopkg.in/yaml.v3"

	"github.com/hexastack/agentic/runtime/expr"
	"github.com/hexastack/agentic/runtime/schema"
)

// Workflow is a validated, compiled workflow definition. It is immutable and
// shared by every run of the workflow.
type Workflow struct {
	name        string
	version     string
	description string
	source      []byte
	definition  *Definition

	inputSchema *schema.Compiled
	tasks       map[string]*task
	flow        []*step
	outputs     *expr.Template
}

type task struct {
	name        string
	description string
	action      string
	inputs      *expr.Template
	outputs     *expr.Template
}

// step is a compiled flow entry: a task invocation or a conditional block.
type step struct {
	id       string
	task     string
	when     *expr.Expression
	branches []*branch
}

type branch struct {
	condition *expr.Expression // nil for else
	steps     []*step
}

func (w *Workflow) Name() string        { return w.name }
func (w *Workflow) Version() string     { return w.version }
func (w *Workflow) Description() string { return w.description }

// Source returns the serialized document the workflow was loaded from.
func (w *Workflow) Source() []byte {
	return append([]byte(nil), w.source...)
}

// Definition returns the authored document. Callers must treat it as read-only.
func (w *Workflow) Definition() *Definition {
	return w.definition
}

// Tasks returns the task names in document order.
func (w *Workflow) Tasks() []string {
	return w.definition.Tasks.Names()
}

// Actions returns the distinct action names the workflow uses.
func (w *Workflow) Actions() []string {
	seen := make(map[string]bool)
	var out []string
	for _, name := range w.definition.Tasks.Names() {
		a := w.tasks[name].action
		if !seen[a] {
			seen[a] = true
			out = append(out, a)
		}
	}
	sort.Strings(out)
	return out
}

// LoadWorkflowFile reads and loads a YAML or JSON workflow file.
func LoadWorkflowFile(path string, registry *Registry) (*Workflow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading workflow file: %w", err)
	}
	return LoadWorkflowBytes(data, registry)
}

// LoadWorkflowBytes parses and loads a serialized workflow document.
func LoadWorkflowBytes(data []byte, registry *Registry) (*Workflow, error) {
	def, err := ParseDefinition(data)
	if err != nil {
		return nil, &DefinitionValidationError{Problems: []Problem{{Message: err.Error()}}}
	}
	wf, err := LoadWorkflow(def, registry)
	if err != nil {
		return nil, err
	}
	wf.source = append([]byte(nil), data...)
	return wf, nil
}

// LoadWorkflowDocument loads a structured (JSON-like) workflow document.
func LoadWorkflowDocument(doc map[string]any, registry *Registry) (*Workflow, error) {
	data, err := yaml.Marshal(doc)
	if err != nil {
		return nil, &DefinitionValidationError{Problems: []Problem{{Message: fmt.Sprintf("document is not serializable: %v", err)}}}
	}
	return LoadWorkflowBytes(data, registry)
}

// LoadWorkflow validates a definition against the registry and compiles it.
// Every problem is reported at once in a *DefinitionValidationError; on error
// no Workflow is returned.
func LoadWorkflow(def *Definition, registry *Registry) (*Workflow, error) {
	if def == nil {
		return nil, &DefinitionValidationError{Problems: []Problem{{Message: "definition is nil"}}}
	}

	c := &compiler{
		def:      def,
		registry: registry,
		problems: &DefinitionValidationError{Workflow: def.Workflow.Name},
		wf: &Workflow{
			name:        def.Workflow.Name,
			version:     def.Workflow.Version,
			description: def.Workflow.Description,
			definition:  def,
			tasks:       make(map[string]*task),
		},
	}

	c.checkMetadata()
	c.compileInputSchema()
	c.compileTasks()
	c.compileFlow()
	c.compileOutputs()

	if len(c.problems.Problems) > 0 {
		return nil, c.problems
	}
	if data, err := def.Marshal(); err == nil {
		c.wf.source = data
	}
	return c.wf, nil
}

type compiler struct {
	def      *Definition
	registry *Registry
	problems *DefinitionValidationError
	wf       *Workflow
}

func (c *compiler) checkMetadata() {
	meta := c.def.Workflow
	if meta.Name == "" {
		c.problems.add("workflow.name", "is required")
	}
	if meta.Version == "" {
		c.problems.add("workflow.version", "is required")
	} else if _, err := semver.StrictNewVersion(strings.TrimPrefix(meta.Version, "v")); err != nil {
		c.problems.add("workflow.version", "%q is not a semantic version", meta.Version)
	}
}

func (c *compiler) compileInputSchema() {
	if len(c.def.Inputs.Schema) == 0 {
		return
	}
	props := make(map[string]schema.Schema, len(c.def.Inputs.Schema))
	var required []string
	for _, name := range sortedKeys(c.def.Inputs.Schema) {
		field := c.def.Inputs.Schema[name]
		s, err := field.toSchema()
		if err != nil {
			c.problems.add("inputs.schema."+name, "%v", err)
			continue
		}
		props[name] = s
		if field.Required {
			required = append(required, name)
		}
	}

	compiled, err := schema.Object(props, required...).Compile()
	if err != nil {
		c.problems.add("inputs.schema", "%v", err)
		return
	}
	c.wf.inputSchema = compiled
}

func (f InputField) toSchema() (schema.Schema, error) {
	switch f.Type {
	case "string", "number", "integer", "boolean":
	case "array":
		if f.Items == nil {
			return schema.Schema{"type": "array"}, nil
		}
		items, err := f.Items.toSchema()
		if err != nil {
			return nil, fmt.Errorf("items: %w", err)
		}
		return schema.Array(items), nil
	case "object":
		props := make(map[string]schema.Schema, len(f.Properties))
		var required []string
		for _, name := range sortedKeys(f.Properties) {
			s, err := f.Properties[name].toSchema()
			if err != nil {
				return nil, fmt.Errorf("%s: %w", name, err)
			}
			props[name] = s
			if f.Properties[name].Required {
				required = append(required, name)
			}
		}
		return schema.Object(props, required...), nil
	case "":
		return nil, fmt.Errorf("type is required")
	default:
		return nil, fmt.Errorf("unsupported type %q", f.Type)
	}

	s := schema.Schema{"type": f.Type}
	if f.Description != "" {
		s["description"] = f.Description
	}
	if len(f.Enum) > 0 {
		s["enum"] = f.Enum
	}
	return s, nil
}

func (c *compiler) compileTasks() {
	tasks := c.def.Tasks
	if tasks.Len() == 0 {
		c.problems.add("tasks", "at least one task is required")
	}
	for _, name := range tasks.Duplicates() {
		c.problems.add("tasks."+name, "duplicate task name")
	}

	for _, name := range tasks.Names() {
		def, _ := tasks.Get(name)
		path := "tasks." + name

		if !IsSnakeCase(name) {
			c.problems.add(path, "task name must be snake_case (e.g. %q)", SnakeCase(name))
		}

		t := &task{name: name, description: def.Description, action: def.Action}
		c.checkAction(path, def)

		inputs := def.Inputs
		if inputs == nil {
			inputs = map[string]any{}
		}
		tmpl, err := expr.CompileTemplate(inputs)
		if err != nil {
			c.problems.add(pathWith(path+".inputs", err), "%v", unwrapPath(err))
		} else {
			t.inputs = tmpl
			c.checkReferences(path+".inputs", tmpl.Expressions(), false)
		}

		if len(def.Outputs) > 0 {
			tmpl, err := expr.CompileTemplate(def.Outputs)
			if err != nil {
				c.problems.add(pathWith(path+".outputs", err), "%v", unwrapPath(err))
			} else {
				t.outputs = tmpl
				c.checkReferences(path+".outputs", tmpl.Expressions(), true)
			}
		}

		c.wf.tasks[name] = t
	}
}

func (c *compiler) checkAction(path string, def TaskDefinition) {
	if def.Action == "" {
		c.problems.add(path+".action", "is required")
		return
	}
	if c.registry == nil {
		return
	}
	action, err := c.registry.Get(def.Action)
	if err != nil {
		c.problems.add(path+".action", "unknown action %q", def.Action)
		return
	}
	for _, field := range action.InputSchema().Required() {
		if _, ok := def.Inputs[field]; !ok {
			c.problems.add(path+".inputs", "missing required input %q for action %s", field, def.Action)
		}
	}
}

// checkReferences verifies that every statically named $output.<task>
// refers to a declared task and that $result is only used where bound.
func (c *compiler) checkReferences(path string, exprs []*expr.Expression, resultAllowed bool) {
	for _, e := range exprs {
		for _, ref := range e.References("output") {
			if _, ok := c.def.Tasks.Get(ref); !ok {
				c.problems.add(path, "expression %q references unknown task %q", e.String(), ref)
			}
		}
		if !resultAllowed {
			for _, v := range e.Variables() {
				if v == "result" {
					c.problems.add(path, "expression %q uses $result outside of task outputs", e.String())
				}
			}
		}
	}
}

func (c *compiler) compileFlow() {
	if len(c.def.Flow) == 0 {
		c.problems.add("flow", "at least one flow step is required")
		return
	}
	c.wf.flow = c.compileSteps("flow", c.def.Flow, make(map[string]string))
}

// compileSteps compiles a sequence of steps. seen maps each task already on
// the current sequential path to where it was first used; a task may appear
// in sibling branches but never twice on one path.
func (c *compiler) compileSteps(path string, defs []FlowStep, seen map[string]string) []*step {
	steps := make([]*step, 0, len(defs))
	for i, def := range defs {
		stepPath := fmt.Sprintf("%s[%d]", path, i)

		switch {
		case def.Parallel != nil:
			c.problems.add(stepPath, "parallel steps are not supported; steps run strictly in flow order")
			continue
		case def.Loop != nil:
			c.problems.add(stepPath, "loop steps are not supported")
			continue
		case def.Do != "" && def.Conditional != nil:
			c.problems.add(stepPath, "a step must have either do or conditional, not both")
			continue
		case def.Do == "" && def.Conditional == nil:
			c.problems.add(stepPath, "a step must have do or conditional")
			continue
		}

		s := &step{id: stepPath}

		if def.When != "" {
			if def.Conditional != nil {
				c.problems.add(stepPath+".when", "use conditional branches instead of when on a conditional block")
			}
			s.when = c.compileCondition(stepPath+".when", def.When)
		}

		if def.Do != "" {
			s.task = def.Do
			if _, ok := c.def.Tasks.Get(def.Do); !ok {
				c.problems.add(stepPath+".do", "unknown task %q", def.Do)
			} else if first, dup := seen[def.Do]; dup {
				c.problems.add(stepPath+".do", "task %q already runs at %s; a task runs at most once per run", def.Do, first)
			} else {
				seen[def.Do] = stepPath
			}
			steps = append(steps, s)
			continue
		}

		s.branches = c.compileConditional(stepPath+".conditional", def.Conditional, seen)
		steps = append(steps, s)
	}
	return steps
}

func (c *compiler) compileConditional(path string, def *ConditionalStep, seen map[string]string) []*branch {
	if len(def.When) == 0 {
		c.problems.add(path+".when", "at least one branch is required")
		return nil
	}

	var branches []*branch
	reached := make(map[string]string)
	for i, b := range def.When {
		branchPath := fmt.Sprintf("%s.when[%d]", path, i)
		compiled := &branch{}

		switch {
		case b.Else && b.Condition != "":
			c.problems.add(branchPath, "an else branch cannot have a condition")
		case b.Else && i != len(def.When)-1:
			c.problems.add(branchPath, "the else branch must be last")
		case !b.Else && b.Condition == "":
			c.problems.add(branchPath+".condition", "is required")
		case !b.Else:
			compiled.condition = c.compileCondition(branchPath+".condition", b.Condition)
		}

		if len(b.Steps) == 0 {
			c.problems.add(branchPath+".steps", "at least one step is required")
		}

		branchSeen := make(map[string]string, len(seen))
		for k, v := range seen {
			branchSeen[k] = v
		}
		compiled.steps = c.compileSteps(branchPath+".steps", b.Steps, branchSeen)
		for k, v := range branchSeen {
			if _, ok := reached[k]; !ok {
				reached[k] = v
			}
		}
		branches = append(branches, compiled)
	}

	// any branch may have run, so later steps see all of their tasks
	for k, v := range reached {
		if _, ok := seen[k]; !ok {
			seen[k] = v
		}
	}
	return branches
}

func (c *compiler) compileCondition(path, source string) *expr.Expression {
	if !expr.IsExpression(source) {
		c.problems.add(path, "condition %q must be an expression starting with %q", source, expr.Sigil)
		return nil
	}
	e, err := expr.Compile(source)
	if err != nil {
		c.problems.add(path, "%v", err)
		return nil
	}
	c.checkReferences(path, []*expr.Expression{e}, false)
	return e
}

func (c *compiler) compileOutputs() {
	if len(c.def.Outputs) == 0 {
		c.problems.add("outputs", "at least one output is required")
		return
	}
	tmpl, err := expr.CompileTemplate(c.def.Outputs)
	if err != nil {
		c.problems.add(pathWith("outputs", err), "%v", unwrapPath(err))
		return
	}
	c.checkReferences("outputs", tmpl.Expressions(), false)
	c.wf.outputs = tmpl
}

func pathWith(base string, err error) string {
	var pathErr *expr.PathError
	if errors.As(err, &pathErr) && pathErr.Path != "" {
		return base + "." + pathErr.Path
	}
	return base
}

func unwrapPath(err error) error {
	var pathErr *expr.PathError
	if errors.As(err, &pathErr) {
		return pathErr.Err
	}
	return err
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
