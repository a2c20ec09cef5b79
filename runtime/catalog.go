package runtime

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

var workflowExtensions = []string{".yaml", ".yml", ".json"}

// Catalog holds the loaded workflows of an installation, keyed by name.
type Catalog struct {
	mu        sync.RWMutex
	registry  *Registry
	workflows map[string]*Workflow
	files     map[string]string
}

func NewCatalog(registry *Registry) *Catalog {
	return &Catalog{
		registry:  registry,
		workflows: make(map[string]*Workflow),
		files:     make(map[string]string),
	}
}

// LoadDir loads every workflow file in dir. All files are attempted; the
// returned error joins the failure of each file that could not be loaded.
func (c *Catalog) LoadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("error reading directory: %w", err)
	}

	var errs []error
	for _, entry := range entries {
		if entry.IsDir() || !isWorkflowFile(entry.Name()) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := c.LoadFile(path); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", path, err))
		}
	}
	return errors.Join(errs...)
}

func (c *Catalog) LoadFile(path string) error {
	wf, err := LoadWorkflowFile(path, c.registry)
	if err != nil {
		return err
	}
	return c.add(wf, path)
}

// Add registers an already loaded workflow.
func (c *Catalog) Add(wf *Workflow) error {
	return c.add(wf, "")
}

func (c *Catalog) add(wf *Workflow, path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.workflows[wf.Name()]; exists {
		if prev := c.files[wf.Name()]; prev != "" {
			return fmt.Errorf("workflow %s already loaded from %s", wf.Name(), prev)
		}
		return fmt.Errorf("workflow %s already loaded", wf.Name())
	}
	c.workflows[wf.Name()] = wf
	c.files[wf.Name()] = path
	return nil
}

func (c *Catalog) Get(name string) (*Workflow, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	wf, ok := c.workflows[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrWorkflowNotFound, name)
	}
	return wf, nil
}

// List returns the workflows sorted by name.
func (c *Catalog) List() []*Workflow {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.workflows))
	for name := range c.workflows {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]*Workflow, len(names))
	for i, name := range names {
		out[i] = c.workflows[name]
	}
	return out
}

func (c *Catalog) Registry() *Registry {
	return c.registry
}

func isWorkflowFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range workflowExtensions {
		if ext == e {
			return true
		}
	}
	return false
}
