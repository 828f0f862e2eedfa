package project

import (
	"fmt"

	"github.com/vk/weaver/internal/dag"
)

// Catalog is a set of projects related by their package dependencies.
// Dependency and reverse-dependency sets are derived from the declarations
// on each project and never stored separately.
type Catalog struct {
	projects map[string]*Project
	graph    *dag.Graph
}

// NewCatalog indexes projects. Insertion order breaks ties in Order. Every
// declared package dependency must be part of the catalog and the
// dependencies must not form a cycle.
func NewCatalog(projects ...*Project) (*Catalog, error) {
	c := &Catalog{
		projects: make(map[string]*Project, len(projects)),
		graph:    dag.New(),
	}
	for _, p := range projects {
		if _, dup := c.projects[p.Name]; dup {
			return nil, fmt.Errorf("duplicate project %q", p.Name)
		}
		c.projects[p.Name] = p
		c.graph.AddNode(p.Name)
	}
	for _, p := range projects {
		for _, dep := range p.Spec.Dependencies {
			if _, ok := c.projects[dep]; !ok {
				return nil, &DependencyError{Project: p.Name, Missing: dep, Kind: PackageRef}
			}
			if err := c.graph.AddEdge(dep, p.Name); err != nil {
				return nil, fmt.Errorf("%s: %w", p.Name, err)
			}
		}
	}
	if err := c.graph.DetectCycles(); err != nil {
		return nil, fmt.Errorf("invalid project dependencies: %w", err)
	}
	return c, nil
}

// Get looks up a project by name.
func (c *Catalog) Get(name string) (*Project, bool) {
	p, ok := c.projects[name]
	return p, ok
}

// Names lists the projects in insertion order.
func (c *Catalog) Names() []string {
	return c.graph.Nodes()
}

// Dependencies returns the projects name directly depends on.
func (c *Catalog) Dependencies(name string) ([]string, error) {
	return c.graph.Dependencies(name)
}

// ReverseDependencies returns the projects that directly depend on name.
func (c *Catalog) ReverseDependencies(name string) ([]string, error) {
	return c.graph.Dependents(name)
}

// Closure returns every project name transitively depends on.
func (c *Catalog) Closure(name string) ([]string, error) {
	return c.graph.Ancestors(name)
}

// Order returns the project names in dependency order.
func (c *Catalog) Order() ([]string, error) {
	return c.graph.Order()
}

// CheckConflicts runs every project's conflict check against the catalog's
// membership, in dependency order, and returns the first violation.
func (c *Catalog) CheckConflicts() error {
	order, err := c.Order()
	if err != nil {
		return err
	}
	for _, name := range order {
		if err := c.projects[name].CheckConflicts(order); err != nil {
			return err
		}
	}
	return nil
}
