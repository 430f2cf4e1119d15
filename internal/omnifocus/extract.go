// Package omnifocus turns an OmniFocus export document into plannr records.
//
// The export uses one element kind, task, for both projects and tasks. A task
// element is a project when it carries a project child element. Two schema
// generations exist: the older one nests child tasks inside their parent, the
// newer one writes every task at the top level with an idref pointing at its
// parent. Extract accepts both.
package omnifocus

import (
	plannrerrors "github.com/randalmurphal/plannr/internal/errors"
	"github.com/randalmurphal/plannr/internal/markup"
)

// DefaultMaxDepth is the deepest element nesting Extract accepts.
const DefaultMaxDepth = 200

// UntitledProject names projects whose export carries no name.
const UntitledProject = "Untitled Project"

// UntitledTask titles tasks whose export carries no name.
const UntitledTask = "Untitled Task"

const (
	elemTask    = "task"
	elemProject = "project"
	elemFolder  = "folder"
	attrID      = "id"
	attrIDRef   = "idref"
)

// RawTaskNode is a task as read from the export. Absent fields are nil.
type RawTaskNode struct {
	ID        *string
	Name      *string
	Note      *string
	Added     *string
	Modified  *string
	Completed *string
	Due       *string
	Start     *string
	Flagged   *string

	// OwnerProjectName is the name of the project the task belongs to, or
	// nil for inbox and folder tasks.
	OwnerProjectName *string

	// Children holds the direct subtasks. They also appear in
	// Hierarchy.Tasks right after their parent.
	Children []*RawTaskNode
}

// RawProjectNode is a project as read from the export.
type RawProjectNode struct {
	ID        *string
	Name      *string
	Note      *string
	Added     *string
	Modified  *string
	Completed *string
	Due       *string
	Start     *string
	Flagged   *string

	// Folder is the name of the enclosing folder, if any.
	Folder *string
}

// OwnerName is the name tasks of this project are tagged with.
func (p *RawProjectNode) OwnerName() string {
	if p.Name == nil {
		return UntitledProject
	}
	return *p.Name
}

// Hierarchy is the classified content of an export.
type Hierarchy struct {
	Projects []*RawProjectNode
	// Tasks is flattened depth-first, parent before children.
	Tasks []*RawTaskNode
}

// ExtractOption configures Extract.
type ExtractOption func(*extractor)

// WithMaxDepth overrides DefaultMaxDepth.
func WithMaxDepth(n int) ExtractOption {
	return func(e *extractor) {
		if n > 0 {
			e.maxDepth = n
		}
	}
}

type extractor struct {
	maxDepth int

	// byID indexes top-level task elements for idref resolution.
	byID map[string]*markup.Node
	// linked maps a parent id to the top-level tasks that reference it.
	linked map[string][]*markup.Node
	// attached marks top-level tasks whose parent reference resolved.
	attached map[*markup.Node]bool
	folders  map[string]string
	visited  map[*markup.Node]bool

	out *Hierarchy
}

// Extract classifies the top-level task elements of root into projects and
// tasks and flattens every task tree below them.
//
// Passes run in a fixed order: projects with their descendants, then inbox
// tasks with theirs, then tasks and projects inside folders. Nesting beyond
// the depth limit fails with HierarchyTooDeep.
func Extract(root *markup.Node, opts ...ExtractOption) (*Hierarchy, error) {
	e := &extractor{
		maxDepth: DefaultMaxDepth,
		byID:     make(map[string]*markup.Node),
		linked:   make(map[string][]*markup.Node),
		attached: make(map[*markup.Node]bool),
		folders:  make(map[string]string),
		visited:  make(map[*markup.Node]bool),
		out:      &Hierarchy{},
	}
	for _, opt := range opts {
		opt(e)
	}

	top := root.ChildrenNamed(elemTask)
	if err := e.indexFolders(root.ChildrenNamed(elemFolder), 1); err != nil {
		return nil, err
	}
	e.link(top)

	var inbox []*markup.Node
	for _, n := range top {
		if e.attached[n] {
			continue
		}
		if isProject(n) {
			if err := e.project(n, nil, 1); err != nil {
				return nil, err
			}
			continue
		}
		inbox = append(inbox, n)
	}

	if _, err := e.flatten(inbox, nil, 1); err != nil {
		return nil, err
	}

	for _, f := range root.ChildrenNamed(elemFolder) {
		if err := e.folder(f, 1); err != nil {
			return nil, err
		}
	}

	// Tasks whose parent references form a cycle are never reached from a
	// root. Keep them as inbox tasks.
	var orphans []*markup.Node
	for _, n := range top {
		if !e.visited[n] && !isProject(n) {
			orphans = append(orphans, n)
		}
	}
	if _, err := e.flatten(orphans, nil, 1); err != nil {
		return nil, err
	}

	return e.out, nil
}

func isProject(n *markup.Node) bool {
	return n.Has(elemProject)
}

// parentRef returns the idref of a task's parent reference element. A parent
// reference is a task child that carries an idref and nothing else.
func parentRef(n *markup.Node) (string, bool) {
	for _, c := range n.ChildrenNamed(elemTask) {
		if isRef(c) {
			ref, _ := c.Attr(attrIDRef)
			return ref, ref != ""
		}
	}
	return "", false
}

func isRef(n *markup.Node) bool {
	_, ok := n.Attr(attrIDRef)
	return ok && len(n.Children) == 0
}

// link resolves parent references between top-level tasks.
func (e *extractor) link(top []*markup.Node) {
	for _, n := range top {
		if id, ok := n.Attr(attrID); ok && id != "" {
			if _, dup := e.byID[id]; !dup {
				e.byID[id] = n
			}
		}
	}
	for _, n := range top {
		if isProject(n) {
			continue
		}
		ref, ok := parentRef(n)
		if !ok {
			continue
		}
		parent, found := e.byID[ref]
		if !found || parent == n {
			continue
		}
		e.linked[ref] = append(e.linked[ref], n)
		e.attached[n] = true
	}
}

// children returns the nested task elements of n followed by the top-level
// tasks linked to it by reference.
func (e *extractor) children(n *markup.Node) []*markup.Node {
	var out []*markup.Node
	for _, c := range n.ChildrenNamed(elemTask) {
		if !isRef(c) {
			out = append(out, c)
		}
	}
	if id, ok := n.Attr(attrID); ok {
		out = append(out, e.linked[id]...)
	}
	return out
}

func (e *extractor) project(n *markup.Node, folder *string, depth int) error {
	if depth > e.maxDepth {
		return plannrerrors.ErrHierarchyTooDeep(e.maxDepth)
	}
	e.visited[n] = true

	p := &RawProjectNode{
		ID:        attr(n, attrID),
		Name:      text(n, "name"),
		Note:      note(n),
		Added:     text(n, "added"),
		Modified:  text(n, "modified"),
		Completed: text(n, "completed"),
		Due:       text(n, "due"),
		Start:     text(n, "start"),
		Flagged:   text(n, "flagged"),
		Folder:    folder,
	}
	if p.Folder == nil {
		p.Folder = e.folderRef(n.Child(elemProject))
	}
	e.out.Projects = append(e.out.Projects, p)

	owner := p.OwnerName()
	_, err := e.flatten(e.children(n), &owner, depth+1)
	return err
}

// flatten appends nodes and their descendants to the output, depth-first.
// It returns the RawTaskNodes created at this level.
func (e *extractor) flatten(nodes []*markup.Node, owner *string, depth int) ([]*RawTaskNode, error) {
	var level []*RawTaskNode
	for _, n := range nodes {
		if e.visited[n] {
			continue
		}
		if depth > e.maxDepth {
			return nil, plannrerrors.ErrHierarchyTooDeep(e.maxDepth)
		}
		e.visited[n] = true

		raw := readTask(n)
		raw.OwnerProjectName = owner
		e.out.Tasks = append(e.out.Tasks, raw)

		kids, err := e.flatten(e.children(n), owner, depth+1)
		if err != nil {
			return nil, err
		}
		raw.Children = kids
		level = append(level, raw)
	}
	return level, nil
}

func (e *extractor) folder(f *markup.Node, depth int) error {
	if depth > e.maxDepth {
		return plannrerrors.ErrHierarchyTooDeep(e.maxDepth)
	}
	name := text(f, "name")

	var loose []*markup.Node
	for _, n := range f.ChildrenNamed(elemTask) {
		if e.visited[n] || isRef(n) {
			continue
		}
		if isProject(n) {
			if err := e.project(n, name, depth+1); err != nil {
				return err
			}
			continue
		}
		loose = append(loose, n)
	}
	if _, err := e.flatten(loose, nil, depth+1); err != nil {
		return err
	}

	for _, sub := range f.ChildrenNamed(elemFolder) {
		if isRef(sub) {
			continue
		}
		if err := e.folder(sub, depth+1); err != nil {
			return err
		}
	}
	return nil
}

// indexFolders records folder names by id so projects in the flat
// generation can resolve their folder reference.
func (e *extractor) indexFolders(folders []*markup.Node, depth int) error {
	if depth > e.maxDepth {
		return plannrerrors.ErrHierarchyTooDeep(e.maxDepth)
	}
	for _, f := range folders {
		if id, ok := f.Attr(attrID); ok && id != "" {
			if name := text(f, "name"); name != nil {
				e.folders[id] = *name
			}
		}
		if err := e.indexFolders(f.ChildrenNamed(elemFolder), depth+1); err != nil {
			return err
		}
	}
	return nil
}

func (e *extractor) folderRef(marker *markup.Node) *string {
	ref, ok := marker.Child(elemFolder).Attr(attrIDRef)
	if !ok {
		return nil
	}
	name, ok := e.folders[ref]
	if !ok {
		return nil
	}
	return &name
}

func readTask(n *markup.Node) *RawTaskNode {
	return &RawTaskNode{
		ID:        attr(n, attrID),
		Name:      text(n, "name"),
		Note:      note(n),
		Added:     text(n, "added"),
		Modified:  text(n, "modified"),
		Completed: text(n, "completed"),
		Due:       text(n, "due"),
		Start:     text(n, "start"),
		Flagged:   text(n, "flagged"),
	}
}

func text(n *markup.Node, field string) *string {
	s, ok := n.FieldText(field)
	if !ok {
		return nil
	}
	return &s
}

func note(n *markup.Node) *string {
	s, ok := markup.RichText(n.Field("note"))
	if !ok {
		return nil
	}
	return &s
}

func attr(n *markup.Node, name string) *string {
	s, ok := n.Attr(name)
	if !ok || s == "" {
		return nil
	}
	return &s
}
