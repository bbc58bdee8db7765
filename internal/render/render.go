// Package render turns stored nodes into locale- and timezone-aware
// response trees with a bounded recursive depth.
package render

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"nodetree/api/internal/spell"
	"nodetree/api/internal/store"
)

// MaxDepth caps expansion for depth=-1 (and clamps any larger request)
// so a pathological tree cannot recurse without bound.
const MaxDepth = 10

const timeLayout = "2006-01-02 15:04:05"

// Context carries the per-request rendering parameters. It is a value:
// each recursion level works on its own copy, so a child can never
// mutate its parent's depth bookkeeping.
type Context struct {
	Locale       string
	Location     *time.Location
	TimezoneName string
	// UTCFallback marks that the caller asked for a timezone that could
	// not be resolved; rendered timestamps carry a " UTC" suffix so the
	// fallback is observable.
	UTCFallback bool
	// Depth is the requested budget; nil selects the default one-level
	// policy. Clamped to [-1, MaxDepth].
	Depth        *int
	CurrentDepth int
}

// child derives the context for the next recursion level.
func (c Context) child(depth *int) Context {
	next := c
	next.Depth = depth
	next.CurrentDepth = c.CurrentDepth + 1
	return next
}

// ClampDepth forces a requested depth into [-1, MaxDepth].
func ClampDepth(depth int) int {
	if depth < -1 {
		return -1
	}
	if depth > MaxDepth {
		return MaxDepth
	}
	return depth
}

// Node is the rendered response shape.
type Node struct {
	ID        int64  `json:"id"`
	Content   string `json:"content"`
	Title     string `json:"title"`
	Parent    *int64 `json:"parent"`
	CreatedAt string `json:"created_at"`
	Children  []Node `json:"children"`
}

// ChildSource supplies the active (non-soft-deleted) children of a node.
// Deleted subtrees never reach the renderer: filtering happens at this
// query boundary, not here.
type ChildSource interface {
	ListActiveChildren(ctx context.Context, parentID int64) ([]store.Node, error)
}

type Renderer struct {
	children ChildSource
}

func NewRenderer(children ChildSource) *Renderer {
	return &Renderer{children: children}
}

// Render expands a node and its descendants according to the depth
// policy:
//
//	depth unset  - direct children only, each with an empty children list
//	depth = 0    - no children
//	depth = N>0  - expand through N levels from the original call
//	depth = -1   - expand everything, capped at MaxDepth levels
//
// Given a fixed store snapshot the output is fully determined by the
// node and the context, which is what makes responses cacheable.
func (r *Renderer) Render(ctx context.Context, node store.Node, rc Context) (Node, error) {
	children, err := r.renderChildren(ctx, node, rc)
	if err != nil {
		return Node{}, err
	}
	return Node{
		ID:        node.ID,
		Content:   node.Content,
		Title:     Title(node.ID, rc.Locale),
		Parent:    node.ParentID,
		CreatedAt: FormatCreatedAt(node.CreatedAt, rc),
		Children:  children,
	}, nil
}

// RenderMany renders a slice of nodes against the same context, as for
// the root listing.
func (r *Renderer) RenderMany(ctx context.Context, nodes []store.Node, rc Context) ([]Node, error) {
	rendered := make([]Node, 0, len(nodes))
	for _, node := range nodes {
		item, err := r.Render(ctx, node, rc)
		if err != nil {
			return nil, err
		}
		rendered = append(rendered, item)
	}
	return rendered, nil
}

func (r *Renderer) renderChildren(ctx context.Context, node store.Node, rc Context) ([]Node, error) {
	// Default policy: show direct children, and force each child's own
	// children list empty by recursing with a zero budget.
	if rc.Depth == nil {
		children, err := r.children.ListActiveChildren(ctx, node.ID)
		if err != nil {
			return nil, fmt.Errorf("list children of %d: %w", node.ID, err)
		}
		zero := 0
		return r.RenderMany(ctx, children, rc.child(&zero))
	}

	depth := ClampDepth(*rc.Depth)
	if depth == 0 {
		return []Node{}, nil
	}

	canShowMore := false
	if depth == -1 {
		canShowMore = rc.CurrentDepth < MaxDepth
	} else {
		canShowMore = rc.CurrentDepth < depth
	}
	if !canShowMore {
		return []Node{}, nil
	}

	children, err := r.children.ListActiveChildren(ctx, node.ID)
	if err != nil {
		return nil, fmt.Errorf("list children of %d: %w", node.ID, err)
	}
	return r.RenderMany(ctx, children, rc.child(&depth))
}

// Title spells the node id in the requested locale, falling back to
// English on any speller failure. The decimal form is the last resort
// for ids beyond the spellable range.
func Title(id int64, locale string) string {
	title, err := spell.Spell(int(id), locale)
	if err == nil {
		return title
	}
	title, err = spell.Spell(int(id), "en")
	if err == nil {
		return title
	}
	return strconv.FormatInt(id, 10)
}

// FormatCreatedAt renders a UTC timestamp in the request's timezone.
// When the requested zone fell back, the output stays in UTC and is
// suffixed so callers can tell conversion did not happen.
func FormatCreatedAt(createdAt time.Time, rc Context) string {
	if rc.UTCFallback {
		return createdAt.UTC().Format(timeLayout) + " UTC"
	}
	if rc.Location == nil {
		return createdAt.UTC().Format(timeLayout)
	}
	return createdAt.In(rc.Location).Format(timeLayout)
}
