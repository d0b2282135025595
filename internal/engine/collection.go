package engine

import (
	"github.com/AntoninoBonanno/DragDropAnnotate/internal/annotation"
)

// Collection keeps annotations sorted by decreasing area. Equal areas keep
// insertion order. The order is also the draw order, so smaller annotations
// end up on top. Not safe for concurrent use.
type Collection struct {
	items []*annotation.Annotation
}

// Insert places a before the first annotation with a smaller area, or at
// the end. It returns the index used.
func (c *Collection) Insert(a *annotation.Annotation) int {
	for i, item := range c.items {
		if item.Geometry.Area() < a.Geometry.Area() {
			c.items = append(c.items, nil)
			copy(c.items[i+1:], c.items[i:])
			c.items[i] = a
			return i
		}
	}
	c.items = append(c.items, a)
	return len(c.items) - 1
}

// Replace swaps old for a in the same slot without re-sorting.
func (c *Collection) Replace(old, a *annotation.Annotation) bool {
	i := c.indexOf(old)
	if i < 0 {
		return false
	}
	c.items[i] = a
	return true
}

// Remove deletes a. It reports whether a was present.
func (c *Collection) Remove(a *annotation.Annotation) bool {
	i := c.indexOf(a)
	if i < 0 {
		return false
	}
	c.items = append(c.items[:i], c.items[i+1:]...)
	return true
}

// RemoveByID deletes every annotation with the given id and returns them.
func (c *Collection) RemoveByID(id string) []*annotation.Annotation {
	var removed []*annotation.Annotation
	kept := c.items[:0]
	for _, a := range c.items {
		if a.ID == id {
			removed = append(removed, a)
			continue
		}
		kept = append(kept, a)
	}
	for i := len(kept); i < len(c.items); i++ {
		c.items[i] = nil
	}
	c.items = kept
	return removed
}

// Clear deletes everything and returns what was there.
func (c *Collection) Clear() []*annotation.Annotation {
	removed := c.items
	c.items = nil
	return removed
}

// All returns the annotations in draw order.
func (c *Collection) All() []*annotation.Annotation {
	out := make([]*annotation.Annotation, len(c.items))
	copy(out, c.items)
	return out
}

func (c *Collection) Len() int { return len(c.items) }

// Contains reports whether a is in the collection.
func (c *Collection) Contains(a *annotation.Annotation) bool {
	return c.indexOf(a) >= 0
}

// FindByCreatedAt returns the annotation with the given creation stamp.
func (c *Collection) FindByCreatedAt(ts int64) *annotation.Annotation {
	for _, a := range c.items {
		if a.CreatedAt() == ts {
			return a
		}
	}
	return nil
}

// HitTest returns the topmost annotation containing p, scanning in
// reverse draw order.
func (c *Collection) HitTest(p annotation.Coordinate) *annotation.Annotation {
	for i := len(c.items) - 1; i >= 0; i-- {
		if c.items[i].Geometry.Intersect(p.X, p.Y) {
			return c.items[i]
		}
	}
	return nil
}

func (c *Collection) indexOf(a *annotation.Annotation) int {
	for i, item := range c.items {
		if item == a {
			return i
		}
	}
	return -1
}
