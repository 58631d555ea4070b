package domain

import "strings"

// Named is implemented by every entity that lives in a collection.
type Named interface {
	EntityID() int
	EntityName() string
}

// Collection is an insertion-ordered set of entities with unique ids.
// Put of an existing id replaces the entry in place, preserving order,
// which is the merge behavior incremental reloads rely on.
//
// Collections are not safe for concurrent mutation; the Environment
// serializes access.
type Collection[T Named] struct {
	items []T
	byID  map[int]T
}

// NewCollection returns an empty collection.
func NewCollection[T Named]() *Collection[T] {
	return &Collection[T]{byID: make(map[int]T)}
}

// Put inserts item, or replaces the entry with the same id in place.
func (c *Collection[T]) Put(item T) {
	id := item.EntityID()
	if _, ok := c.byID[id]; ok {
		for i, existing := range c.items {
			if existing.EntityID() == id {
				c.items[i] = item
				break
			}
		}
	} else {
		c.items = append(c.items, item)
	}
	c.byID[id] = item
}

// Get returns the entity with the given id.
func (c *Collection[T]) Get(id int) (T, bool) {
	item, ok := c.byID[id]
	return item, ok
}

// ByName returns the first entity whose name matches case-insensitively.
func (c *Collection[T]) ByName(name string) (T, bool) {
	for _, item := range c.items {
		if strings.EqualFold(item.EntityName(), name) {
			return item, true
		}
	}
	var zero T
	return zero, false
}

// Remove deletes the entity with the given id, preserving the order of
// the remaining entries.
func (c *Collection[T]) Remove(id int) bool {
	if _, ok := c.byID[id]; !ok {
		return false
	}
	delete(c.byID, id)
	for i, item := range c.items {
		if item.EntityID() == id {
			c.items = append(c.items[:i], c.items[i+1:]...)
			break
		}
	}
	return true
}

// All returns the entities in insertion order. The slice is a copy;
// the entities are shared.
func (c *Collection[T]) All() []T {
	out := make([]T, len(c.items))
	copy(out, c.items)
	return out
}

// Len returns the number of entities.
func (c *Collection[T]) Len() int { return len(c.items) }
