package tree

import (
	"errors"
)

// Sorted-map balance rule validation utilities, meant for tests and
// diagnostics. Each walks the exported node structure and reports the
// first violated property.

func nodeIsRed(node SortedMapNode) bool {
	return node != nil && node.Color() == Red
}

// RedViolationValidate confirms a black root and that no red node is
// reached through a red link (no red-red chaining on any path).
func RedViolationValidate(m SortedMap) error {
	root := m.Root()
	if root == nil {
		return nil
	}
	if nodeIsRed(root) {
		return errors.New("[sorted-map] red violation: red root")
	}
	return redValidate(root)
}

func redValidate(node SortedMapNode) error {
	if node == nil {
		return nil
	}
	if nodeIsRed(node) && (nodeIsRed(node.Left()) || nodeIsRed(node.Right())) {
		return errors.New("[sorted-map] red violation: red node with red child")
	}
	if err := redValidate(node.Left()); err != nil {
		return err
	}
	return redValidate(node.Right())
}

// LeftLeaningValidate confirms that no red link leans right; a
// right-leaning red is legal only inside a single mutation.
func LeftLeaningValidate(m SortedMap) error {
	return leanValidate(m.Root())
}

func leanValidate(node SortedMapNode) error {
	if node == nil {
		return nil
	}
	if nodeIsRed(node.Right()) {
		return errors.New("[sorted-map] lean violation: right-leaning red link")
	}
	if err := leanValidate(node.Left()); err != nil {
		return err
	}
	return leanValidate(node.Right())
}

// BlackViolationValidate confirms that every path from the root to a
// nil slot passes the same number of black links.
func BlackViolationValidate(m SortedMap) error {
	if _, ok := blackDepth(m.Root()); !ok {
		return errors.New("[sorted-map] black violation: unequal black height")
	}
	return nil
}

func blackDepth(node SortedMapNode) (int, bool) {
	if node == nil {
		return 1, true
	}
	l, ok := blackDepth(node.Left())
	if !ok {
		return 0, false
	}
	r, ok := blackDepth(node.Right())
	if !ok || l != r {
		return 0, false
	}
	if !nodeIsRed(node) {
		l++
	}
	return l, true
}
