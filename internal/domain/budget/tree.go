package budget

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/healthbudget/backend/internal/domain/shared"
	"github.com/healthbudget/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// MaxItemCodeLength bounds item codes, matching the persisted column width
const MaxItemCodeLength = 20

// TemplateNode describes one node of an execution tree before materialization.
// Nodes reference their parent by code; ParentCode is empty for roots.
type TemplateNode struct {
	Code       string `json:"code"`
	Title      string `json:"title"`
	ParentCode string `json:"parent_code,omitempty"`
	IsCategory bool   `json:"is_category"`
	SortOrder  int    `json:"sort_order"`
}

// BuildTree validates a template batch and materializes it as execution items.
// The whole batch is checked before any item is produced: duplicate codes,
// dangling parents, cycles, unknown root prefixes, leaves with children and
// nodes whose own prefix contradicts their root's class all fail with SchemaError.
// Items are returned in display order (pre-order, siblings by sort order then code).
func BuildTree(executionID uuid.UUID, nodes []TemplateNode) ([]ExecutionItem, error) {
	if len(nodes) == 0 {
		return nil, shared.NewSchemaError("execution template has no nodes")
	}

	index := make(map[string]int, len(nodes))
	for i, n := range nodes {
		code := strings.TrimSpace(n.Code)
		if code == "" {
			return nil, shared.NewSchemaError(fmt.Sprintf("template node %d has an empty code", i))
		}
		if len(code) > MaxItemCodeLength {
			return nil, shared.NewSchemaError(fmt.Sprintf("item code %q exceeds %d characters", code, MaxItemCodeLength))
		}
		if strings.TrimSpace(n.Title) == "" {
			return nil, shared.NewSchemaError(fmt.Sprintf("item %q has an empty title", code))
		}
		if _, dup := index[code]; dup {
			return nil, shared.NewSchemaError(fmt.Sprintf("duplicate item code %q", code))
		}
		index[code] = i
	}

	parent := make([]int, len(nodes))
	children := make([][]int, len(nodes))
	var roots []int
	for i, n := range nodes {
		pc := strings.TrimSpace(n.ParentCode)
		if pc == "" {
			parent[i] = -1
			roots = append(roots, i)
			continue
		}
		p, ok := index[pc]
		if !ok {
			return nil, shared.NewSchemaError(fmt.Sprintf("item %q references unknown parent %q", n.Code, pc))
		}
		if p == i {
			return nil, shared.NewSchemaError(fmt.Sprintf("item %q is its own parent", n.Code))
		}
		parent[i] = p
		children[p] = append(children[p], i)
	}

	less := func(list []int) func(a, b int) bool {
		return func(a, b int) bool {
			na, nb := nodes[list[a]], nodes[list[b]]
			if na.SortOrder != nb.SortOrder {
				return na.SortOrder < nb.SortOrder
			}
			return strings.TrimSpace(na.Code) < strings.TrimSpace(nb.Code)
		}
	}
	sort.SliceStable(roots, less(roots))
	for i := range children {
		sort.SliceStable(children[i], less(children[i]))
	}

	// Every node reachable from a root is visited exactly once; anything left
	// over sits on a cycle that no root leads into.
	category := make([]AccountCategory, len(nodes))
	indent := make([]int, len(nodes))
	order := make([]int, 0, len(nodes))
	visited := make([]bool, len(nodes))

	stack := make([]int, 0, len(nodes))
	for i := len(roots) - 1; i >= 0; i-- {
		stack = append(stack, roots[i])
	}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[cur] {
			continue
		}
		visited[cur] = true
		order = append(order, cur)

		code := strings.TrimSpace(nodes[cur].Code)
		if parent[cur] < 0 {
			c, err := ClassifyPrefix(code)
			if err != nil {
				return nil, err
			}
			category[cur] = c
			indent[cur] = 0
		} else {
			p := parent[cur]
			category[cur] = category[p]
			indent[cur] = indent[p] + 1
			if !nodes[p].IsCategory {
				return nil, shared.NewSchemaError(fmt.Sprintf("item %q is a leaf and cannot have child %q", nodes[p].Code, code))
			}
			if isCategoryLetter(code[0]) && code[0] != category[cur].Prefix() {
				return nil, shared.NewSchemaError(fmt.Sprintf("item %q does not belong to %s class of its ancestors", code, category[cur]))
			}
		}

		kids := children[cur]
		for i := len(kids) - 1; i >= 0; i-- {
			stack = append(stack, kids[i])
		}
	}
	if len(order) != len(nodes) {
		var stuck []string
		for i, ok := range visited {
			if !ok {
				stuck = append(stuck, nodes[i].Code)
			}
		}
		sort.Strings(stuck)
		return nil, shared.NewSchemaError(fmt.Sprintf("template contains a cycle through items %s", strings.Join(stuck, ", ")))
	}

	now := time.Now()
	ids := make([]uuid.UUID, len(nodes))
	for i := range nodes {
		ids[i] = uuid.New()
	}
	items := make([]ExecutionItem, 0, len(nodes))
	for _, i := range order {
		n := nodes[i]
		item := ExecutionItem{
			ID:                ids[i],
			ExecutionID:       executionID,
			ItemCode:          strings.TrimSpace(n.Code),
			Title:             strings.TrimSpace(n.Title),
			IsCategory:        n.IsCategory,
			IndentLevel:       indent[i],
			SortOrder:         n.SortOrder,
			Category:          category[i],
			Values:            valueobject.ZeroQuarterly(),
			CumulativeBalance: decimal.Zero,
			CreatedAt:         now,
			UpdatedAt:         now,
		}
		if parent[i] >= 0 {
			pid := ids[parent[i]]
			item.ParentID = &pid
		}
		items = append(items, item)
	}
	return items, nil
}

// ValidateTemplate runs the tree checks without keeping the result
func ValidateTemplate(nodes []TemplateNode) error {
	_, err := BuildTree(uuid.Nil, nodes)
	return err
}

// rollUp recomputes cumulative balances bottom-up.
// A leaf's balance is the sum of its quarters; a category's quarters and
// balance are the sums over its direct children.
func rollUp(items []ExecutionItem) {
	pos := make(map[uuid.UUID]int, len(items))
	for i := range items {
		pos[items[i].ID] = i
	}

	order := make([]int, len(items))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return items[order[a]].IndentLevel > items[order[b]].IndentLevel
	})

	sums := make([]valueobject.Quarterly, len(items))
	for i := range sums {
		sums[i] = valueobject.ZeroQuarterly()
	}

	for _, i := range order {
		item := &items[i]
		if item.IsCategory {
			item.Values = sums[i]
		}
		item.CumulativeBalance = item.Values.Total()
		if item.ParentID != nil {
			if p, ok := pos[*item.ParentID]; ok {
				sums[p] = sums[p].Add(item.Values)
			}
		}
	}
}

// checkForest verifies a loaded item set still forms a forest with consistent indent levels
func checkForest(items []ExecutionItem) error {
	pos := make(map[uuid.UUID]int, len(items))
	for i := range items {
		pos[items[i].ID] = i
	}
	for i := range items {
		steps := 0
		cur := i
		for items[cur].ParentID != nil {
			p, ok := pos[*items[cur].ParentID]
			if !ok {
				return shared.NewSchemaError(fmt.Sprintf("item %q references a parent outside its execution", items[cur].ItemCode))
			}
			if items[cur].IndentLevel != items[p].IndentLevel+1 {
				return shared.NewSchemaError(fmt.Sprintf("item %q indent level is inconsistent with its parent", items[cur].ItemCode))
			}
			cur = p
			steps++
			if steps > len(items) {
				return shared.NewSchemaError(fmt.Sprintf("item %q is part of a cycle", items[i].ItemCode))
			}
		}
		if items[cur].IndentLevel != 0 {
			return shared.NewSchemaError(fmt.Sprintf("root item %q must have indent level 0", items[cur].ItemCode))
		}
	}
	return nil
}

// PreOrder returns items depth-first with siblings ordered by sort order then code.
// Items whose parent is missing are appended at the end in their input order.
func PreOrder(items []ExecutionItem) []ExecutionItem {
	children := make(map[uuid.UUID][]int, len(items))
	present := make(map[uuid.UUID]bool, len(items))
	for i := range items {
		present[items[i].ID] = true
	}
	var roots []int
	for i := range items {
		if items[i].ParentID == nil || !present[*items[i].ParentID] {
			roots = append(roots, i)
			continue
		}
		children[*items[i].ParentID] = append(children[*items[i].ParentID], i)
	}

	less := func(idx []int) func(a, b int) bool {
		return func(a, b int) bool {
			x, y := items[idx[a]], items[idx[b]]
			if x.SortOrder != y.SortOrder {
				return x.SortOrder < y.SortOrder
			}
			return x.ItemCode < y.ItemCode
		}
	}
	sort.SliceStable(roots, less(roots))

	out := make([]ExecutionItem, 0, len(items))
	visited := make([]bool, len(items))
	var walk func(i int)
	walk = func(i int) {
		if visited[i] {
			return
		}
		visited[i] = true
		out = append(out, items[i])
		kids := children[items[i].ID]
		sort.SliceStable(kids, less(kids))
		for _, k := range kids {
			walk(k)
		}
	}
	for _, r := range roots {
		walk(r)
	}
	for i := range items {
		if !visited[i] {
			out = append(out, items[i])
		}
	}
	return out
}
