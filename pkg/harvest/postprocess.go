package harvest

// postprocess rearranges an assembled tree in place: recursive instances
// move under their logical parents, empty nodes are dropped, single-child
// wrappers collapse into their child and runs of plain value leaves are
// grouped. Link targets keep their ids; links to dropped nodes are
// removed.
func postprocess(root *Content, opts Options) *Content {
	reparent(root)
	root = prune(root, linkTargets(root))
	if root == nil {
		return newContent()
	}
	dropDanglingLinks(root)
	if opts.MergeLeafRuns {
		root.Walk(mergeRuns)
	}
	return root
}

// reparent moves every node carrying a parent link from its structural
// parent into the Children of the linked node. Links that would create a
// cycle are ignored.
func reparent(root *Content) {
	byID := make(map[string]*Content)
	holder := make(map[string]*Content)
	var order []*Content
	var index func(c, parent *Content)
	index = func(c, parent *Content) {
		byID[c.ID] = c
		if parent != nil {
			holder[c.ID] = parent
		}
		order = append(order, c)
		for _, x := range c.InnerContent {
			index(x, c)
		}
	}
	index(root, nil)

	for _, c := range order {
		if c.Meta == nil || c.Meta.Parent == "" {
			continue
		}
		target, ok := byID[c.Meta.Parent]
		from, held := holder[c.ID]
		if !ok || !held || target == c || contains(c, target) {
			continue
		}
		from.InnerContent = remove(from.InnerContent, c)
		target.Children = append(target.Children, c)
	}
}

func contains(c, target *Content) bool {
	found := false
	c.Walk(func(x *Content) {
		if x == target {
			found = true
		}
	})
	return found
}

func remove(list []*Content, c *Content) []*Content {
	for i, x := range list {
		if x == c {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}

// linkTargets collects the ids other nodes point at.
func linkTargets(root *Content) map[string]bool {
	targets := make(map[string]bool)
	root.Walk(func(c *Content) {
		if c.Meta == nil {
			return
		}
		if c.Meta.Parent != "" {
			targets[c.Meta.Parent] = true
		}
		if c.Meta.Next != "" {
			targets[c.Meta.Next] = true
		}
	})
	return targets
}

// dropDanglingLinks clears parent and next links whose target is no longer
// in the tree.
func dropDanglingLinks(root *Content) {
	ids := make(map[string]bool)
	root.Walk(func(c *Content) { ids[c.ID] = true })
	root.Walk(func(c *Content) {
		if c.Meta == nil {
			return
		}
		if !ids[c.Meta.Parent] {
			c.Meta.Parent = ""
		}
		if !ids[c.Meta.Next] {
			c.Meta.Next = ""
		}
		if c.Meta.IsZero() {
			c.Meta = nil
		}
	})
}

// prune drops empty nodes bottom-up and replaces wrappers holding nothing
// but one structural child with that child, unless another node links to
// the wrapper. It returns nil when c is empty.
func prune(c *Content, targets map[string]bool) *Content {
	inner := c.InnerContent[:0]
	for _, x := range c.InnerContent {
		if x = prune(x, targets); x != nil {
			inner = append(inner, x)
		}
	}
	c.InnerContent = inner

	children := c.Children[:0]
	for _, x := range c.Children {
		if x = prune(x, targets); x != nil {
			children = append(children, x)
		}
	}
	c.Children = children

	if c.isEmpty() {
		return nil
	}
	if len(c.Values) == 0 && c.Meta.IsZero() && len(c.Children) == 0 && len(c.InnerContent) == 1 && !targets[c.ID] {
		return c.InnerContent[0]
	}
	return c
}

// mergeRuns groups consecutive value leaves of c into synthetic containers
// when they do not already make up all of its inner content.
func mergeRuns(c *Content) {
	if len(c.InnerContent) < 3 {
		return
	}
	var out []*Content
	var run []*Content
	flush := func() {
		if len(run) >= 2 {
			group := newContent()
			group.InnerContent = run
			out = append(out, group)
		} else {
			out = append(out, run...)
		}
		run = nil
	}
	for _, x := range c.InnerContent {
		if x.isValueLeaf() {
			run = append(run, x)
			continue
		}
		flush()
		out = append(out, x)
	}
	if len(run) == len(c.InnerContent) {
		return
	}
	flush()
	c.InnerContent = out
}
