package harvest

import (
	"github.com/invopop/jsonschema"
)

// Schema describes the shape of harvested content as JSON Schema. Fields
// repeated within one node become arrays; inner content with more than one
// entry, or forming a sequence, becomes an array of the merged entry shapes.
func Schema(c *Content) *jsonschema.Schema {
	if c == nil {
		return &jsonschema.Schema{Type: "object"}
	}
	s := &jsonschema.Schema{
		Type:       "object",
		Properties: jsonschema.NewProperties(),
	}

	counts := make(map[string]int)
	url := make(map[string]bool)
	var names []string
	for _, v := range c.Values {
		if counts[v.Name] == 0 {
			names = append(names, v.Name)
		}
		counts[v.Name]++
		url[v.Name] = url[v.Name] || v.URL
	}
	for _, name := range names {
		field := &jsonschema.Schema{Type: "string"}
		if url[name] {
			field.Format = "uri"
		}
		if counts[name] > 1 {
			field = &jsonschema.Schema{Type: "array", Items: field}
		}
		s.Properties.Set(name, field)
	}

	if len(c.InnerContent) > 0 {
		item := mergeSchemas(c.InnerContent)
		if len(c.InnerContent) > 1 || sequential(c.InnerContent) {
			item = &jsonschema.Schema{Type: "array", Items: item}
		}
		s.Properties.Set("inner_content", item)
	}
	if len(c.Children) > 0 {
		s.Properties.Set("children", &jsonschema.Schema{Type: "array", Items: mergeSchemas(c.Children)})
	}
	return s
}

func sequential(list []*Content) bool {
	for _, c := range list {
		if c.Meta != nil && c.Meta.Next != "" {
			return true
		}
	}
	return false
}

// mergeSchemas unions the properties of the schemas of list. The first
// definition of a property wins unless a later one is an array.
func mergeSchemas(list []*Content) *jsonschema.Schema {
	out := &jsonschema.Schema{Type: "object", Properties: jsonschema.NewProperties()}
	for _, c := range list {
		s := Schema(c)
		for p := s.Properties.Oldest(); p != nil; p = p.Next() {
			prev, ok := out.Properties.Get(p.Key)
			if !ok || (prev.Type != "array" && p.Value.Type == "array") {
				out.Properties.Set(p.Key, p.Value)
			}
		}
	}
	return out
}
