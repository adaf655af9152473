package ai

// Prompts used by the interpreter. Snippets are inserted with fmt verbs;
// each snippet marks the node under inspection with the target comments
// named in the prompts.

const InterpretSystemPrompt = `You analyse the markup of web pages that share one template.
You are shown excerpts of several pages. In each excerpt the node under
inspection is enclosed by <!-- Target node: Start --> and <!-- Target node: End -->.
Every excerpt shows the same position of the template in a different place
or page. Judge the template position, not a single instance.
Answer strictly in the requested JSON format.`

const StructurePrompt = `Decide which structural patterns the target node takes part in.

recursive: instances of the target node are nested in or refer to other
instances of the same node, like comments replying to comments or nested
menus. If true, name the attribute that identifies an instance
(recursive_attribute), the attribute values that mark top-level instances
(root_values) and how the parent's value is derived from a child's value:
"decrement" when the attribute is a depth or level, "trim_segment" when it
is a path such as "3.1.2" (then give the separator).
Attributes available on the target node: %s

enumerative: the target node is one item of a list of similar items, like
search results, table rows or list entries.

associative: the children of the target node are fragments of one logical
record spread across several sibling elements, like a title row followed
by a details row.

Excerpts:
%s`

const DataPrompt = `Decide which attributes of the target node carry content worth extracting.
Candidate attributes: %s

For every attribute that carries content, give a short snake_case field
name describing the value (for example "article_url", "published_at",
"author_avatar"). Skip attributes that only style, identify or wire up the
page. Mark a field peripheral if it belongs to navigation, advertising,
footers or other boilerplate rather than the main content of the page.
Mark a field as url if its value is a link or a resource location.

Excerpts:
%s`

const TextPrompt = `The target node is a run of text. Give a short snake_case field name for
what the text represents in the template (for example "headline",
"comment_body", "price"). Mark it peripheral if it belongs to navigation,
advertising, footers or other boilerplate.

Excerpts:
%s`

const AssociationPrompt = `The excerpts below are siblings below one common parent. Each excerpt
is labelled with a group key. Some siblings may be fragments of one
logical record that the page spreads across several elements, for
example a title row followed by a details row. Return the groups of keys
that together form one record. Only return groups with at least two keys
and leave out keys that stand on their own.

%s`
