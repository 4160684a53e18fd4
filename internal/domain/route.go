package domain

import "strings"

// Label is a node type that can serve as a graph entry point.
type Label string

// Entry point labels.
const (
	LabelCategory1 Label = "Category1"
	LabelCategory2 Label = "Category2"
	LabelCategory3 Label = "Category3"
	LabelTrademark Label = "Trademark"
	LabelSPU       Label = "SPU"
	LabelSKU       Label = "SKU"
	LabelAttr      Label = "Attr"
	LabelUser      Label = "User"
)

// Labels lists every routable label in prompt order.
var Labels = []Label{
	LabelCategory1, LabelCategory2, LabelCategory3,
	LabelTrademark, LabelSPU, LabelSKU, LabelAttr, LabelUser,
}

// IsValid reports whether l is one of the routable labels.
func (l Label) IsValid() bool {
	for _, v := range Labels {
		if l == v {
			return true
		}
	}
	return false
}

// DisplayProperty is the node property projected for entry nodes of this label.
func (l Label) DisplayProperty() string {
	if l == LabelAttr {
		return "attr_value"
	}
	return strings.ToLower(string(l)) + "_name"
}

// VectorIndex is the name of the label's vector index.
func (l Label) VectorIndex() string {
	return strings.ToLower(string(l)) + "_vector"
}

// FulltextIndex is the name of the label's lexical index.
func (l Label) FulltextIndex() string {
	return strings.ToLower(string(l)) + "_fulltext"
}

// RouteItem names one candidate entry point found in the conversation.
type RouteItem struct {
	Label  Label  `json:"label" enum:"Category1,Category2,Category3,Trademark,SPU,SKU,Attr,User"`
	Entity string `json:"entity" description:"entity text as it appears in the conversation"`
}

// RouteOutput is the structured reply expected from the routing model.
type RouteOutput struct {
	Outputs []RouteItem `json:"outputs"`
}
