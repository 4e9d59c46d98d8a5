package core

import "errors"

// Category is the closed set of expense categories.
type Category string

const (
	CategoryHousing        Category = "housing"
	CategoryFood           Category = "food"
	CategoryTransportation Category = "transportation"
	CategoryUtilities      Category = "utilities"
	CategoryEntertainment  Category = "entertainment"
	CategoryOther          Category = "other"
)

var ErrInvalidCategory = errors.New("invalid category")

var categories = [...]Category{
	CategoryHousing,
	CategoryFood,
	CategoryTransportation,
	CategoryUtilities,
	CategoryEntertainment,
	CategoryOther,
}

var categoryLabels = map[Category]string{
	CategoryHousing:        "Housing",
	CategoryFood:           "Food",
	CategoryTransportation: "Transportation",
	CategoryUtilities:      "Utilities",
	CategoryEntertainment:  "Entertainment",
	CategoryOther:          "Other",
}

// Categories returns every category in presentation order.
func Categories() []Category {
	out := make([]Category, len(categories))
	copy(out, categories[:])
	return out
}

// ParseCategory matches s exactly; "Housing" is not "housing".
func ParseCategory(s string) (Category, error) {
	c := Category(s)
	if !c.Valid() {
		return "", ErrInvalidCategory
	}
	return c, nil
}

func (c Category) Valid() bool {
	_, ok := categoryLabels[c]
	return ok
}

// Label is the display name. Unknown categories render as their raw value.
func (c Category) Label() string {
	if l, ok := categoryLabels[c]; ok {
		return l
	}
	return string(c)
}

func (c Category) String() string {
	return string(c)
}
