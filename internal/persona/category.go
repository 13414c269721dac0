package persona

// Category is one of the fixed persona traits a user can describe.
type Category string

const (
	Pain                 Category = "Pain"
	Pleasures            Category = "Pleasures"
	Desires              Category = "Desires"
	RelatableTruths      Category = "Relatable Truths"
	CustomerPersona      Category = "Customer Persona"
	ArtistPersona        Category = "Artist Persona"
	Brand                Category = "Brand"
	InGroupsAndOutGroups Category = "In Groups and Out Groups"
	PunPrimer            Category = "Pun Primer"
	USP                  Category = "USP"
	Roles                Category = "Roles"
)

// Policy decides how a category's pairs are merged into a prompt.
type Policy string

const (
	PolicyRandom  Policy = "random"
	PolicyAll     Policy = "all"
	PolicyIgnored Policy = "ignored"
)

// Categories lists every category in display order.
var Categories = []Category{
	Pain,
	Pleasures,
	Desires,
	RelatableTruths,
	CustomerPersona,
	ArtistPersona,
	Brand,
	InGroupsAndOutGroups,
	PunPrimer,
	USP,
	Roles,
}

var policies = map[Category]Policy{
	Pain:                 PolicyRandom,
	Pleasures:            PolicyRandom,
	Desires:              PolicyRandom,
	RelatableTruths:      PolicyRandom,
	CustomerPersona:      PolicyAll,
	ArtistPersona:        PolicyAll,
	Brand:                PolicyAll,
	InGroupsAndOutGroups: PolicyAll,
	PunPrimer:            PolicyIgnored,
	USP:                  PolicyIgnored,
	Roles:                PolicyIgnored,
}

// ParseCategory matches the exact display name.
func ParseCategory(name string) (Category, bool) {
	c := Category(name)
	_, ok := policies[c]
	return c, ok
}

func (c Category) Policy() Policy {
	return policies[c]
}

func (c Category) Valid() bool {
	_, ok := policies[c]
	return ok
}
