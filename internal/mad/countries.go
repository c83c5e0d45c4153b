package mad

// CountrySpec is one entry in the fixed world table. Health doubles as the
// country's weight for alliance pricing.
type CountrySpec struct {
	Code   string
	Name   string
	Health int
}

// worldTable is the fixed set of countries every game starts from. The two
// superpowers are the player homes and can never be allied.
var worldTable = []CountrySpec{
	{"US", "United States", 100},
	{"RU", "Russia", 100},
	{"UK", "United Kingdom", 70},
	{"FR", "France", 80},
	{"DE", "Germany", 75},
	{"CN", "China", 90},
	{"IN", "India", 85},
	{"JP", "Japan", 70},
	{"BR", "Brazil", 60},
	{"CA", "Canada", 55},
	{"AU", "Australia", 50},
	{"ZA", "South Africa", 45},
	{"EG", "Egypt", 40},
	{"TR", "Turkey", 50},
	{"MX", "Mexico", 45},
	{"SE", "Sweden", 35},
}

var homeCountries = [Capacity]string{"US", "RU"}

const (
	startingMoney = 5_000_000
	baseIncome    = 1_000_000

	// allyRate prices an alliance per point of country health.
	allyRate   = 75_000
	cityCost   = 2_000_000
	siloCost   = 3_000_000
	cityIncome = 500_000
)

// AllianceCost is the price of bringing a country into your bloc.
func AllianceCost(c *Country) int64 {
	return int64(c.Health) * allyRate
}

// StructureCost prices a build action; unknown structures cost -1.
func StructureCost(structure string) int64 {
	switch structure {
	case StructureCity:
		return cityCost
	case StructureSilo:
		return siloCost
	default:
		return -1
	}
}
