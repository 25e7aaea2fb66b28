package seed

type categorySeed struct {
	Name string
	Slug string
}

type variantSeed struct {
	Color string
	Size  string
	SKU   string
	Stock int
}

type productSeed struct {
	Name         string
	Slug         string
	Description  string
	Price        int64
	CategorySlug string
	Variants     []variantSeed
}

const (
	AdminEmail    = "admin@example.com"
	AdminPassword = "admin123"
)

var categories = []categorySeed{
	{Name: "T-Shirts", Slug: "t-shirts"},
	{Name: "Hoodies", Slug: "hoodies"},
}

var products = []productSeed{
	{
		Name:         "T-Shirt Premium",
		Slug:         "t-shirt-premium",
		Description:  "T-shirt en coton bio de haute qualité",
		Price:        2999,
		CategorySlug: "t-shirts",
		Variants: []variantSeed{
			{Color: "Noir", Size: "M", SKU: "TSHIRT-PREM-BLACK-M", Stock: 50},
			{Color: "Noir", Size: "L", SKU: "TSHIRT-PREM-BLACK-L", Stock: 30},
			{Color: "Blanc", Size: "M", SKU: "TSHIRT-PREM-WHITE-M", Stock: 45},
		},
	},
	{
		Name:         "Hoodie Confort",
		Slug:         "hoodie-confort",
		Description:  "Hoodie ultra-confortable pour l'hiver",
		Price:        4999,
		CategorySlug: "hoodies",
		Variants: []variantSeed{
			{Color: "Gris", Size: "L", SKU: "HOODIE-CONF-GREY-L", Stock: 25},
			{Color: "Gris", Size: "XL", SKU: "HOODIE-CONF-GREY-XL", Stock: 20},
		},
	},
	{
		Name:         "Polo Classique",
		Slug:         "polo-classique",
		Description:  "Polo élégant pour toutes occasions",
		Price:        3499,
		CategorySlug: "t-shirts",
	},
}
